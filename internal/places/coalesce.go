package places

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/dishcover/internal/metrics"
)

// Coalescer deduplicates identical searches. Concurrent callers with the same
// params share one provider call; the settled result (success or error) is
// then served for the linger duration and evicted by a timer.
type Coalescer struct {
	next   Searcher
	linger time.Duration
	group  singleflight.Group

	mu      sync.Mutex
	settled map[string]settledSearch
	gen     uint64
}

type settledSearch struct {
	places []Place
	err    error
	gen    uint64
}

// NewCoalescer wraps next. A non-positive linger disables result reuse after
// the in-flight call settles.
func NewCoalescer(next Searcher, linger time.Duration) *Coalescer {
	return &Coalescer{
		next:    next,
		linger:  linger,
		settled: make(map[string]settledSearch),
	}
}

func coalesceKey(p SearchParams) string {
	b, _ := json.Marshal(p)
	return string(b)
}

// Search returns the shared result for p. A caller whose ctx ends stops
// waiting; the shared call continues for the other callers.
func (c *Coalescer) Search(ctx context.Context, p SearchParams) ([]Place, error) {
	key := coalesceKey(p)

	c.mu.Lock()
	if s, ok := c.settled[key]; ok {
		c.mu.Unlock()
		metrics.SearchCoalesced.Inc()
		return clonePlaces(s.places), s.err
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (any, error) {
		places, err := c.next.Search(context.WithoutCancel(ctx), p)
		c.settle(key, places, err)
		return places, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			metrics.SearchCoalesced.Inc()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return clonePlaces(r.Val.([]Place)), nil
	}
}

func (c *Coalescer) settle(key string, places []Place, err error) {
	if c.linger <= 0 {
		return
	}
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.settled[key] = settledSearch{places: places, err: err, gen: gen}
	c.mu.Unlock()

	time.AfterFunc(c.linger, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if s, ok := c.settled[key]; ok && s.gen == gen {
			delete(c.settled, key)
		}
	})
}

// pending reports how many settled results are held. Used by tests.
func (c *Coalescer) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.settled)
}

func clonePlaces(in []Place) []Place {
	if in == nil {
		return nil
	}
	out := make([]Place, len(in))
	copy(out, in)
	return out
}
