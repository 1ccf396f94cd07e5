package placecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/dishcover/internal/places"
)

type stubProvider struct {
	results  []places.Place
	err      error
	searches []places.SearchParams
	details  map[string]places.Place
	lookups  []string
}

func (s *stubProvider) Search(ctx context.Context, p places.SearchParams) ([]places.Place, error) {
	s.searches = append(s.searches, p)
	return s.results, s.err
}

func (s *stubProvider) Details(ctx context.Context, id string) (places.Place, error) {
	s.lookups = append(s.lookups, id)
	p, ok := s.details[id]
	if !ok {
		return places.Place{}, errors.New("not found upstream")
	}
	return p, nil
}

func TestFinderSearch_CachesResults(t *testing.T) {
	c, clock := newTestCache(t)
	prov := &stubProvider{results: []places.Place{
		{PlaceID: "p1", Name: "Cheap", PriceLevel: 1},
		{PlaceID: "p2", Name: "Fancy", PriceLevel: 4},
		{Name: "No ID", PriceLevel: 1, ContentID: "content:abc"},
	}}
	f := NewFinder(c, prov, prov)
	params := places.SearchParams{City: "Austin", PriceLevels: []int{1, 2}, Limit: 5}

	got, err := f.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].PlaceID != "p1" || got[1].Name != "No ID" {
		t.Errorf("got = %+v", got)
	}
	if len(prov.searches) != 1 || prov.searches[0].Limit != places.MaxResults {
		t.Errorf("searches = %+v, want one call with limit %d", prov.searches, places.MaxResults)
	}

	if _, ok, _ := c.Get("p1"); !ok {
		t.Error("identified result should be in place cache")
	}
	if _, ok, _ := c.Get("p2"); ok {
		t.Error("price-filtered result should not be cached")
	}

	// Second call within the hour is served from the search cache.
	clock.Advance(59 * time.Minute)
	if _, err := f.Search(context.Background(), params); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(prov.searches) != 1 {
		t.Errorf("provider called %d times, want 1", len(prov.searches))
	}

	// At exactly one hour the entry is stale.
	clock.Advance(time.Minute)
	if _, err := f.Search(context.Background(), params); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(prov.searches) != 2 {
		t.Errorf("provider called %d times, want 2", len(prov.searches))
	}
}

func TestFinderSearch_ProviderError(t *testing.T) {
	c, _ := newTestCache(t)
	prov := &stubProvider{err: errors.New("quota")}
	if _, err := NewFinder(c, prov, prov).Search(context.Background(), places.SearchParams{City: "Austin"}); err == nil {
		t.Error("expected error")
	}
}

func TestFinderDetails(t *testing.T) {
	c, clock := newTestCache(t)
	prov := &stubProvider{details: map[string]places.Place{"p1": {PlaceID: "p1", Name: "Uchi"}}}
	f := NewFinder(c, prov, prov)

	p, err := f.Details(context.Background(), "p1")
	if err != nil || p.Name != "Uchi" {
		t.Fatalf("Details = %+v, %v", p, err)
	}
	if _, err := f.Details(context.Background(), "p1"); err != nil {
		t.Fatalf("Details: %v", err)
	}
	if len(prov.lookups) != 1 {
		t.Errorf("provider lookups = %d, want 1 (second served from cache)", len(prov.lookups))
	}

	clock.Advance(DefaultPlaceTTL)
	if _, err := f.Details(context.Background(), "p1"); err != nil {
		t.Fatalf("Details: %v", err)
	}
	if len(prov.lookups) != 2 {
		t.Errorf("provider lookups = %d, want 2 after expiry", len(prov.lookups))
	}

	if _, err := f.Details(context.Background(), "content:0011"); !errors.Is(err, ErrContentID) {
		t.Errorf("err = %v, want ErrContentID", err)
	}
	if _, err := f.Details(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown place")
	}
}
