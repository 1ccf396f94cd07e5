// Package preferences manages each user's saved dining preferences.
package preferences

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kalambet/dishcover/internal/storage"
)

const (
	DefaultTTL         = 60 * time.Second
	DefaultMaxDistance = 10.0
)

// ErrInvalid wraps every validation failure returned by Save.
var ErrInvalid = errors.New("invalid preferences")

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	GetPreferences(userID string) (storage.UserPreferences, error)
	UpsertPreferences(p storage.UserPreferences) error
	EnsureDefaultList(userID string) (storage.List, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Preferences is the client-facing shape of a user's preferences.
type Preferences struct {
	DefaultCity     string     `json:"default_city" validate:"required,max=200"`
	Cuisines        []string   `json:"cuisines" validate:"max=50,dive,required,max=100"`
	PriceRange      []int      `json:"price_range" validate:"max=4,dive,min=1,max=4"`
	MaxDistance     float64    `json:"max_distance" validate:"omitempty,min=0.5,max=25"`
	VibeTags        []string   `json:"vibe_tags" validate:"max=50,dive,required,max=100"`
	AgeRange        string     `json:"age_range,omitempty" validate:"max=50"`
	Neighborhood    string     `json:"neighborhood,omitempty" validate:"max=200"`
	DiningFrequency string     `json:"dining_frequency,omitempty" validate:"max=50"`
	TypicalSpend    string     `json:"typical_spend,omitempty" validate:"max=50"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// FromStorage converts a stored row to its client-facing shape.
func FromStorage(p storage.UserPreferences) Preferences {
	created, updated := p.CreatedAt, p.UpdatedAt
	return Preferences{
		DefaultCity:     p.DefaultCity,
		Cuisines:        nonNil(p.Cuisines),
		PriceRange:      nonNil(p.PriceRange),
		MaxDistance:     p.MaxDistance,
		VibeTags:        nonNil(p.VibeTags),
		AgeRange:        p.AgeRange,
		Neighborhood:    p.Neighborhood,
		DiningFrequency: p.DiningFrequency,
		TypicalSpend:    p.TypicalSpend,
		CreatedAt:       &created,
		UpdatedAt:       &updated,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks p and returns an error wrapping ErrInvalid that names the
// first offending field.
func Validate(p Preferences) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalid, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch {
	case strings.HasPrefix(fe.Namespace(), "Preferences.PriceRange["):
		return "price levels must be between 1 and 4"
	case fe.Field() == "MaxDistance":
		return "max distance must be between 0.5 and 25 miles"
	case fe.Field() == "DefaultCity" && fe.Tag() == "required":
		return "default city is required"
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}

type entry struct {
	prefs    storage.UserPreferences
	cachedAt time.Time
}

// Manager provides cached, per-user access to preferences stored in SQLite.
type Manager struct {
	store Store
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]entry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store Store) *Manager {
	return NewManagerWithClock(store, realClock{}, DefaultTTL)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, clock Clock, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]entry),
	}
}

// Get returns the user's preferences. A user who never saved preferences
// yields an error wrapping storage.ErrNotFound; absence is not cached.
func (m *Manager) Get(userID string) (storage.UserPreferences, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		m.mu.RUnlock()
		return copyPrefs(e.prefs), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		return copyPrefs(e.prefs), nil
	}

	p, err := m.store.GetPreferences(userID)
	if err != nil {
		delete(m.cache, userID)
		return storage.UserPreferences{}, fmt.Errorf("loading preferences: %w", err)
	}
	m.cache[userID] = entry{prefs: p, cachedAt: m.clock.Now()}
	return copyPrefs(p), nil
}

// Save validates and persists the user's preferences, ensures the user has
// a default list and invalidates the cached copy.
func (m *Manager) Save(userID string, p Preferences) (storage.UserPreferences, error) {
	p.DefaultCity = strings.TrimSpace(p.DefaultCity)
	if err := Validate(p); err != nil {
		return storage.UserPreferences{}, err
	}
	if p.MaxDistance == 0 {
		p.MaxDistance = DefaultMaxDistance
	}

	row := storage.UserPreferences{
		UserID:          userID,
		DefaultCity:     p.DefaultCity,
		Cuisines:        nonNil(p.Cuisines),
		PriceRange:      nonNil(p.PriceRange),
		MaxDistance:     p.MaxDistance,
		VibeTags:        nonNil(p.VibeTags),
		AgeRange:        p.AgeRange,
		Neighborhood:    p.Neighborhood,
		DiningFrequency: p.DiningFrequency,
		TypicalSpend:    p.TypicalSpend,
	}

	m.mu.Lock()
	err := m.store.UpsertPreferences(row)
	delete(m.cache, userID)
	m.mu.Unlock()
	if err != nil {
		return storage.UserPreferences{}, fmt.Errorf("saving preferences: %w", err)
	}

	if _, err := m.store.EnsureDefaultList(userID); err != nil {
		return storage.UserPreferences{}, fmt.Errorf("creating default list: %w", err)
	}
	return m.Get(userID)
}

// Invalidate drops the cached preferences for userID.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	delete(m.cache, userID)
	m.mu.Unlock()
}

func copyPrefs(p storage.UserPreferences) storage.UserPreferences {
	p.Cuisines = slices.Clone(p.Cuisines)
	p.PriceRange = slices.Clone(p.PriceRange)
	p.VibeTags = slices.Clone(p.VibeTags)
	return p
}
