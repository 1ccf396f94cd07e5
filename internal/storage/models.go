package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist or is not
// owned by the caller.
var ErrNotFound = errors.New("not found")

// ErrDefaultList is returned when deleting a user's default list.
var ErrDefaultList = errors.New("cannot delete default list")

// Interaction actions.
const (
	ActionLike  = "like"
	ActionPass  = "pass"
	ActionMaybe = "maybe"
	ActionSave  = "save"
	ActionOpen  = "open"
)

// ValidAction reports whether a is a recognised interaction action.
func ValidAction(a string) bool {
	switch a {
	case ActionLike, ActionPass, ActionMaybe, ActionSave, ActionOpen:
		return true
	}
	return false
}

type Interaction struct {
	ID        string
	UserID    string
	PlaceID   string
	Action    string
	Metadata  string // JSON object stored as text
	CreatedAt time.Time
}

// CachedPlace is a raw place cache row. Data is the JSON-encoded place record.
type CachedPlace struct {
	PlaceID  string
	Data     string
	CachedAt time.Time
}

// SearchCacheEntry is a raw search cache row. Results is a JSON array of places.
type SearchCacheEntry struct {
	Key      string
	Results  string
	CachedAt time.Time
}

type UserPreferences struct {
	UserID          string
	DefaultCity     string
	Cuisines        []string
	PriceRange      []int
	MaxDistance     float64
	VibeTags        []string
	AgeRange        string
	Neighborhood    string
	DiningFrequency string
	TypicalSpend    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PreferenceSummary struct {
	UserID    string
	Summary   string
	UpdatedAt time.Time
}

type List struct {
	ID              string
	UserID          string
	Name            string
	Description     string
	IsDefault       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	RestaurantCount int
}

type ListMember struct {
	ListID  string
	PlaceID string
	AddedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
