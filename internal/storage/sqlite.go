package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Store wraps a SQLite database with methods for preferences, interactions,
// the place and search caches, lists, summaries and jobs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "dishcover.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Preferences ---

func (s *Store) GetPreferences(userID string) (UserPreferences, error) {
	var p UserPreferences
	var cuisines, priceRange, vibeTags, createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT user_id, default_city, cuisines, price_range, max_distance, vibe_tags,
			age_range, neighborhood, dining_frequency, typical_spend, created_at, updated_at
		FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.DefaultCity, &cuisines, &priceRange, &p.MaxDistance, &vibeTags,
		&p.AgeRange, &p.Neighborhood, &p.DiningFrequency, &p.TypicalSpend, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return UserPreferences{}, ErrNotFound
	}
	if err != nil {
		return UserPreferences{}, err
	}
	if err := json.Unmarshal([]byte(cuisines), &p.Cuisines); err != nil {
		return UserPreferences{}, fmt.Errorf("parsing cuisines: %w", err)
	}
	if err := json.Unmarshal([]byte(priceRange), &p.PriceRange); err != nil {
		return UserPreferences{}, fmt.Errorf("parsing price_range: %w", err)
	}
	if err := json.Unmarshal([]byte(vibeTags), &p.VibeTags); err != nil {
		return UserPreferences{}, fmt.Errorf("parsing vibe_tags: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return UserPreferences{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return UserPreferences{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

// UpsertPreferences creates or replaces the user's preferences. created_at is
// preserved across updates.
func (s *Store) UpsertPreferences(p UserPreferences) error {
	cuisines, err := json.Marshal(nonNilStrings(p.Cuisines))
	if err != nil {
		return err
	}
	priceRange, err := json.Marshal(nonNilInts(p.PriceRange))
	if err != nil {
		return err
	}
	vibeTags, err := json.Marshal(nonNilStrings(p.VibeTags))
	if err != nil {
		return err
	}
	now := formatTime(time.Now())
	_, err = s.db.Exec(`
		INSERT INTO user_preferences (user_id, default_city, cuisines, price_range, max_distance, vibe_tags,
			age_range, neighborhood, dining_frequency, typical_spend, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			default_city = excluded.default_city,
			cuisines = excluded.cuisines,
			price_range = excluded.price_range,
			max_distance = excluded.max_distance,
			vibe_tags = excluded.vibe_tags,
			age_range = excluded.age_range,
			neighborhood = excluded.neighborhood,
			dining_frequency = excluded.dining_frequency,
			typical_spend = excluded.typical_spend,
			updated_at = excluded.updated_at`,
		p.UserID, p.DefaultCity, string(cuisines), string(priceRange), p.MaxDistance, string(vibeTags),
		p.AgeRange, p.Neighborhood, p.DiningFrequency, p.TypicalSpend, now, now,
	)
	return err
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

// --- Interactions ---

// SaveInteraction appends an interaction. Interactions are never updated.
// An empty ID is replaced by a fresh UUID.
func (s *Store) SaveInteraction(i Interaction) error {
	if !ValidAction(i.Action) {
		return fmt.Errorf("invalid action %q", i.Action)
	}
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	metadata := i.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	createdAt := i.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO interactions (id, user_id, place_id, action, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.PlaceID, i.Action, metadata, formatTime(createdAt),
	)
	return err
}

// RecentInteractions returns up to limit of the user's interactions, newest first.
func (s *Store) RecentInteractions(userID string, limit int) ([]Interaction, error) {
	return s.ListInteractions(userID, limit, 0)
}

// ListInteractions returns a page of the user's interactions, newest first.
func (s *Store) ListInteractions(userID string, limit, offset int) ([]Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, place_id, action, metadata, created_at
		FROM interactions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		if err := rows.Scan(&i.ID, &i.UserID, &i.PlaceID, &i.Action, &i.Metadata, &createdAt); err != nil {
			return nil, err
		}
		if i.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, i)
	}
	return results, rows.Err()
}

// --- Preference summaries ---

func (s *Store) GetSummary(userID string) (PreferenceSummary, error) {
	var ps PreferenceSummary
	var updatedAt string
	err := s.db.QueryRow(`SELECT user_id, summary, updated_at FROM preference_summaries WHERE user_id = ?`, userID).
		Scan(&ps.UserID, &ps.Summary, &updatedAt)
	if err == sql.ErrNoRows {
		return PreferenceSummary{}, ErrNotFound
	}
	if err != nil {
		return PreferenceSummary{}, err
	}
	if ps.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return PreferenceSummary{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return ps, nil
}

// UpsertSummary fully overwrites the user's summary.
func (s *Store) UpsertSummary(userID, summary string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO preference_summaries (user_id, summary, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		userID, summary, formatTime(at),
	)
	return err
}
