package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultListName is the name given to the implicitly created default list.
const DefaultListName = "Favorites"

const listColumns = `l.id, l.user_id, l.name, l.description, l.is_default, l.created_at, l.updated_at,
	(SELECT COUNT(*) FROM list_restaurants lr WHERE lr.list_id = l.id)`

func scanList(r rowScanner) (List, error) {
	var l List
	var isDefault int
	var createdAt, updatedAt string
	if err := r.Scan(&l.ID, &l.UserID, &l.Name, &l.Description, &isDefault, &createdAt, &updatedAt, &l.RestaurantCount); err != nil {
		return List{}, err
	}
	l.IsDefault = isDefault == 1
	var err error
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return List{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return List{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return l, nil
}

// EnsureDefaultList returns the user's default list, creating it if absent.
// The partial unique index on (user_id) WHERE is_default = 1 makes concurrent
// callers converge on one row.
func (s *Store) EnsureDefaultList(userID string) (List, error) {
	now := formatTime(time.Now())
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO lists (id, user_id, name, description, is_default, created_at, updated_at)
		VALUES (?, ?, ?, '', 1, ?, ?)`,
		uuid.New().String(), userID, DefaultListName, now, now,
	)
	if err != nil {
		return List{}, fmt.Errorf("creating default list: %w", err)
	}
	l, err := scanList(s.db.QueryRow(`SELECT `+listColumns+` FROM lists l WHERE l.user_id = ? AND l.is_default = 1`, userID))
	if err != nil {
		return List{}, fmt.Errorf("loading default list: %w", err)
	}
	return l, nil
}

func (s *Store) CreateList(userID, name, description string) (List, error) {
	id := uuid.New().String()
	now := formatTime(time.Now())
	if _, err := s.db.Exec(`
		INSERT INTO lists (id, user_id, name, description, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, userID, name, description, now, now,
	); err != nil {
		return List{}, err
	}
	return s.GetList(userID, id)
}

// GetList returns the list if it exists and is owned by userID.
func (s *Store) GetList(userID, id string) (List, error) {
	l, err := scanList(s.db.QueryRow(`SELECT `+listColumns+` FROM lists l WHERE l.id = ? AND l.user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return List{}, ErrNotFound
	}
	return l, err
}

// ListLists returns the user's lists, default first, then newest first.
func (s *Store) ListLists(userID string) ([]List, error) {
	rows, err := s.db.Query(`SELECT `+listColumns+` FROM lists l WHERE l.user_id = ?
		ORDER BY l.is_default DESC, l.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

// UpdateList changes name and/or description. Nil fields are left as is.
func (s *Store) UpdateList(userID, id string, name, description *string) (List, error) {
	current, err := s.GetList(userID, id)
	if err != nil {
		return List{}, err
	}
	if name != nil {
		current.Name = *name
	}
	if description != nil {
		current.Description = *description
	}
	if _, err := s.db.Exec(`UPDATE lists SET name = ?, description = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		current.Name, current.Description, formatTime(time.Now()), id, userID); err != nil {
		return List{}, err
	}
	return s.GetList(userID, id)
}

// DeleteList removes a non-default list and its memberships.
func (s *Store) DeleteList(userID, id string) error {
	l, err := s.GetList(userID, id)
	if err != nil {
		return err
	}
	if l.IsDefault {
		return ErrDefaultList
	}
	_, err = s.db.Exec(`DELETE FROM lists WHERE id = ? AND user_id = ? AND is_default = 0`, id, userID)
	return err
}

// AddToList inserts placeID into the list if absent. added is false when the
// place was already a member.
func (s *Store) AddToList(userID, listID, placeID string) (added bool, err error) {
	if _, err := s.GetList(userID, listID); err != nil {
		return false, err
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO list_restaurants (list_id, place_id, added_at) VALUES (?, ?, ?)`,
		listID, placeID, formatTime(time.Now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) RemoveFromList(userID, listID, placeID string) error {
	if _, err := s.GetList(userID, listID); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM list_restaurants WHERE list_id = ? AND place_id = ?`, listID, placeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMembers returns the list's members, most recently added first.
func (s *Store) ListMembers(listID string) ([]ListMember, error) {
	rows, err := s.db.Query(`SELECT list_id, place_id, added_at FROM list_restaurants
		WHERE list_id = ? ORDER BY added_at DESC`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ListMember
	for rows.Next() {
		var m ListMember
		var addedAt string
		if err := rows.Scan(&m.ListID, &m.PlaceID, &addedAt); err != nil {
			return nil, err
		}
		if m.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, fmt.Errorf("parsing added_at: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
