package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Placeholder values new listings start with. Together with the empty string
// and a zero price they mark a field the user never set.
const (
	DefaultTitle    = "New Item"
	DefaultCategory = "Miscellaneous"
)

// Listing is a sellable item record.
type Listing struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListingUpdate carries optional field changes. Nil fields are left alone.
type ListingUpdate struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ListingUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil && u.Price == nil
}

func IsUnsetTitle(title string) bool {
	return strings.TrimSpace(title) == "" || title == DefaultTitle
}

func IsUnsetDescription(description string) bool {
	return strings.TrimSpace(description) == ""
}

func IsUnsetCategory(category string) bool {
	return strings.TrimSpace(category) == "" || category == DefaultCategory
}

func IsUnsetPrice(price float64) bool {
	return price == 0
}

// Conditional writes used by ApplySuggestions. Each only touches a field that
// still holds one of its sentinel values, so a concurrent user edit wins.
const (
	suggestTitleQuery       = `UPDATE listings SET title = ?, updated_at = ? WHERE id = ? AND (TRIM(title) = '' OR title = '` + DefaultTitle + `')`
	suggestDescriptionQuery = `UPDATE listings SET description = ?, updated_at = ? WHERE id = ? AND TRIM(description) = ''`
	suggestCategoryQuery    = `UPDATE listings SET category = ?, updated_at = ? WHERE id = ? AND (TRIM(category) = '' OR category = '` + DefaultCategory + `')`
	suggestPriceQuery       = `UPDATE listings SET price = ?, updated_at = ? WHERE id = ? AND price = 0`
)

// CreateListing inserts a listing. Empty title and category get their
// placeholder values.
func (s *SQLiteStore) CreateListing(l *Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(l.Title) == "" {
		l.Title = DefaultTitle
	}
	if strings.TrimSpace(l.Category) == "" {
		l.Category = DefaultCategory
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	res, err := s.db.Exec(
		`INSERT INTO listings (title, description, price, category, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		l.Title, l.Description, l.Price, l.Category, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read listing id: %w", err)
	}
	l.ID = id
	return nil
}

// GetListing retrieves a listing by ID.
// Returns nil, nil if the listing doesn't exist.
func (s *SQLiteStore) GetListing(id int64) (*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var l Listing
	err := s.db.QueryRow(
		`SELECT id, title, description, price, category, created_at, updated_at FROM listings WHERE id = ?`,
		id,
	).Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Category, &l.CreatedAt, &l.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing: %w", err)
	}
	return &l, nil
}

// ListListings returns all listings, newest first.
func (s *SQLiteStore) ListListings() ([]Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, title, description, price, category, created_at, updated_at FROM listings ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []Listing{}
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Category, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// UpdateListing applies an explicit user edit unconditionally.
// Returns nil, nil if the listing doesn't exist.
func (s *SQLiteStore) UpdateListing(id int64, u ListingUpdate) (*Listing, error) {
	s.mu.Lock()
	var sets []string
	var args []any
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *u.Category)
	}
	if u.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *u.Price)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().UTC(), id)
		query := fmt.Sprintf("UPDATE listings SET %s WHERE id = ?", strings.Join(sets, ", "))
		if _, err := s.db.Exec(query, args...); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to update listing: %w", err)
		}
	}
	s.mu.Unlock()

	return s.GetListing(id)
}

// ApplySuggestions writes AI-suggested values into fields that still hold
// their sentinel value, in one transaction. It returns the names of the
// fields actually changed, in the order title, description, category, price.
func (s *SQLiteStore) ApplySuggestions(id int64, u ListingUpdate) ([]string, error) {
	changed := []string{}
	if u.IsEmpty() {
		return changed, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	writes := []struct {
		field string
		query string
		value any
		set   bool
	}{
		{"title", suggestTitleQuery, deref(u.Title), u.Title != nil},
		{"description", suggestDescriptionQuery, deref(u.Description), u.Description != nil},
		{"category", suggestCategoryQuery, deref(u.Category), u.Category != nil},
		{"price", suggestPriceQuery, derefFloat(u.Price), u.Price != nil},
	}

	for _, w := range writes {
		if !w.set {
			continue
		}
		res, err := tx.Exec(w.query, w.value, now, id)
		if err != nil {
			return nil, fmt.Errorf("failed to apply %s suggestion: %w", w.field, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n > 0 {
			changed = append(changed, w.field)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit suggestions: %w", err)
	}
	return changed, nil
}

// DeleteListing removes a listing and, by cascade, its image rows. It returns
// the filenames of the removed images so the caller can delete the files.
func (s *SQLiteStore) DeleteListing(id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT filename FROM images WHERE listing_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query listing images: %w", err)
	}
	var filenames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan filename: %w", err)
		}
		filenames = append(filenames, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read listing images: %w", err)
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM listings WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete listing: %w", err)
	}
	return filenames, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
