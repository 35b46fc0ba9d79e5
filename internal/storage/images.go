package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raine/photo-lister/internal/analysis"
)

// ImageState is the analysis lifecycle state of an image.
type ImageState string

const (
	ImageUploaded          ImageState = "uploaded"
	ImageAnalysisRequested ImageState = "analysis_requested"
	ImageAnalysisComplete  ImageState = "analysis_complete"
	ImageAnalysisFailed    ImageState = "analysis_failed"
)

// ImageAsset is a stored photograph attached to a listing, plus its most
// recent analysis outcome.
type ImageAsset struct {
	ID         int64             `json:"id"`
	ListingID  int64             `json:"listing_id"`
	Filename   string            `json:"filename"`
	MimeType   string            `json:"mime_type"`
	SizeBytes  int64             `json:"size_bytes"`
	State      ImageState        `json:"state"`
	Analysis   *analysis.Outcome `json:"analysis,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	AnalyzedAt *time.Time        `json:"analyzed_at,omitempty"`
}

const imageColumns = `id, listing_id, filename, mime_type, size_bytes, state, analysis, created_at, analyzed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*ImageAsset, error) {
	var img ImageAsset
	var state string
	var analysisJSON sql.NullString
	var analyzedAt sql.NullTime
	if err := row.Scan(&img.ID, &img.ListingID, &img.Filename, &img.MimeType, &img.SizeBytes,
		&state, &analysisJSON, &img.CreatedAt, &analyzedAt); err != nil {
		return nil, err
	}
	img.State = ImageState(state)
	if analyzedAt.Valid {
		t := analyzedAt.Time
		img.AnalyzedAt = &t
	}
	if analysisJSON.Valid && analysisJSON.String != "" {
		var out analysis.Outcome
		if err := json.Unmarshal([]byte(analysisJSON.String), &out); err != nil {
			return nil, fmt.Errorf("failed to decode analysis for image %d: %w", img.ID, err)
		}
		img.Analysis = &out
	}
	return &img, nil
}

// CreateImage inserts an image row in the uploaded state.
func (s *SQLiteStore) CreateImage(img *ImageAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img.State = ImageUploaded
	img.CreatedAt = time.Now().UTC()

	res, err := s.db.Exec(
		`INSERT INTO images (listing_id, filename, mime_type, size_bytes, state, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		img.ListingID, img.Filename, img.MimeType, img.SizeBytes, string(img.State), img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read image id: %w", err)
	}
	img.ID = id
	return nil
}

// GetImage retrieves an image by ID.
// Returns nil, nil if the image doesn't exist.
func (s *SQLiteStore) GetImage(id int64) (*ImageAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, err := scanImage(s.db.QueryRow(`SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}
	return img, nil
}

// ListImages returns the images of a listing in upload order.
func (s *SQLiteStore) ListImages(listingID int64) ([]ImageAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+imageColumns+` FROM images WHERE listing_id = ? ORDER BY id ASC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := []ImageAsset{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// PrimaryImage returns the first image uploaded for a listing.
// Returns nil, nil if the listing has no images.
func (s *SQLiteStore) PrimaryImage(listingID int64) (*ImageAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, err := scanImage(s.db.QueryRow(
		`SELECT `+imageColumns+` FROM images WHERE listing_id = ? ORDER BY id ASC LIMIT 1`, listingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query primary image: %w", err)
	}
	return img, nil
}

// SetImageState moves an image to a new state without touching its analysis.
func (s *SQLiteStore) SetImageState(id int64, state ImageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`UPDATE images SET state = ? WHERE id = ?`, string(state), id); err != nil {
		return fmt.Errorf("failed to set image state: %w", err)
	}
	return nil
}

// SaveImageAnalysis stores the outcome of an analysis and the resulting state.
func (s *SQLiteStore) SaveImageAnalysis(id int64, outcome analysis.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	state := ImageAnalysisFailed
	if outcome.Succeeded() {
		state = ImageAnalysisComplete
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`UPDATE images SET state = ?, analysis = ?, analyzed_at = ? WHERE id = ?`,
		string(state), string(data), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// DeleteImage removes an image row.
func (s *SQLiteStore) DeleteImage(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
