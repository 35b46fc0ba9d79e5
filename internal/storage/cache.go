package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/raine/photo-lister/internal/analysis"
)

// GetAnalysisCache retrieves a cached analysis result.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetAnalysisCache(key string) (*analysis.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT result FROM analysis_cache WHERE cache_key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}

	var fields analysis.Fields
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
	}
	return &fields, nil
}

// SetAnalysisCache stores a successful analysis result.
func (s *SQLiteStore) SetAnalysisCache(key string, fields *analysis.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO analysis_cache (cache_key, result)
		VALUES (?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			result = excluded.result,
			created_at = CURRENT_TIMESTAMP
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("failed to cache analysis result: %w", err)
	}
	return nil
}
