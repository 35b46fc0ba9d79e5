package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raine/photo-lister/internal/analysis"
)

// sqliteTimestamp matches the format of CURRENT_TIMESTAMP.
const sqliteTimestamp = "2006-01-02 15:04:05"

// FailInterruptedAnalyses marks every image still in analysis_requested as
// failed with the given reason. Only safe while no analysis is running,
// i.e. at startup.
func (s *SQLiteStore) FailInterruptedAnalyses(reason string) (int64, error) {
	data, err := json.Marshal(analysis.Failure(reason, ""))
	if err != nil {
		return 0, fmt.Errorf("failed to encode analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE images SET state = ?, analysis = ?, analyzed_at = ? WHERE state = ?`,
		string(ImageAnalysisFailed), string(data), time.Now().UTC(), string(ImageAnalysisRequested),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted analyses: %w", err)
	}
	return res.RowsAffected()
}

// PruneAnalysisCache deletes cache entries written before cutoff.
func (s *SQLiteStore) PruneAnalysisCache(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM analysis_cache WHERE created_at < ?`, cutoff.UTC().Format(sqliteTimestamp))
	if err != nil {
		return 0, fmt.Errorf("failed to prune analysis cache: %w", err)
	}
	return res.RowsAffected()
}
