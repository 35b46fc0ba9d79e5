package storage

import (
	"fmt"
	"time"

	"github.com/raine/photo-lister/internal/usage"
	"github.com/shopspring/decimal"
)

var _ usage.Store = (*SQLiteStore)(nil)

// AppendUsage inserts a ledger entry and sets its ID. Entries are never
// updated afterwards.
func (s *SQLiteStore) AppendUsage(r *usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO usage_records (
			operation, provider, model, listing_id,
			prompt_tokens, completion_tokens, estimated,
			input_cost, output_cost, currency, success, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.Operation), r.Provider, r.Model, r.ListingID,
		r.PromptTokens, r.CompletionTokens, boolToInt(r.Estimated),
		r.InputCost.String(), r.OutputCost.String(), r.Currency, boolToInt(r.Success),
		r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read usage record id: %w", err)
	}
	r.ID = id
	return nil
}

// UsageSince returns the ledger entries created at or after since, oldest first.
func (s *SQLiteStore) UsageSince(since time.Time) ([]usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, operation, provider, model, listing_id,
		       prompt_tokens, completion_tokens, estimated,
		       input_cost, output_cost, currency, success, created_at_ms
		FROM usage_records
		WHERE created_at_ms >= ?
		ORDER BY id ASC`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []usage.Record
	for rows.Next() {
		var r usage.Record
		var op, inputCost, outputCost string
		var estimated, success int
		var createdAtMs int64
		if err := rows.Scan(
			&r.ID, &op, &r.Provider, &r.Model, &r.ListingID,
			&r.PromptTokens, &r.CompletionTokens, &estimated,
			&inputCost, &outputCost, &r.Currency, &success, &createdAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		r.Operation = usage.Operation(op)
		r.Estimated = estimated != 0
		r.Success = success != 0
		r.CreatedAt = time.UnixMilli(createdAtMs).UTC()
		if r.InputCost, err = decimal.NewFromString(inputCost); err != nil {
			return nil, fmt.Errorf("invalid input cost %q in usage record %d: %w", inputCost, r.ID, err)
		}
		if r.OutputCost, err = decimal.NewFromString(outputCost); err != nil {
			return nil, fmt.Errorf("invalid output cost %q in usage record %d: %w", outputCost, r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
