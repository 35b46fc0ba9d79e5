// Package usage keeps the append-only ledger of AI token consumption and cost.
package usage

import (
	"fmt"
	"time"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Operation is the kind of provider call a record accounts for.
type Operation string

const (
	OpImageAnalysis  Operation = "image-analysis"
	OpTextGeneration Operation = "text-generation"
)

// Record is one immutable ledger entry.
type Record struct {
	ID               int64
	Operation        Operation
	Provider         string
	Model            string
	ListingID        int64
	PromptTokens     int64
	CompletionTokens int64
	Estimated        bool
	InputCost        decimal.Decimal
	OutputCost       decimal.Decimal
	Currency         string
	Success          bool
	CreatedAt        time.Time
}

// Cost returns the total cost of the record.
func (r Record) Cost() decimal.Decimal {
	return r.InputCost.Add(r.OutputCost)
}

// Store persists ledger entries. Implementations must be safe for concurrent
// appends.
type Store interface {
	AppendUsage(r *Record) error
	UsageSince(since time.Time) ([]Record, error)
}

// Entry describes a finished provider call to be recorded.
type Entry struct {
	Operation Operation
	Provider  string
	Model     string
	ListingID int64
	Usage     analysis.Usage
	Success   bool
}

// Ledger prices provider calls and appends them to a Store.
type Ledger struct {
	store   Store
	pricing PricingTable
	now     func() time.Time
}

// NewLedger creates a ledger. A nil pricing table uses DefaultPricing.
func NewLedger(store Store, pricing PricingTable) *Ledger {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Ledger{store: store, pricing: pricing, now: time.Now}
}

// Record computes the cost of a call and appends it. Models missing from the
// pricing table are recorded at zero cost.
func (l *Ledger) Record(e Entry) (*Record, error) {
	r := &Record{
		Operation:        e.Operation,
		Provider:         e.Provider,
		Model:            e.Model,
		ListingID:        e.ListingID,
		PromptTokens:     e.Usage.PromptTokens,
		CompletionTokens: e.Usage.CompletionTokens,
		Estimated:        e.Usage.Estimated,
		InputCost:        decimal.Zero,
		OutputCost:       decimal.Zero,
		Currency:         Currency,
		Success:          e.Success,
		CreatedAt:        l.now().UTC(),
	}

	if p, ok := l.pricing.Lookup(e.Model); ok {
		r.InputCost = decimal.NewFromInt(r.PromptTokens).Mul(p.InputRate())
		r.OutputCost = decimal.NewFromInt(r.CompletionTokens).Mul(p.OutputRate())
	} else {
		log.Warn().
			Str("provider", e.Provider).
			Str("model", e.Model).
			Msg("no pricing for model, recording zero cost")
	}

	if err := l.store.AppendUsage(r); err != nil {
		return nil, fmt.Errorf("failed to append usage record: %w", err)
	}

	log.Debug().
		Str("operation", string(r.Operation)).
		Str("model", r.Model).
		Int64("listingID", r.ListingID).
		Int64("inputTokens", r.PromptTokens).
		Int64("outputTokens", r.CompletionTokens).
		Float64("costUSD", r.Cost().InexactFloat64()).
		Msg("usage recorded")
	return r, nil
}

// OperationSummary aggregates the records of one operation kind.
type OperationSummary struct {
	Requests         int64           `json:"requests"`
	PromptTokens     int64           `json:"prompt_tokens"`
	CompletionTokens int64           `json:"completion_tokens"`
	TotalTokens      int64           `json:"total_tokens"`
	Cost             decimal.Decimal `json:"cost"`
}

// Summary aggregates all records in a window.
type Summary struct {
	Since         time.Time                       `json:"since"`
	TotalCost     decimal.Decimal                 `json:"total_cost"`
	TotalTokens   int64                           `json:"total_tokens"`
	TotalRequests int64                           `json:"total_requests"`
	Currency      string                          `json:"currency"`
	Operations    map[Operation]*OperationSummary `json:"operations"`
}

// Aggregate sums the records created at or after since. It is recomputed
// from the stored entries on every call.
func (l *Ledger) Aggregate(since time.Time) (*Summary, error) {
	records, err := l.store.UsageSince(since)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}
	return Summarize(since, records), nil
}

// Summarize reduces records into a Summary.
func Summarize(since time.Time, records []Record) *Summary {
	s := &Summary{
		Since:      since,
		TotalCost:  decimal.Zero,
		Currency:   Currency,
		Operations: make(map[Operation]*OperationSummary),
	}
	for _, r := range records {
		op, ok := s.Operations[r.Operation]
		if !ok {
			op = &OperationSummary{Cost: decimal.Zero}
			s.Operations[r.Operation] = op
		}
		tokens := r.PromptTokens + r.CompletionTokens
		cost := r.Cost()

		op.Requests++
		op.PromptTokens += r.PromptTokens
		op.CompletionTokens += r.CompletionTokens
		op.TotalTokens += tokens
		op.Cost = op.Cost.Add(cost)

		s.TotalRequests++
		s.TotalTokens += tokens
		s.TotalCost = s.TotalCost.Add(cost)
	}
	return s
}
