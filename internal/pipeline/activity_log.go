package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ActivityLog writes a human-readable log file per listing. It is an
// observability aid only; the database remains the record of truth.
// A nil *ActivityLog discards everything.
type ActivityLog struct {
	dir string
	mu  sync.Mutex
}

// NewActivityLog creates the log directory.
func NewActivityLog(dir string) (*ActivityLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create activity log directory: %w", err)
	}
	return &ActivityLog{dir: dir}, nil
}

// Path returns the log file of a listing.
func (a *ActivityLog) Path(listingID int64) string {
	return filepath.Join(a.dir, fmt.Sprintf("listing_%d.log", listingID))
}

func (a *ActivityLog) appendLog(listingID int64, prefix, msg string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.Path(listingID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Error().Err(err).Int64("listingID", listingID).Msg("failed to write activity log")
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] %s %s\n", timestamp, prefix, msg)
}

// Upload logs a stored image.
func (a *ActivityLog) Upload(listingID int64, format string, args ...any) {
	a.appendLog(listingID, "UPLOAD  ", fmt.Sprintf(format, args...))
}

// State logs an image state transition.
func (a *ActivityLog) State(listingID int64, format string, args ...any) {
	a.appendLog(listingID, "STATE   ", fmt.Sprintf(format, args...))
}

// LLM logs a provider interaction.
func (a *ActivityLog) LLM(listingID int64, format string, args ...any) {
	a.appendLog(listingID, "LLM     ", fmt.Sprintf(format, args...))
}

// Reconcile logs fields filled from suggestions.
func (a *ActivityLog) Reconcile(listingID int64, format string, args ...any) {
	a.appendLog(listingID, "RECONCIL", fmt.Sprintf(format, args...))
}

// Error logs a failure.
func (a *ActivityLog) Error(listingID int64, format string, args ...any) {
	a.appendLog(listingID, "ERROR   ", fmt.Sprintf(format, args...))
}
