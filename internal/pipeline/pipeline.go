// Package pipeline sequences image intake, analysis, usage accounting and
// reconciliation of suggestions into listings.
package pipeline

import (
	"context"
	"time"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/assets"
	"github.com/raine/photo-lister/internal/llm"
	"github.com/raine/photo-lister/internal/storage"
	"github.com/raine/photo-lister/internal/usage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxUploadBytes caps a single image.
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// Store is the persistence the pipeline needs.
type Store interface {
	GetListing(id int64) (*storage.Listing, error)
	DeleteListing(id int64) ([]string, error)
	ApplySuggestions(id int64, u storage.ListingUpdate) ([]string, error)
	CreateImage(img *storage.ImageAsset) error
	GetImage(id int64) (*storage.ImageAsset, error)
	ListImages(listingID int64) ([]storage.ImageAsset, error)
	PrimaryImage(listingID int64) (*storage.ImageAsset, error)
	SetImageState(id int64, state storage.ImageState) error
	SaveImageAnalysis(id int64, outcome analysis.Outcome) error
}

// AssetStore keeps image bytes.
type AssetStore interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
	Thumbnail(ctx context.Context, name string) (string, error)
	Read(ctx context.Context, kind assets.Kind, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// Analyzer dispatches provider calls.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, cfg llm.ProviderConfig, data []byte, mimeType string) analysis.Outcome
	GenerateText(ctx context.Context, cfg llm.ProviderConfig, prompt string) (*llm.TextResult, error)
	Timeout() time.Duration
}

// ConfigSource provides the active provider selection.
type ConfigSource interface {
	Snapshot() llm.ProviderConfig
	Configured(cfg llm.ProviderConfig) bool
}

// UsageRecorder appends ledger entries.
type UsageRecorder interface {
	Record(e usage.Entry) (*usage.Record, error)
}

// Deps are the collaborators of a Pipeline. Activity may be nil.
type Deps struct {
	Store    Store
	Assets   AssetStore
	Client   Analyzer
	Settings ConfigSource
	Ledger   UsageRecorder
	Activity *ActivityLog
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	store          Store
	assets         AssetStore
	client         Analyzer
	settings       ConfigSource
	ledger         UsageRecorder
	activity       *ActivityLog
	maxUploadBytes int64

	locks  *keyedMutex
	flight singleflight.Group
}

// New creates a pipeline. maxUploadBytes <= 0 uses DefaultMaxUploadBytes.
func New(deps Deps, maxUploadBytes int64) *Pipeline {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Pipeline{
		store:          deps.Store,
		assets:         deps.Assets,
		client:         deps.Client,
		settings:       deps.Settings,
		ledger:         deps.Ledger,
		activity:       deps.Activity,
		maxUploadBytes: maxUploadBytes,
		locks:          newKeyedMutex(),
	}
}

// MaxUploadBytes returns the per-image size limit.
func (p *Pipeline) MaxUploadBytes() int64 {
	return p.maxUploadBytes
}

func (p *Pipeline) getListing(id int64) (*storage.Listing, error) {
	listing, err := p.store.GetListing(id)
	if err != nil {
		return nil, apperr.Storage("failed to load listing", err)
	}
	if listing == nil {
		return nil, apperr.NotFound("listing not found")
	}
	return listing, nil
}

func (p *Pipeline) recordUsage(op usage.Operation, listingID int64, provider, model string, u analysis.Usage, success bool) {
	_, err := p.ledger.Record(usage.Entry{
		Operation: op,
		Provider:  provider,
		Model:     model,
		ListingID: listingID,
		Usage:     u,
		Success:   success,
	})
	if err != nil {
		log.Error().Err(err).Int64("listingID", listingID).Msg("failed to record usage")
	}
}

// DeleteListing removes a listing, its image rows and their files. File
// removal failures are logged, not returned.
func (p *Pipeline) DeleteListing(ctx context.Context, id int64) error {
	if _, err := p.getListing(id); err != nil {
		return err
	}

	unlock := p.locks.Lock(id)
	filenames, err := p.store.DeleteListing(id)
	unlock()
	if err != nil {
		return apperr.Storage("failed to delete listing", err)
	}

	for _, name := range filenames {
		if err := p.assets.Delete(ctx, name); err != nil {
			log.Error().Err(err).Str("filename", name).Int64("listingID", id).Msg("failed to delete image files")
		}
	}
	log.Info().Int64("listingID", id).Int("images", len(filenames)).Msg("listing deleted")
	return nil
}

// ImageStatus is the analysis state of one image.
type ImageStatus struct {
	ImageID    int64              `json:"image_id"`
	Filename   string             `json:"filename"`
	State      storage.ImageState `json:"state"`
	Reason     string             `json:"reason,omitempty"`
	AnalyzedAt *time.Time         `json:"analyzed_at,omitempty"`
}

// ListingStatus reports the analysis progress of a listing.
type ListingStatus struct {
	ListingID int64         `json:"listing_id"`
	Analyzing bool          `json:"analyzing"`
	Images    []ImageStatus `json:"images"`
}

// Status returns the real per-image states of a listing.
func (p *Pipeline) Status(listingID int64) (*ListingStatus, error) {
	if _, err := p.getListing(listingID); err != nil {
		return nil, err
	}
	images, err := p.store.ListImages(listingID)
	if err != nil {
		return nil, apperr.Storage("failed to load images", err)
	}

	status := &ListingStatus{ListingID: listingID, Images: make([]ImageStatus, 0, len(images))}
	for _, img := range images {
		s := ImageStatus{
			ImageID:    img.ID,
			Filename:   img.Filename,
			State:      img.State,
			AnalyzedAt: img.AnalyzedAt,
		}
		if img.Analysis != nil && !img.Analysis.Succeeded() {
			s.Reason = img.Analysis.Reason
		}
		if img.State == storage.ImageAnalysisRequested {
			status.Analyzing = true
		}
		status.Images = append(status.Images, s)
	}
	return status, nil
}
