// Package api exposes listings, image intake and AI settings over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/assets"
	"github.com/raine/photo-lister/internal/llm"
	"github.com/raine/photo-lister/internal/pipeline"
	"github.com/raine/photo-lister/internal/storage"
	"github.com/raine/photo-lister/internal/usage"
)

// multipartOverhead is allowed on top of the image limit for form framing.
const multipartOverhead = 1 << 20

// ListingStore is the listing persistence the handlers use directly.
type ListingStore interface {
	CreateListing(l *storage.Listing) error
	GetListing(id int64) (*storage.Listing, error)
	ListListings() ([]storage.Listing, error)
	UpdateListing(id int64, u storage.ListingUpdate) (*storage.Listing, error)
	ListImages(listingID int64) ([]storage.ImageAsset, error)
}

// Pipeline runs intake and analysis.
type Pipeline interface {
	Upload(ctx context.Context, req pipeline.UploadRequest) (*pipeline.UploadResult, error)
	Analyze(ctx context.Context, listingID int64) (*pipeline.AnalyzeResult, error)
	Status(listingID int64) (*pipeline.ListingStatus, error)
	SuggestDescription(ctx context.Context, listingID int64) (*llm.TextResult, error)
	DeleteListing(ctx context.Context, id int64) error
	MaxUploadBytes() int64
}

// ImageReader serves stored image bytes.
type ImageReader interface {
	Read(ctx context.Context, kind assets.Kind, name string) ([]byte, error)
	ReadPreview(ctx context.Context, name string) ([]byte, error)
}

// ProviderSettings reads and changes the active AI provider.
type ProviderSettings interface {
	Snapshot() llm.ProviderConfig
	Configured(cfg llm.ProviderConfig) bool
	Update(provider, model, apiKey string) (llm.ProviderConfig, error)
}

// ProviderCatalog lists the available backends.
type ProviderCatalog interface {
	Providers() []llm.ProviderInfo
}

// UsageReporter aggregates the usage ledger.
type UsageReporter interface {
	Aggregate(since time.Time) (*usage.Summary, error)
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Listings  ListingStore
	Pipeline  Pipeline
	Images    ImageReader
	Settings  ProviderSettings
	Providers ProviderCatalog
	Usage     UsageReporter
	// UsageWindow is the default window of GET /ai/usage.
	UsageWindow time.Duration
	Version     string
}

type handler struct {
	Deps
}

// NewHandler builds the router.
func NewHandler(deps Deps) *gin.Engine {
	if deps.UsageWindow <= 0 {
		deps.UsageWindow = 24 * time.Hour
	}
	h := &handler{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", h.health)

	items := r.Group("/items")
	items.POST("", h.createListing)
	items.GET("", h.listListings)
	items.GET("/:id", h.getListing)
	items.PATCH("/:id", h.updateListing)
	items.DELETE("/:id", h.deleteListing)
	items.POST("/:id/images", requestSizeLimiter(deps.Pipeline.MaxUploadBytes()+multipartOverhead), h.uploadImage)
	items.POST("/:id/analyze", h.analyze)
	items.GET("/:id/status", h.status)
	items.POST("/:id/description/suggest", h.suggestDescription)

	ai := r.Group("/ai")
	ai.GET("/usage", h.usageSummary)
	ai.GET("/provider", h.getProvider)
	ai.PUT("/provider", h.putProvider)
	ai.GET("/providers", h.listProviders)

	r.GET("/images/:kind/:name", h.serveImage)

	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": h.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid listing id", err)
	}
	return id, nil
}
