package pipeline

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/assets"
	"github.com/raine/photo-lister/internal/storage"
	"github.com/rs/zerolog/log"
)

// AllowedMimeTypes are the image formats accepted for upload.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadRequest is one image upload for a listing.
type UploadRequest struct {
	ListingID int64
	Data      []byte
	// MimeType is the type declared by the client.
	MimeType string
	// SkipAI stores the image without analyzing it.
	SkipAI bool
}

// UploadResult is what an upload produced. Analysis is nil when analysis
// was skipped or no provider is configured.
type UploadResult struct {
	Image         *storage.ImageAsset `json:"image"`
	Analysis      *analysis.Outcome   `json:"ai_analysis"`
	UpdatedFields []string            `json:"updated_fields"`
}

// validateUpload checks size, declared type, sniffed type and the image
// header, before anything is stored. It returns the sniffed type, which is
// what gets stored.
func (p *Pipeline) validateUpload(req UploadRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", apperr.Validation("image is empty", nil)
	}
	if int64(len(req.Data)) > p.maxUploadBytes {
		return "", apperr.TooLarge(fmt.Sprintf("image exceeds the %d MB limit", p.maxUploadBytes/(1024*1024)))
	}

	declared := strings.ToLower(strings.TrimSpace(req.MimeType))
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	if !AllowedMimeTypes[declared] {
		return "", apperr.Validation(fmt.Sprintf("unsupported image type %q (allowed: jpeg, png, gif, webp)", req.MimeType), nil)
	}

	sniffed := http.DetectContentType(req.Data)
	if !AllowedMimeTypes[sniffed] {
		return "", apperr.Validation(fmt.Sprintf("file content is not a supported image (detected %s)", sniffed), nil)
	}
	if err := assets.CheckDimensions(req.Data, assets.DefaultMaxPixels); err != nil {
		return "", apperr.Validation("image could not be decoded", err)
	}
	return sniffed, nil
}

// Upload validates and stores an image, creates its thumbnail and row, and
// unless skipped analyzes it right away. Analysis failures never fail the
// upload; they are reported in the result.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	mimeType, err := p.validateUpload(req)
	if err != nil {
		return nil, err
	}
	if _, err := p.getListing(req.ListingID); err != nil {
		return nil, err
	}

	name, err := p.assets.Save(ctx, req.Data, assets.ExtensionFor(mimeType))
	if err != nil {
		return nil, apperr.Storage("failed to store image", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := p.assets.Delete(context.WithoutCancel(ctx), name); err != nil {
			log.Error().Err(err).Str("filename", name).Msg("failed to clean up after failed upload")
		}
	}()

	if _, err := p.assets.Thumbnail(ctx, name); err != nil {
		if errors.Is(err, assets.ErrUndecodable) {
			return nil, apperr.Validation("image could not be decoded", err)
		}
		return nil, apperr.Storage("failed to create thumbnail", err)
	}

	img := &storage.ImageAsset{
		ListingID: req.ListingID,
		Filename:  name,
		MimeType:  mimeType,
		SizeBytes: int64(len(req.Data)),
	}
	if err := p.store.CreateImage(img); err != nil {
		return nil, apperr.Storage("failed to save image record", err)
	}
	committed = true

	log.Info().
		Int64("listingID", req.ListingID).
		Int64("imageID", img.ID).
		Str("mimeType", mimeType).
		Int("bytes", len(req.Data)).
		Msg("image uploaded")
	p.activity.Upload(req.ListingID, "image %d stored as %s (%s, %d bytes)", img.ID, name, mimeType, len(req.Data))

	result := &UploadResult{Image: img, UpdatedFields: []string{}}
	if req.SkipAI {
		return result, nil
	}

	cfg := p.settings.Snapshot()
	if !p.settings.Configured(cfg) {
		log.Debug().Int64("listingID", req.ListingID).Msg("no AI provider configured, skipping analysis")
		return result, nil
	}

	unlock := p.locks.Lock(req.ListingID)
	defer unlock()

	outcome, updated, err := p.analyzeImage(ctx, cfg, req.ListingID, img, req.Data)
	if err != nil {
		log.Error().Err(err).Int64("imageID", img.ID).Msg("analysis after upload failed")
		p.activity.Error(req.ListingID, "analysis of image %d failed: %v", img.ID, err)
		return result, nil
	}

	if refreshed, err := p.store.GetImage(img.ID); err == nil && refreshed != nil {
		result.Image = refreshed
	}
	result.Analysis = outcome
	result.UpdatedFields = updated
	return result, nil
}
