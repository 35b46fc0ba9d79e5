package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/assets"
	"github.com/raine/photo-lister/internal/llm"
	"github.com/raine/photo-lister/internal/storage"
	"github.com/raine/photo-lister/internal/usage"
	"github.com/rs/zerolog/log"
)

// storageGrace is added to the provider timeout for the database and file
// work around a shared analysis.
const storageGrace = 30 * time.Second

// AnalyzeResult is the outcome of analyzing a listing.
type AnalyzeResult struct {
	Analysis      *analysis.Outcome `json:"analysis"`
	UpdatedFields []string          `json:"updated_fields"`
}

// Analyze runs one analysis of the listing's primary image and reconciles
// the result. Concurrent calls for the same listing share a single provider
// call. The shared work is not canceled when the first caller goes away;
// each caller stops waiting when its own ctx ends.
func (p *Pipeline) Analyze(ctx context.Context, listingID int64) (*AnalyzeResult, error) {
	ch := p.flight.DoChan(strconv.FormatInt(listingID, 10), func() (any, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.client.Timeout()+storageGrace)
		defer cancel()
		return p.analyzeListing(workCtx, listingID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*AnalyzeResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipeline) analyzeListing(ctx context.Context, listingID int64) (*AnalyzeResult, error) {
	if _, err := p.getListing(listingID); err != nil {
		return nil, err
	}

	cfg := p.settings.Snapshot()
	if !p.settings.Configured(cfg) {
		return nil, apperr.ProviderNotConfigured()
	}

	unlock := p.locks.Lock(listingID)
	defer unlock()

	img, err := p.store.PrimaryImage(listingID)
	if err != nil {
		return nil, apperr.Storage("failed to load images", err)
	}
	if img == nil {
		return nil, apperr.Validation("listing has no images to analyze", nil)
	}

	outcome, updated, err := p.analyzeImage(ctx, cfg, listingID, img, nil)
	if err != nil {
		return nil, err
	}
	return &AnalyzeResult{Analysis: outcome, UpdatedFields: updated}, nil
}

// analyzeImage runs one analysis of img and reconciles a successful result.
// The caller must hold the listing's lock. data may be nil, in which case
// the original is read from the asset store.
func (p *Pipeline) analyzeImage(ctx context.Context, cfg llm.ProviderConfig, listingID int64, img *storage.ImageAsset, data []byte) (*analysis.Outcome, []string, error) {
	if err := p.store.SetImageState(img.ID, storage.ImageAnalysisRequested); err != nil {
		return nil, nil, apperr.Storage("failed to update image state", err)
	}
	p.activity.State(listingID, "image %d -> %s (%s/%s)", img.ID, storage.ImageAnalysisRequested, cfg.Provider, cfg.Model)

	var outcome analysis.Outcome
	if data == nil {
		var err error
		data, err = p.assets.Read(ctx, assets.KindOriginal, img.Filename)
		if err != nil {
			log.Error().Err(err).Int64("imageID", img.ID).Msg("failed to read image for analysis")
			outcome = analysis.Failure("image could not be read: "+err.Error(), "")
			outcome.Provider = cfg.Provider
			outcome.Model = cfg.Model
		}
	}

	if data != nil {
		outcome = p.client.AnalyzeImage(ctx, cfg, data, img.MimeType)
		if !outcome.Cached {
			p.recordUsage(usage.OpImageAnalysis, listingID, outcome.Provider, outcome.Model, outcome.Usage, outcome.Succeeded())
		}
		p.activity.LLM(listingID, "image %d: %s via %s/%s, %d+%d tokens, %d ms, cached=%t",
			img.ID, outcome.Status, outcome.Provider, outcome.Model,
			outcome.Usage.PromptTokens, outcome.Usage.CompletionTokens, outcome.Timing.TotalMs, outcome.Cached)
	}

	if err := p.store.SaveImageAnalysis(img.ID, outcome); err != nil {
		return nil, nil, apperr.Storage("failed to save analysis", err)
	}

	updated := []string{}
	if !outcome.Succeeded() {
		p.activity.Error(listingID, "image %d analysis failed: %s", img.ID, outcome.Reason)
		return &outcome, updated, nil
	}
	p.activity.State(listingID, "image %d -> %s", img.ID, storage.ImageAnalysisComplete)

	listing, err := p.store.GetListing(listingID)
	if err != nil {
		return nil, nil, apperr.Storage("failed to load listing", err)
	}
	if listing == nil {
		return &outcome, updated, nil
	}

	suggestions := Reconcile(*listing, *outcome.Result)
	changed, err := p.store.ApplySuggestions(listingID, suggestions)
	if err != nil {
		return nil, nil, apperr.Storage("failed to apply suggestions", err)
	}
	if len(changed) > 0 {
		updated = changed
		p.activity.Reconcile(listingID, "filled %s", strings.Join(changed, ", "))
	}

	log.Info().
		Int64("listingID", listingID).
		Int64("imageID", img.ID).
		Strs("updatedFields", updated).
		Bool("cached", outcome.Cached).
		Msg("image analyzed")
	return &outcome, updated, nil
}

// SuggestDescription asks the provider for a description of the listing.
// The suggestion is returned, not applied.
func (p *Pipeline) SuggestDescription(ctx context.Context, listingID int64) (*llm.TextResult, error) {
	listing, err := p.getListing(listingID)
	if err != nil {
		return nil, err
	}

	cfg := p.settings.Snapshot()
	if !p.settings.Configured(cfg) {
		return nil, apperr.ProviderNotConfigured()
	}

	extra := map[string]string{"current description": listing.Description}
	if img, err := p.store.PrimaryImage(listingID); err == nil && img != nil && img.Analysis.Succeeded() {
		extra["condition"] = img.Analysis.Result.Condition
		extra["tags"] = strings.Join(img.Analysis.Result.Tags, ", ")
	}

	res, err := p.client.GenerateText(ctx, cfg, llm.DescriptionPrompt(listing.Title, listing.Category, extra))
	if err != nil {
		p.recordUsage(usage.OpTextGeneration, listingID, cfg.Provider, cfg.Model, analysis.Usage{}, false)
		p.activity.Error(listingID, "description suggestion failed: %v", err)
		return nil, err
	}
	p.recordUsage(usage.OpTextGeneration, listingID, res.Provider, res.Model, res.Usage, true)
	p.activity.LLM(listingID, "description suggested via %s/%s, %d+%d tokens",
		res.Provider, res.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens)

	res.Text = strings.TrimSpace(res.Text)
	return res, nil
}
