package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/llm"
	"github.com/raine/photo-lister/internal/usage"
)

func (h *handler) analyze(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.Pipeline.Analyze(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) status(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	status, err := h.Pipeline.Status(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handler) suggestDescription(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.Pipeline.SuggestDescription(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"description": res.Text,
		"provider":    res.Provider,
		"model":       res.Model,
		"usage":       res.Usage,
	})
}

type operationUsage struct {
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

type usageResponse struct {
	TotalCost     float64                            `json:"total_cost"`
	TotalTokens   int64                              `json:"total_tokens"`
	TotalRequests int64                              `json:"total_requests"`
	Operations    map[usage.Operation]operationUsage `json:"operations"`
	Currency      string                             `json:"currency"`
	Since         time.Time                          `json:"since"`
}

func newUsageResponse(s *usage.Summary) usageResponse {
	resp := usageResponse{
		TotalCost:     s.TotalCost.InexactFloat64(),
		TotalTokens:   s.TotalTokens,
		TotalRequests: s.TotalRequests,
		Operations:    make(map[usage.Operation]operationUsage, len(s.Operations)),
		Currency:      s.Currency,
		Since:         s.Since,
	}
	for op, o := range s.Operations {
		resp.Operations[op] = operationUsage{
			Requests:         o.Requests,
			PromptTokens:     o.PromptTokens,
			CompletionTokens: o.CompletionTokens,
			TotalTokens:      o.TotalTokens,
			Cost:             o.Cost.InexactFloat64(),
		}
	}
	return resp
}

func (h *handler) usageSummary(c *gin.Context) {
	window := h.UsageWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(c, apperr.Validation("window must be a positive duration such as 24h", err))
			return
		}
		window = d
	}

	summary, err := h.Usage.Aggregate(time.Now().Add(-window))
	if err != nil {
		respondError(c, apperr.Storage("failed to aggregate usage", err))
		return
	}
	c.JSON(http.StatusOK, newUsageResponse(summary))
}

type providerResponse struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
}

type providerRequest struct {
	Provider string `json:"provider" binding:"required"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

func (h *handler) providerState(cfg llm.ProviderConfig) providerResponse {
	return providerResponse{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Configured: h.Settings.Configured(cfg),
	}
}

func (h *handler) getProvider(c *gin.Context) {
	c.JSON(http.StatusOK, h.providerState(h.Settings.Snapshot()))
}

func (h *handler) putProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request body", err))
		return
	}
	cfg, err := h.Settings.Update(req.Provider, req.Model, req.APIKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.providerState(cfg))
}

func (h *handler) listProviders(c *gin.Context) {
	c.JSON(http.StatusOK, h.Providers.Providers())
}
