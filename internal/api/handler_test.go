package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/assets"
	"github.com/raine/photo-lister/internal/llm"
	"github.com/raine/photo-lister/internal/pipeline"
	"github.com/raine/photo-lister/internal/storage"
	"github.com/raine/photo-lister/internal/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lampReply = "```json\n{\"title\": \"Vintage Lamp\", \"description\": \"Brass lamp\", \"category\": \"Home\", \"estimated_price\": 12, \"condition\": \"used\", \"tags\": []}\n```"

type fakeProvider struct {
	model string
	reply string
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) AnalyzeImage(context.Context, []byte, string) (*llm.Reply, error) {
	return &llm.Reply{Text: f.reply, Usage: analysis.Usage{PromptTokens: 1000, CompletionTokens: 100}}, nil
}

func (f *fakeProvider) GenerateText(context.Context, string) (*llm.Reply, error) {
	return &llm.Reply{Text: "A sturdy brass lamp.", Usage: analysis.Usage{PromptTokens: 50, CompletionTokens: 10}}, nil
}

type testServer struct {
	router   *gin.Engine
	store    *storage.SQLiteStore
	settings *llm.Settings
}

func newTestServer(t *testing.T, provider string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	backend, err := assets.NewLocalBackend(filepath.Join(dir, "assets"))
	require.NoError(t, err)
	assetStore := assets.NewStore(backend, assets.NewResizer(), 32)

	registry := llm.NewRegistry()
	registry.Register(llm.ProviderInfo{Name: "fake", DefaultModel: "gpt-4o-mini"}, func(model, _ string) (llm.Provider, error) {
		return &fakeProvider{model: model, reply: lampReply}, nil
	})
	registry.Register(llm.ProviderInfo{Name: "keyed", DefaultModel: "keyed-1", KeyEnv: "PHOTO_LISTER_TEST_UNSET_KEY"}, func(model, _ string) (llm.Provider, error) {
		return &fakeProvider{model: model, reply: lampReply}, nil
	})

	settings, err := llm.NewSettings(store, registry, llm.ProviderConfig{Provider: provider})
	require.NoError(t, err)

	client := llm.NewClient(registry, settings, llm.ClientOptions{
		Timeout: 5 * time.Second,
		BackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	})
	ledger := usage.NewLedger(store, nil)

	p := pipeline.New(pipeline.Deps{
		Store:    store,
		Assets:   assetStore,
		Client:   client,
		Settings: settings,
		Ledger:   ledger,
	}, 0)

	router := NewHandler(Deps{
		Listings:  store,
		Pipeline:  p,
		Images:    assetStore,
		Settings:  settings,
		Providers: registry,
		Usage:     ledger,
		Version:   "test",
	})
	return &testServer{router: router, store: store, settings: settings}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func (s *testServer) upload(t *testing.T, path string, data []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="photo"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func (s *testServer) createListing(t *testing.T, body any) int64 {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/items", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var l storage.Listing
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &l))
	return l.ID
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		img.Set(x, x%48, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func itemPath(id int64, suffix string) string {
	return "/items/" + strconv.FormatInt(id, 10) + suffix
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "available", decode[map[string]any](t, resp)["status"])
}

func TestListingCRUD(t *testing.T) {
	s := newTestServer(t, "")

	id := s.createListing(t, nil)

	resp := s.do(t, http.MethodGet, itemPath(id, ""), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[map[string]any](t, resp)
	assert.Equal(t, storage.DefaultTitle, got["title"])
	assert.Equal(t, []any{}, got["images"])

	resp = s.do(t, http.MethodPatch, itemPath(id, ""), map[string]any{"title": "Chair", "price": 30})
	require.Equal(t, http.StatusOK, resp.Code)
	updated := decode[storage.Listing](t, resp)
	assert.Equal(t, "Chair", updated.Title)
	assert.Equal(t, 30.0, updated.Price)
	assert.Equal(t, storage.DefaultCategory, updated.Category)

	resp = s.do(t, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]storage.Listing](t, resp), 1)

	resp = s.do(t, http.MethodDelete, itemPath(id, ""), nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = s.do(t, http.MethodGet, itemPath(id, ""), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, apperr.TypeNotFound, errResp.Type)
	assert.Equal(t, "Not Found", errResp.Error)
}

func TestPatch_RejectsNegativePrice(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createListing(t, nil)

	resp := s.do(t, http.MethodPatch, itemPath(id, ""), map[string]any{"price": -1})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestInvalidID(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.do(t, http.MethodGet, "/items/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, apperr.TypeValidation, decode[ErrorResponse](t, resp).Type)
}

func TestUpload_NoProvider(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createListing(t, nil)

	resp := s.upload(t, itemPath(id, "/images"), testPNG(t), "image/png")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	body := decode[map[string]any](t, resp)
	assert.Nil(t, body["ai_analysis"])
	assert.Equal(t, []any{}, body["updated_fields"])
	img := body["image"].(map[string]any)
	assert.Equal(t, "uploaded", img["state"])

	l, err := s.store.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultTitle, l.Title)
}

func TestUpload_AnalyzesAndReconciles(t *testing.T) {
	s := newTestServer(t, "fake")
	id := s.createListing(t, map[string]any{"title": "My Lamp"})

	resp := s.upload(t, itemPath(id, "/images"), testPNG(t), "image/png")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	res := decode[pipeline.UploadResult](t, resp)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, analysis.StatusSuccess, res.Analysis.Status)
	assert.Equal(t, []string{"description", "category", "price"}, res.UpdatedFields)

	l, err := s.store.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, "My Lamp", l.Title)
	assert.Equal(t, 12.0, l.Price)

	name := res.Image.Filename
	resp = s.do(t, http.MethodGet, "/images/thumbnail/"+name, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))
	thumb, _, err := image.DecodeConfig(bytes.NewReader(resp.Body.Bytes()))
	require.NoError(t, err)
	assert.LessOrEqual(t, thumb.Width, 32)

	resp = s.do(t, http.MethodGet, "/images/original/"+name, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, testPNG(t), resp.Body.Bytes())
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createListing(t, nil)

	resp := s.upload(t, itemPath(id, "/images"), []byte("%PDF-1.4 not an image"), "application/pdf")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, apperr.TypeValidation, decode[ErrorResponse](t, resp).Type)

	images, err := s.store.ListImages(id)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestUpload_MissingField(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createListing(t, nil)

	resp := s.do(t, http.MethodPost, itemPath(id, "/images"), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpload_UnknownListing(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.upload(t, itemPath(999, "/images"), testPNG(t), "image/png")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAnalyze(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(t, "")
		id := s.createListing(t, nil)
		resp := s.do(t, http.MethodPost, itemPath(id, "/analyze"), nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
		assert.Equal(t, apperr.TypeProviderNotConfigured, decode[ErrorResponse](t, resp).Type)
	})

	t.Run("no images", func(t *testing.T) {
		s := newTestServer(t, "fake")
		id := s.createListing(t, nil)
		resp := s.do(t, http.MethodPost, itemPath(id, "/analyze"), nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("deferred analysis", func(t *testing.T) {
		s := newTestServer(t, "fake")
		id := s.createListing(t, nil)
		resp := s.upload(t, itemPath(id, "/images?skipAI=true"), testPNG(t), "image/png")
		require.Equal(t, http.StatusCreated, resp.Code)

		resp = s.do(t, http.MethodGet, itemPath(id, "/status"), nil)
		require.Equal(t, http.StatusOK, resp.Code)
		status := decode[pipeline.ListingStatus](t, resp)
		require.Len(t, status.Images, 1)
		assert.Equal(t, storage.ImageUploaded, status.Images[0].State)

		resp = s.do(t, http.MethodPost, itemPath(id, "/analyze"), nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		res := decode[pipeline.AnalyzeResult](t, resp)
		assert.Equal(t, []string{"title", "description", "category", "price"}, res.UpdatedFields)

		resp = s.do(t, http.MethodGet, itemPath(id, "/status"), nil)
		status = decode[pipeline.ListingStatus](t, resp)
		assert.Equal(t, storage.ImageAnalysisComplete, status.Images[0].State)
	})
}

func TestSuggestDescription(t *testing.T) {
	s := newTestServer(t, "fake")
	id := s.createListing(t, map[string]any{"title": "Lamp"})

	resp := s.do(t, http.MethodPost, itemPath(id, "/description/suggest"), nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "A sturdy brass lamp.", decode[map[string]any](t, resp)["description"])
}

func TestUsage(t *testing.T) {
	s := newTestServer(t, "fake")
	id := s.createListing(t, nil)
	resp := s.upload(t, itemPath(id, "/images"), testPNG(t), "image/png")
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = s.do(t, http.MethodGet, "/ai/usage?window=1h", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[usageResponse](t, resp)
	assert.Equal(t, int64(1), body.TotalRequests)
	assert.Equal(t, int64(1100), body.TotalTokens)
	assert.Equal(t, "USD", body.Currency)
	// gpt-4o-mini: 1000 * 0.15/1M + 100 * 0.60/1M
	assert.InDelta(t, 0.00021, body.TotalCost, 1e-12)
	assert.Equal(t, int64(1), body.Operations[usage.OpImageAnalysis].Requests)

	resp = s.do(t, http.MethodGet, "/ai/usage?window=banana", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestProviderSettings(t *testing.T) {
	s := newTestServer(t, "")

	resp := s.do(t, http.MethodGet, "/ai/provider", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[providerResponse](t, resp).Configured)

	resp = s.do(t, http.MethodPut, "/ai/provider", map[string]any{"provider": "fake"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	got := decode[providerResponse](t, resp)
	assert.Equal(t, providerResponse{Provider: "fake", Model: "gpt-4o-mini", Configured: true}, got)
	assert.Equal(t, "fake", s.settings.Snapshot().Provider)

	resp = s.do(t, http.MethodPut, "/ai/provider", map[string]any{"provider": "keyed"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[providerResponse](t, resp).Configured)

	resp = s.do(t, http.MethodPut, "/ai/provider", map[string]any{"provider": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.do(t, http.MethodPut, "/ai/provider", map[string]any{"provider": "keyed", "api_key": "sk-1"})
	assert.Equal(t, http.StatusBadRequest, resp.Code, "secrets are disabled without a key")

	resp = s.do(t, http.MethodGet, "/ai/providers", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	providers := decode[[]llm.ProviderInfo](t, resp)
	require.Len(t, providers, 2)
	assert.Equal(t, "fake", providers[0].Name)
}

func TestServeImage_NotFound(t *testing.T) {
	s := newTestServer(t, "")

	resp := s.do(t, http.MethodGet, "/images/original/../../etc/passwd", nil)
	assert.NotEqual(t, http.StatusOK, resp.Code)

	resp = s.do(t, http.MethodGet, "/images/original/00000000-0000-0000-0000-000000000000.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.do(t, http.MethodGet, "/images/medium/00000000-0000-0000-0000-000000000000.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
