package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/usage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	key, err := DeriveKey("test-passphrase")
	require.NoError(t, err)
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestCreateListing_Placeholders(t *testing.T) {
	store := newTestStore(t)

	l := &Listing{}
	require.NoError(t, store.CreateListing(l))
	assert.NotZero(t, l.ID)

	got, err := store.GetListing(l.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DefaultTitle, got.Title)
	assert.Equal(t, DefaultCategory, got.Category)
	assert.Equal(t, "", got.Description)
	assert.Equal(t, 0.0, got.Price)
}

func TestGetListing_NotFound(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetListing(999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateListing(t *testing.T) {
	store := newTestStore(t)
	l := &Listing{Title: "Chair"}
	require.NoError(t, store.CreateListing(l))

	got, err := store.UpdateListing(l.ID, ListingUpdate{Price: floatPtr(25), Description: strPtr("Sturdy")})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Chair", got.Title)
	assert.Equal(t, 25.0, got.Price)
	assert.Equal(t, "Sturdy", got.Description)

	missing, err := store.UpdateListing(999, ListingUpdate{Title: strPtr("x")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApplySuggestions_OnlySentinelFields(t *testing.T) {
	store := newTestStore(t)
	l := &Listing{Title: "My Bike", Price: 40}
	require.NoError(t, store.CreateListing(l))

	changed, err := store.ApplySuggestions(l.ID, ListingUpdate{
		Title:       strPtr("Road Bike"),
		Description: strPtr("A fast bike"),
		Category:    strPtr("Sports"),
		Price:       floatPtr(120),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "category"}, changed)

	got, err := store.GetListing(l.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Bike", got.Title)
	assert.Equal(t, "A fast bike", got.Description)
	assert.Equal(t, "Sports", got.Category)
	assert.Equal(t, 40.0, got.Price)
}

func TestApplySuggestions_EmptyUpdate(t *testing.T) {
	store := newTestStore(t)
	l := &Listing{}
	require.NoError(t, store.CreateListing(l))

	changed, err := store.ApplySuggestions(l.ID, ListingUpdate{})
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestApplySuggestions_SecondRunChangesNothing(t *testing.T) {
	store := newTestStore(t)
	l := &Listing{}
	require.NoError(t, store.CreateListing(l))

	u := ListingUpdate{Title: strPtr("Lamp"), Price: floatPtr(15)}
	changed, err := store.ApplySuggestions(l.ID, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "price"}, changed)

	changed, err = store.ApplySuggestions(l.ID, ListingUpdate{Title: strPtr("Desk Lamp"), Price: floatPtr(20)})
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestDeleteListing_CascadesImages(t *testing.T) {
	store := newTestStore(t)
	l := &Listing{}
	require.NoError(t, store.CreateListing(l))

	for _, name := range []string{"a.jpg", "b.png"} {
		require.NoError(t, store.CreateImage(&ImageAsset{ListingID: l.ID, Filename: name, MimeType: "image/jpeg", SizeBytes: 10}))
	}

	names, err := store.DeleteListing(l.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.png"}, names)

	images, err := store.ListImages(l.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestImages_PrimaryAndAnalysis(t *testing.T) {
	store := newTestStore(t)
	l := &Listing{}
	require.NoError(t, store.CreateListing(l))

	none, err := store.PrimaryImage(l.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := &ImageAsset{ListingID: l.ID, Filename: "first.jpg", MimeType: "image/jpeg", SizeBytes: 100}
	second := &ImageAsset{ListingID: l.ID, Filename: "second.jpg", MimeType: "image/jpeg", SizeBytes: 200}
	require.NoError(t, store.CreateImage(first))
	require.NoError(t, store.CreateImage(second))
	assert.Equal(t, ImageUploaded, first.State)

	primary, err := store.PrimaryImage(l.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, primary.ID)

	require.NoError(t, store.SetImageState(first.ID, ImageAnalysisRequested))
	got, err := store.GetImage(first.ID)
	require.NoError(t, err)
	assert.Equal(t, ImageAnalysisRequested, got.State)
	assert.Nil(t, got.Analysis)

	outcome := analysis.Success(analysis.Fields{Title: "Mug", EstimatedPrice: 5})
	require.NoError(t, store.SaveImageAnalysis(first.ID, outcome))
	got, err = store.GetImage(first.ID)
	require.NoError(t, err)
	assert.Equal(t, ImageAnalysisComplete, got.State)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "Mug", got.Analysis.Result.Title)
	assert.NotNil(t, got.AnalyzedAt)

	require.NoError(t, store.SaveImageAnalysis(second.ID, analysis.Failure(analysis.ReasonUnparseable, "nope")))
	got, err = store.GetImage(second.ID)
	require.NoError(t, err)
	assert.Equal(t, ImageAnalysisFailed, got.State)
	assert.Equal(t, "nope", got.Analysis.RawText)
}

func TestUsage_AppendAndWindow(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	old := &usage.Record{
		Operation: usage.OpImageAnalysis, Provider: "gemini", Model: "m",
		PromptTokens: 10, CompletionTokens: 5,
		InputCost: decimal.Zero, OutputCost: decimal.Zero, Currency: "USD",
		Success: true, CreatedAt: now.Add(-48 * time.Hour),
	}
	recent := &usage.Record{
		Operation: usage.OpTextGeneration, Provider: "openai", Model: "gpt-4o-mini",
		PromptTokens: 100, CompletionTokens: 50, Estimated: true,
		InputCost: decimal.RequireFromString("0.000015"), OutputCost: decimal.RequireFromString("0.00003"),
		Currency: "USD", Success: true, CreatedAt: now,
	}
	require.NoError(t, store.AppendUsage(old))
	require.NoError(t, store.AppendUsage(recent))
	assert.NotZero(t, recent.ID)

	records, err := store.UsageSince(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, usage.OpTextGeneration, r.Operation)
	assert.True(t, r.Estimated)
	assert.True(t, r.InputCost.Equal(decimal.RequireFromString("0.000015")))
	assert.Equal(t, now.UnixMilli(), r.CreatedAt.UnixMilli())

	all, err := store.UsageSince(time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUsage_ConcurrentAppends(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.AppendUsage(&usage.Record{
				Operation: usage.OpImageAnalysis, PromptTokens: 1, CompletionTokens: 1,
				InputCost: decimal.Zero, OutputCost: decimal.Zero, Currency: "USD",
				CreatedAt: time.Now(),
			}))
		}()
	}
	wg.Wait()

	records, err := store.UsageSince(time.Time{})
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestSettingsAndSecrets(t *testing.T) {
	store := newTestStore(t)

	v, err := store.GetSetting("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, store.SetSetting("ai.provider", `{"provider":"gemini"}`))
	require.NoError(t, store.SetSetting("ai.provider", `{"provider":"openai"}`))
	v, err = store.GetSetting("ai.provider")
	require.NoError(t, err)
	assert.Equal(t, `{"provider":"openai"}`, v)

	require.NoError(t, store.SetSecret("openai", "sk-test"))
	secret, err := store.GetSecret("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", secret)

	secret, err = store.GetSecret("nothing")
	require.NoError(t, err)
	assert.Equal(t, "", secret)
}

func TestSecrets_DisabledWithoutKey(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nokey.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	assert.ErrorIs(t, store.SetSecret("x", "y"), ErrSecretsDisabled)
	_, err = store.GetSecret("x")
	assert.ErrorIs(t, err, ErrSecretsDisabled)
}

func TestAnalysisCache(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetAnalysisCache("k")
	require.NoError(t, err)
	assert.Nil(t, got)

	fields := &analysis.Fields{Title: "Vase", EstimatedPrice: 12.5, Tags: []string{"glass"}}
	require.NoError(t, store.SetAnalysisCache("k", fields))

	got, err = store.GetAnalysisCache("k")
	require.NoError(t, err)
	assert.Equal(t, fields, got)
}
