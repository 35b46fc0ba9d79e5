package assets

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func newLocalStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	backend, err := NewLocalBackend(root)
	require.NoError(t, err)
	return NewStore(backend, nil, 300), root
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{1200, 800, 300, 300, 300, 200},
		{800, 1200, 300, 300, 200, 300},
		{100, 50, 300, 300, 100, 50},
		{3000, 1, 300, 300, 300, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestResize_PNGStaysPNG(t *testing.T) {
	out, err := NewResizer().Resize(encodePNG(t, 900, 600), 300, 300)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestResize_JPEG(t *testing.T) {
	out, err := NewResizer().Resize(encodeJPEG(t, 400, 1000), 300, 300)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestResize_Undecodable(t *testing.T) {
	_, err := NewResizer().Resize([]byte("not an image"), 300, 300)
	assert.ErrorIs(t, err, ErrUndecodable)
}

// withPNGSize rewrites the IHDR dimensions of an encoded PNG, leaving the
// pixel data untouched.
func withPNGSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(data)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestCheckDimensions(t *testing.T) {
	small := encodePNG(t, 90, 60)
	assert.NoError(t, CheckDimensions(small, DefaultMaxPixels))

	err := CheckDimensions(small, 90*60-1)
	assert.ErrorIs(t, err, ErrUndecodable)

	huge := withPNGSize(t, small, 16000, 16000)
	err = CheckDimensions(huge, DefaultMaxPixels)
	assert.ErrorIs(t, err, ErrUndecodable)
	assert.Contains(t, err.Error(), "16000x16000")

	err = CheckDimensions([]byte("not an image"), DefaultMaxPixels)
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestResize_RejectsTooManyPixels(t *testing.T) {
	huge := withPNGSize(t, encodePNG(t, 90, 60), 16000, 16000)
	_, err := NewResizer().Resize(huge, 300, 300)
	assert.ErrorIs(t, err, ErrUndecodable)

	r := &DrawResizer{JPEGQuality: 85, MaxPixels: 1000}
	_, err = r.Resize(encodePNG(t, 90, 60), 300, 300)
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestStore_SaveThumbnailRead(t *testing.T) {
	store, root := newLocalStore(t)
	ctx := context.Background()
	data := encodePNG(t, 600, 600)

	name, err := store.Save(ctx, data, ".png")
	require.NoError(t, err)
	assert.True(t, ValidName(name), name)
	assert.True(t, strings.HasSuffix(name, ".png"))

	thumbName, err := store.Thumbnail(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, thumbName)

	original, err := store.Read(ctx, KindOriginal, name)
	require.NoError(t, err)
	assert.Equal(t, data, original)

	thumb, err := store.Read(ctx, KindThumbnail, name)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)

	_, err = os.Stat(filepath.Join(root, "originals", name))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "thumbnails", name))
	assert.NoError(t, err)
}

func TestStore_UniqueNames(t *testing.T) {
	store, _ := newLocalStore(t)
	a, err := store.Save(context.Background(), []byte("a"), "jpg")
	require.NoError(t, err)
	b, err := store.Save(context.Background(), []byte("a"), "jpg")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
}

func TestStore_ThumbnailOfUndecodable(t *testing.T) {
	store, _ := newLocalStore(t)
	name, err := store.Save(context.Background(), []byte("garbage"), ".jpg")
	require.NoError(t, err)

	_, err = store.Thumbnail(context.Background(), name)
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestStore_ReadPreviewFallsBackToOriginal(t *testing.T) {
	store, _ := newLocalStore(t)
	name, err := store.Save(context.Background(), []byte("original-bytes"), ".jpg")
	require.NoError(t, err)

	data, err := store.ReadPreview(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, []byte("original-bytes"), data)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store, root := newLocalStore(t)
	ctx := context.Background()
	name, err := store.Save(ctx, encodePNG(t, 10, 10), ".png")
	require.NoError(t, err)
	_, err = store.Thumbnail(ctx, name)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, name))
	require.NoError(t, store.Delete(ctx, name))

	_, err = os.Stat(filepath.Join(root, "originals", name))
	assert.True(t, os.IsNotExist(err))
	_, err = store.Read(ctx, KindOriginal, name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RejectsInvalidNames(t *testing.T) {
	store, _ := newLocalStore(t)
	for _, name := range []string{"../secret.db", "foo.jpg", "", "0b0c3a6e-4b8f-4a4e-9a77-1f6a3c1f2d10.jpg/../x"} {
		_, err := store.Read(context.Background(), KindOriginal, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("thumbnail")
	assert.True(t, ok)
	assert.Equal(t, KindThumbnail, k)

	_, ok = ParseKind("secrets")
	assert.False(t, ok)
}

func TestBlobPath(t *testing.T) {
	assert.Equal(t, "originals/a.jpg", blobPath(KindOriginal, "a.jpg"))
	assert.Equal(t, "thumbnails/a.jpg", blobPath(KindThumbnail, "a.jpg"))
}

func TestIsBlobNotFound(t *testing.T) {
	assert.False(t, isBlobNotFound(nil))
	assert.True(t, isBlobNotFound(&azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: http.StatusNotFound}))
	assert.True(t, isBlobNotFound(&azcore.ResponseError{StatusCode: http.StatusNotFound}))
	assert.False(t, isBlobNotFound(&azcore.ResponseError{ErrorCode: "AuthenticationFailed", StatusCode: http.StatusForbidden}))
}
