// Package assets stores original photos and their thumbnails.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Kind is the namespace an asset lives in.
type Kind string

const (
	KindOriginal  Kind = "original"
	KindThumbnail Kind = "thumbnail"
)

// ParseKind validates a kind from a URL.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindOriginal, KindThumbnail:
		return Kind(s), true
	}
	return "", false
}

var (
	ErrNotFound    = errors.New("asset not found")
	ErrInvalidName = errors.New("invalid asset name")
)

// Asset names are a UUID plus a short lowercase extension. Anything else is
// rejected before it reaches a backend.
var namePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.[a-z0-9]{1,5}$`)

// ValidName reports whether name could have been produced by Save.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Backend is a flat blob store with one namespace per Kind.
type Backend interface {
	Put(ctx context.Context, kind Kind, name string, data []byte) error
	// Get returns ErrNotFound when the blob does not exist.
	Get(ctx context.Context, kind Kind, name string) ([]byte, error)
	// Remove succeeds when the blob is already gone.
	Remove(ctx context.Context, kind Kind, name string) error
}

// Store saves originals under generated names and derives thumbnails.
type Store struct {
	backend   Backend
	resizer   Resizer
	thumbSize int
}

// NewStore creates a store. thumbSize bounds the longest thumbnail side.
func NewStore(backend Backend, resizer Resizer, thumbSize int) *Store {
	if resizer == nil {
		resizer = NewResizer()
	}
	if thumbSize <= 0 {
		thumbSize = 300
	}
	return &Store{backend: backend, resizer: resizer, thumbSize: thumbSize}
}

// ExtensionFor maps an allowed MIME type to a file extension.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}

// Save writes an original under a new unique name and returns the name.
func (s *Store) Save(ctx context.Context, data []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := uuid.New().String() + ext
	if err := s.backend.Put(ctx, KindOriginal, name, data); err != nil {
		return "", fmt.Errorf("failed to save original %s: %w", name, err)
	}
	return name, nil
}

// Thumbnail derives the preview of a saved original. The thumbnail is stored
// under the same name in the thumbnail namespace. Undecodable images return
// an error wrapping ErrUndecodable.
func (s *Store) Thumbnail(ctx context.Context, name string) (string, error) {
	data, err := s.backend.Get(ctx, KindOriginal, name)
	if err != nil {
		return "", fmt.Errorf("failed to read original %s: %w", name, err)
	}
	thumb, err := s.resizer.Resize(data, s.thumbSize, s.thumbSize)
	if err != nil {
		return "", err
	}
	if err := s.backend.Put(ctx, KindThumbnail, name, thumb); err != nil {
		return "", fmt.Errorf("failed to save thumbnail %s: %w", name, err)
	}
	return name, nil
}

// Read returns the bytes of an asset.
func (s *Store) Read(ctx context.Context, kind Kind, name string) ([]byte, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	return s.backend.Get(ctx, kind, name)
}

// ReadPreview returns the thumbnail, or the original when no thumbnail exists.
func (s *Store) ReadPreview(ctx context.Context, name string) ([]byte, error) {
	data, err := s.Read(ctx, KindThumbnail, name)
	if errors.Is(err, ErrNotFound) {
		log.Debug().Str("name", name).Msg("thumbnail missing, serving original")
		return s.Read(ctx, KindOriginal, name)
	}
	return data, err
}

// Delete removes an original and its thumbnail. Deleting a missing asset is
// not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	var errs []error
	for _, kind := range []Kind{KindThumbnail, KindOriginal} {
		if err := s.backend.Remove(ctx, kind, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s %s: %w", kind, name, err))
		}
	}
	return errors.Join(errs...)
}

func dirFor(kind Kind) string {
	if kind == KindThumbnail {
		return "thumbnails"
	}
	return "originals"
}

// blobPath joins the namespace directory and a name using forward slashes.
func blobPath(kind Kind, name string) string {
	return filepath.ToSlash(filepath.Join(dirFor(kind), name))
}
