package llm

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/rs/zerolog/log"
)

// CacheStore persists analysis results by key.
type CacheStore interface {
	GetAnalysisCache(key string) (*analysis.Fields, error)
	SetAnalysisCache(key string, fields *analysis.Fields) error
}

// Cache remembers successful analyses of identical image bytes for the same
// provider and model.
type Cache struct {
	store CacheStore
}

// NewCache creates a cache backed by store.
func NewCache(store CacheStore) *Cache {
	return &Cache{store: store}
}

// cacheKey hashes the image together with provider and model. Each part is
// length-prefixed to prevent boundary collisions.
func cacheKey(data []byte, cfg ProviderConfig) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(cfg.Provider), []byte(cfg.Model), data} {
		binary.Write(h, binary.LittleEndian, int64(len(part)))
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached result. Lookup errors count as misses.
func (c *Cache) Get(data []byte, cfg ProviderConfig) (*analysis.Fields, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	key := cacheKey(data, cfg)
	fields, err := c.store.GetAnalysisCache(key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check analysis cache")
		return nil, false
	}
	if fields == nil {
		return nil, false
	}
	log.Debug().Str("hash", key[:16]).Msg("analysis cache hit")
	return fields, true
}

// Put stores a successful result.
func (c *Cache) Put(data []byte, cfg ProviderConfig, fields *analysis.Fields) {
	if c == nil || c.store == nil || fields == nil {
		return
	}
	key := cacheKey(data, cfg)
	if err := c.store.SetAnalysisCache(key, fields); err != nil {
		log.Warn().Err(err).Msg("failed to cache analysis result")
		return
	}
	log.Debug().Str("hash", key[:16]).Msg("cached analysis result")
}
