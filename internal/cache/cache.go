package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/model"
)

// DetailCache remembers the fields resolved from a detail page, keyed by its URL.
type DetailCache interface {
	Get(url string) (model.DetailFields, bool)
	Set(url string, fields model.DetailFields)
	Close()
}

// New returns the cache selected by cfg.Type.
func New(cfg *config.CacheConfig, log *slog.Logger) (DetailCache, error) {
	switch cfg.Type {
	case "", "none":
		return NoopCache{}, nil
	case "local":
		return NewLocalCache(cfg, log), nil
	case "memcached":
		return NewMemcachedClient(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
	}
}

type NoopCache struct{}

func (NoopCache) Get(string) (model.DetailFields, bool) { return model.DetailFields{}, false }
func (NoopCache) Set(string, model.DetailFields)        {}
func (NoopCache) Close()                                {}

func hashURL(url string) string {
	hash := sha256.New()
	hash.Write([]byte(url))
	return hex.EncodeToString(hash.Sum(nil))
}
