package cache

import (
	"log/slog"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/model"
	goCache "github.com/patrickmn/go-cache"
)

// LocalCache keeps detail fields in process memory for the lifetime of a run.
type LocalCache struct {
	c   *goCache.Cache
	log *slog.Logger
}

func NewLocalCache(cfg *config.CacheConfig, log *slog.Logger) *LocalCache {
	log.Info("using in-memory detail cache.", slog.Duration("ttl", cfg.Ttl))
	return &LocalCache{
		c:   goCache.New(cfg.Ttl, 2*cfg.Ttl),
		log: log,
	}
}

func (lc *LocalCache) Get(url string) (model.DetailFields, bool) {
	v, ok := lc.c.Get(hashURL(url))
	if !ok {
		return model.DetailFields{}, false
	}
	fields, ok := v.(model.DetailFields)
	return fields, ok
}

func (lc *LocalCache) Set(url string, fields model.DetailFields) {
	lc.c.SetDefault(hashURL(url), fields)
	lc.log.Debug("detail fields cached.", slog.String("url", url))
}

func (lc *LocalCache) Close() {
	lc.c.Flush()
}
