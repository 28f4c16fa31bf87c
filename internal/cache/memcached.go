package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/model"
	"github.com/bradfitz/gomemcache/memcache"
	jsoniter "github.com/json-iterator/go"
)

const keySuffix = "-program-detail"

type MemcachedClient struct {
	client *memcache.Client
	cfg    *config.CacheConfig
	log    *slog.Logger
}

func NewMemcachedClient(cacheConfig *config.CacheConfig, log *slog.Logger) (*MemcachedClient, error) {
	log.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	servers := strings.Split(cacheConfig.Servers, ",")
	if err := ss.SetServers(servers...); err != nil {
		return nil, fmt.Errorf("set memcached servers: %w", err)
	}
	c := &MemcachedClient{
		client: memcache.NewFromSelector(ss),
		cfg:    cacheConfig,
		log:    log,
	}
	c.log.Info("pinging the memcached.")
	if err := c.client.Ping(); err != nil {
		return nil, fmt.Errorf("connect to memcached: %w", err)
	}
	c.log.Info("connected to memcached!")

	return c, nil
}

func (mc *MemcachedClient) Get(url string) (model.DetailFields, bool) {
	var fields model.DetailFields
	key := hashURL(url) + keySuffix
	item, err := mc.client.Get(key)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			mc.log.Warn("failed to read detail fields from cache.", slog.String("key", key),
				slog.String("err", err.Error()))
		}
		return fields, false
	}
	if err = jsoniter.Unmarshal(item.Value, &fields); err != nil {
		mc.log.Warn("cached detail fields are corrupted.", slog.String("key", key),
			slog.String("err", err.Error()))
		return fields, false
	}

	return fields, true
}

func (mc *MemcachedClient) Set(url string, fields model.DetailFields) {
	key := hashURL(url) + keySuffix
	if err := mc.set(key, fields, int32(mc.cfg.Ttl.Seconds())); err != nil {
		mc.log.Error("failed to save detail fields to cache.", slog.String("key", key),
			slog.String("err", err.Error()))
		return
	}
	mc.log.Debug("detail fields saved to cache.")
}

func (mc *MemcachedClient) Close() {
	mc.log.Info("closing memcached connection.")
	err := mc.client.Close()
	if err != nil {
		mc.log.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}

func (mc *MemcachedClient) set(key string, value any, expiration int32) error {
	byteValue, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}
	item := &memcache.Item{
		Key:        key,
		Value:      byteValue,
		Expiration: expiration,
	}

	return mc.client.Set(item)
}
