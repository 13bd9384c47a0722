package poi

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/internal/metrics"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
)

// Cache stores summaries by key
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Searcher produces a summary for a bound
type Searcher interface {
	Summary(ctx context.Context, bound orb.Bound) (string, error)
}

// Service puts a cache in front of a Searcher
type Service struct {
	searcher Searcher
	cache    Cache
}

// NewService wraps s. A nil cache disables caching.
func NewService(s Searcher, cache Cache) *Service {
	return &Service{searcher: s, cache: cache}
}

// Summary returns the cached summary for bound or asks the searcher
func (s *Service) Summary(ctx context.Context, bound orb.Bound) (string, error) {
	key := Key(bound)
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	v, err := s.searcher.Summary(ctx, bound)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, v)
	}
	return v, nil
}

// Key quantizes a bound to 4 decimals, the cursor's own precision
func Key(bound orb.Bound) string {
	return fmt.Sprintf("poi:%.4f,%.4f,%.4f,%.4f",
		bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat())
}

// MemoryCache is an in-process LRU with a TTL
type MemoryCache struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type kv struct {
	k   string
	v   string
	exp time.Time
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		cap:  capacity,
		ttl:  ttl,
		lst:  list.New(),
		dict: make(map[string]*list.Element),
		now:  time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, k string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.dict[k]; ok {
		it := e.Value.(kv)
		if c.now().Before(it.exp) {
			c.lst.MoveToFront(e)
			metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
			return it.v, true
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	metrics.CacheMissesTotal.WithLabelValues("memory").Inc()
	return "", false
}

func (c *MemoryCache) Set(_ context.Context, k, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := kv{k: k, v: v, exp: c.now().Add(c.ttl)}
	if e, ok := c.dict[k]; ok {
		e.Value = item
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(item)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(kv).k)
		c.lst.Remove(back)
	}
}

// Len returns the number of entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

// RedisCache shares summaries between processes
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// OpenRedis returns a client for addr, or nil when addr is empty
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, k string) (string, bool) {
	v, err := c.rdb.Get(ctx, k).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("redis_get_error", "key", k, "err", err)
		}
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return "", false
	}
	metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, k, v string) {
	if err := c.rdb.Set(ctx, k, v, c.ttl).Err(); err != nil {
		logger.L().Warn("redis_set_error", "key", k, "err", err)
	}
}
