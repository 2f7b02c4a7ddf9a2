package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by SeriesCache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// SeriesCache stores fetched series keyed by series id and date range.
type SeriesCache interface {
	Get(ctx context.Context, key string) ([]SeriesPoint, error)
	Set(ctx context.Context, key string, points []SeriesPoint, ttl time.Duration) error
}

// cachedPoint is the wire form of a SeriesPoint. NaN is not valid JSON, so a
// missing value is encoded as null.
type cachedPoint struct {
	Date  string   `json:"d"`
	Value *float64 `json:"v"`
}

func encodePoints(points []SeriesPoint) ([]byte, error) {
	wire := make([]cachedPoint, len(points))
	for i, p := range points {
		wire[i].Date = p.Date.Format("2006-01-02")
		if !math.IsNaN(p.Value) {
			v := p.Value
			wire[i].Value = &v
		}
	}
	return json.Marshal(wire)
}

func decodePoints(data []byte) ([]SeriesPoint, error) {
	var wire []cachedPoint
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	out := make([]SeriesPoint, len(wire))
	for i, w := range wire {
		d, err := time.Parse("2006-01-02", w.Date)
		if err != nil {
			return nil, err
		}
		out[i] = SeriesPoint{Date: d, Value: math.NaN()}
		if w.Value != nil {
			out[i].Value = *w.Value
		}
	}
	return out, nil
}

// RedisCache implements SeriesCache on Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{client: client, prefix: "regimelab:series:"}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]SeriesPoint, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return decodePoints(data)
}

func (c *RedisCache) Set(ctx context.Context, key string, points []SeriesPoint, ttl time.Duration) error {
	data, err := encodePoints(points)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// MemoryCache implements SeriesCache in process. Entries do not expire.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]SeriesPoint, error) {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	return decodePoints(data)
}

func (c *MemoryCache) Set(_ context.Context, key string, points []SeriesPoint, _ time.Duration) error {
	data, err := encodePoints(points)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
	return nil
}

// nopCache never stores anything.
type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]SeriesPoint, error) { return nil, ErrCacheMiss }

func (nopCache) Set(context.Context, string, []SeriesPoint, time.Duration) error { return nil }

var (
	_ SeriesCache = (*RedisCache)(nil)
	_ SeriesCache = (*MemoryCache)(nil)
	_ SeriesCache = nopCache{}
)
