package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/destinations/internal/destination"
)

const (
	defaultTTL = 5 * time.Minute
	versionTTL = 24 * time.Hour
)

// setIfVersion writes the city only while its version counter still holds the
// value the reader observed before going to the database. A missing counter
// reads as "0".
var setIfVersion = redis.NewScript(`
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// Cache wraps a Redis client and provides typed get/set/delete for single cities.
// It is a read-through copy only; Postgres stays the source of truth.
//
// Every city has a version counter that Delete bumps. Readers take the version
// before loading from Postgres and pass it to Set, so a load that raced a
// write can never put the older row back.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A non-positive ttl falls back to five minutes.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// key returns the Redis key for the given city id.
func key(id string) string {
	return "city:" + strings.ToLower(strings.TrimSpace(id))
}

func versionKey(id string) string {
	return key(id) + ":version"
}

// Get retrieves a city from cache.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, id string) (*destination.City, error) {
	val, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for city %s: %w", id, err)
	}

	var city destination.City
	if err := json.Unmarshal(val, &city); err != nil {
		return nil, fmt.Errorf("unmarshaling cached city %s: %w", id, err)
	}

	return &city, nil
}

// Version returns the current version counter of a city; zero when none was
// ever written.
func (c *Cache) Version(ctx context.Context, id string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache version for city %s: %w", id, err)
	}
	return v, nil
}

// Set stores a city with the configured TTL, provided its version counter still
// equals version. It reports whether the entry was written.
func (c *Cache) Set(ctx context.Context, city *destination.City, version int64) (bool, error) {
	if city == nil {
		return false, nil
	}

	b, err := json.Marshal(city)
	if err != nil {
		return false, fmt.Errorf("marshaling city %s: %w", city.ID, err)
	}

	keys := []string{key(city.ID), versionKey(city.ID)}
	n, err := setIfVersion.Run(ctx, c.client, keys, version, b, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache set for city %s: %w", city.ID, err)
	}

	return n == 1, nil
}

// Delete removes the cached entry for the given city id and bumps its version,
// invalidating any Set prepared against the previous one.
func (c *Cache) Delete(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
		pipe.Del(ctx, key(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache delete for city %s: %w", id, err)
	}
	return nil
}
