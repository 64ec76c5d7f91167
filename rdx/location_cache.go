package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/redis/go-redis/v9"
)

// LocationCache shares the freshest driver report and the persist gate
// across instances. Entries expire through Redis TTLs.
type LocationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocationCache(client *redis.Client, ttl time.Duration) *LocationCache {
	return &LocationCache{client: client, ttl: ttl}
}

func locationKey(key string) string { return "loc:last:" + key }

func gateKey(key string) string { return "loc:persist:" + key }

func stampKey(key string) string { return "loc:at:" + key }

// putNewer writes the location unless the stored one is newer.
// KEYS: location, stamp. ARGV: payload, unix millis, ttl millis.
var putNewer = redis.NewScript(`
local at = redis.call("GET", KEYS[2])
if at and tonumber(at) > tonumber(ARGV[2]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// Put stores loc unless a newer report for key is already cached.
func (c *LocationCache) Put(ctx context.Context, key string, loc models.DriverLocation) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	keys := []string{locationKey(key), stampKey(key)}
	return putNewer.Run(ctx, c.client, keys, data, loc.UpdatedAt.UnixMilli(), c.ttl.Milliseconds()).Err()
}

func (c *LocationCache) Get(ctx context.Context, key string) (models.DriverLocation, bool, error) {
	raw, err := c.client.Get(ctx, locationKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.DriverLocation{}, false, nil
	}
	if err != nil {
		return models.DriverLocation{}, false, err
	}
	var loc models.DriverLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		return models.DriverLocation{}, false, err
	}
	return loc, true, nil
}

// ClaimPersist is a SETNX with the interval as TTL: whoever sets the gate
// persists, everyone else only caches until it expires.
func (c *LocationCache) ClaimPersist(ctx context.Context, key string, now time.Time, interval time.Duration) (bool, error) {
	return c.client.SetNX(ctx, gateKey(key), now.Unix(), interval).Result()
}

func (c *LocationCache) ReleasePersist(ctx context.Context, key string) error {
	return c.client.Del(ctx, gateKey(key)).Err()
}

// Sweep leaves expiry to Redis and only counts live entries for the gauge.
func (c *LocationCache) Sweep(ctx context.Context, _ time.Time) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, locationKey("*"), 500).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
