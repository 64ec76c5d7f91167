package rdx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/config"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// These tests need a live server: REDIS_TEST_ADDR=localhost:6379 go test ./rdx
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := NewClient(config.RedisConfig{Address: addr})
	if err := Ping(context.Background(), client); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLockerExcludes(t *testing.T) {
	client := testClient(t)
	l := NewLocker(client, 5*time.Second)
	key := "test:" + uuid.NewString()

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); err == nil {
		t.Fatal("second holder acquired the lock")
	}
	unlock()

	again, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestLocationCacheGate(t *testing.T) {
	client := testClient(t)
	c := NewLocationCache(client, time.Minute)
	ctx := context.Background()
	key := "d1:" + uuid.NewString()
	now := time.Now()

	first, err := c.ClaimPersist(ctx, key, now, 30*time.Second)
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v", first, err)
	}
	second, _ := c.ClaimPersist(ctx, key, now.Add(time.Second), 30*time.Second)
	if second {
		t.Fatal("second claim inside the interval succeeded")
	}
	c.ReleasePersist(ctx, key)
	third, _ := c.ClaimPersist(ctx, key, now.Add(2*time.Second), 30*time.Second)
	if !third {
		t.Fatal("claim after release failed")
	}

	loc := models.DriverLocation{DriverID: "d1", Coordinates: models.Coordinates{Lat: 4, Lng: 2}, UpdatedAt: now}
	if err := c.Put(ctx, key, loc); err != nil {
		t.Fatalf("put: %v", err)
	}
	older := models.DriverLocation{DriverID: "d1", Coordinates: models.Coordinates{Lat: 9, Lng: 9}, UpdatedAt: now.Add(-time.Second)}
	if err := c.Put(ctx, key, older); err != nil {
		t.Fatalf("put older: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || got.Coordinates != loc.Coordinates {
		t.Fatalf("get = %+v %v %v", got, ok, err)
	}
	client.Del(ctx, locationKey(key), stampKey(key), gateKey(key))
}
