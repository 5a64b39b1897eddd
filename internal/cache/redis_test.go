package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"timelock-backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestKeys(t *testing.T) {
	if got := statsKey("p1"); got != "timelock:stats:p1" {
		t.Fatalf("stats key = %q", got)
	}
	if got := genKey("p1"); got != "timelock:stats:gen:p1" {
		t.Fatalf("gen key = %q", got)
	}
}

func TestParseGen(t *testing.T) {
	tests := []struct {
		in      any
		want    uint64
		wantErr bool
	}{
		{in: nil, want: 0},
		{in: "7", want: 7},
		{in: "x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseGen(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("parseGen(%v) = %d, %v", tt.in, got, err)
		}
	}
}

func TestRedisStatsCache_ReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisStatsCache(client, time.Minute)
	ctx := context.Background()

	if _, _, ok, err := c.Get(ctx, "p1"); err == nil || ok {
		t.Fatalf("get = %v, %v", ok, err)
	}
	if err := c.Set(ctx, "p1", 0, &models.RelationshipStats{TotalMessages: 1}); err == nil {
		t.Fatalf("set succeeded without a server")
	}
	if err := c.Invalidate(ctx, "p1"); err == nil {
		t.Fatalf("invalidate succeeded without a server")
	}
}

// TestRedisStatsCache_Generations runs against TIMELOCK_TEST_REDIS_ADDR
func TestRedisStatsCache_Generations(t *testing.T) {
	addr := os.Getenv("TIMELOCK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TIMELOCK_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisStatsCache(client, time.Minute)
	ctx := context.Background()
	id := uuid.New().String()
	t.Cleanup(func() { client.Del(context.Background(), statsKey(id), genKey(id)) })

	_, gen, ok, err := c.Get(ctx, id)
	if err != nil || ok || gen != 0 {
		t.Fatalf("fresh get = %d, %v, %v", gen, ok, err)
	}
	if err := c.Set(ctx, id, gen, &models.RelationshipStats{TotalMessages: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	stats, _, ok, err := c.Get(ctx, id)
	if err != nil || !ok || stats.TotalMessages != 1 {
		t.Fatalf("cached = %+v, %v, %v", stats, ok, err)
	}

	// A write between reading the generation and storing drops the store.
	_, gen, _, _ = c.Get(ctx, id)
	if err := c.Invalidate(ctx, id); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := c.Set(ctx, id, gen, &models.RelationshipStats{TotalMessages: 1}); err != nil {
		t.Fatalf("stale set: %v", err)
	}
	_, next, ok, err := c.Get(ctx, id)
	if err != nil || ok || next != gen+1 {
		t.Fatalf("after stale set = %d, %v, %v", next, ok, err)
	}
}
