package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/johnquangdev/meetscribe/pkg/ingestproto"
)

const (
	statsKeyPrefix = "ingest:stats:"
	statsIndexKey  = "ingest:stats:index"
)

// StatsStore keeps the live per-connection ingest counters
type StatsStore interface {
	Put(ctx context.Context, stats ingestproto.Stats) error
	Get(ctx context.Context, id string) (ingestproto.Stats, bool, error)
	List(ctx context.Context) ([]ingestproto.Stats, error)
	Close() error
}

// MemoryStatsStore keeps stats in process memory
type MemoryStatsStore struct {
	store *MemoryStore
	ttl   time.Duration
}

// NewMemoryStatsStore creates a stats store backed by MemoryStore
func NewMemoryStatsStore(ttl time.Duration) *MemoryStatsStore {
	return &MemoryStatsStore{store: NewMemoryStore(), ttl: ttl}
}

func (m *MemoryStatsStore) Put(_ context.Context, stats ingestproto.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	m.store.Set(stats.ID, string(data), m.ttl)
	return nil
}

func (m *MemoryStatsStore) Get(_ context.Context, id string) (ingestproto.Stats, bool, error) {
	raw, ok := m.store.Get(id)
	if !ok {
		return ingestproto.Stats{}, false, nil
	}
	var stats ingestproto.Stats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return ingestproto.Stats{}, false, err
	}
	return stats, true, nil
}

func (m *MemoryStatsStore) List(ctx context.Context) ([]ingestproto.Stats, error) {
	var out []ingestproto.Stats
	for _, key := range m.store.Keys() {
		stats, ok, err := m.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, stats)
		}
	}
	sortStats(out)
	return out, nil
}

func (m *MemoryStatsStore) Close() error {
	m.store.Close()
	return nil
}

// RedisStatsStore shares stats across service replicas
type RedisStatsStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsStore connects to Redis and verifies the connection
func NewRedisStatsStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStatsStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStatsStore{client: client, ttl: ttl}, nil
}

func (r *RedisStatsStore) Put(ctx context.Context, stats ingestproto.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, statsKeyPrefix+stats.ID, data, r.ttl)
	pipe.SAdd(ctx, statsIndexKey, stats.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store ingest stats: %w", err)
	}
	return nil
}

func (r *RedisStatsStore) Get(ctx context.Context, id string) (ingestproto.Stats, bool, error) {
	raw, err := r.client.Get(ctx, statsKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return ingestproto.Stats{}, false, nil
	}
	if err != nil {
		return ingestproto.Stats{}, false, fmt.Errorf("failed to read ingest stats: %w", err)
	}
	var stats ingestproto.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return ingestproto.Stats{}, false, err
	}
	return stats, true, nil
}

// List returns every live entry and prunes index members whose key expired
func (r *RedisStatsStore) List(ctx context.Context) ([]ingestproto.Stats, error) {
	ids, err := r.client.SMembers(ctx, statsIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest stats: %w", err)
	}
	var out []ingestproto.Stats
	for _, id := range ids {
		stats, ok, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.client.SRem(ctx, statsIndexKey, id)
			continue
		}
		out = append(out, stats)
	}
	sortStats(out)
	return out, nil
}

func (r *RedisStatsStore) Close() error {
	return r.client.Close()
}

func sortStats(stats []ingestproto.Stats) {
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].StartedAt.Before(stats[j].StartedAt)
	})
}
