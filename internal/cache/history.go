// Package cache stores per-course attendance history so repeated dashboard
// loads skip the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/attendance"
)

const (
	historyPrefix = "rollcall:history:"
	versionPrefix = "rollcall:history-version:"
)

// setIfVersion writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisHistory keeps history records as JSON values with a TTL.
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHistory builds a cache on an existing client.
func NewRedisHistory(client *redis.Client, ttl time.Duration) *RedisHistory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisHistory{client: client, ttl: ttl}
}

func (r *RedisHistory) Get(ctx context.Context, courseID string) ([]attendance.HistoryRecord, bool, error) {
	raw, err := r.client.Get(ctx, historyPrefix+courseID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var records []attendance.HistoryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, err
	}
	if records == nil {
		records = []attendance.HistoryRecord{}
	}
	return records, true, nil
}

func (r *RedisHistory) Version(ctx context.Context, courseID string) (int64, error) {
	v, err := r.client.Get(ctx, versionPrefix+courseID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *RedisHistory) Set(ctx context.Context, courseID string, version int64, records []attendance.HistoryRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	keys := []string{historyPrefix + courseID, versionPrefix + courseID}
	return setIfVersion.Run(ctx, r.client, keys, version, raw, r.ttl.Milliseconds()).Err()
}

func (r *RedisHistory) Invalidate(ctx context.Context, courseID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionPrefix+courseID)
		pipe.Del(ctx, historyPrefix+courseID)
		return nil
	})
	return err
}

// MemoryHistory is the single-process variant. Entries do not expire; every
// close invalidates its course.
type MemoryHistory struct {
	mu       sync.RWMutex
	entries  map[string][]byte
	versions map[string]int64
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]byte), versions: make(map[string]int64)}
}

func (m *MemoryHistory) Get(_ context.Context, courseID string) ([]attendance.HistoryRecord, bool, error) {
	m.mu.RLock()
	raw, ok := m.entries[courseID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	records := []attendance.HistoryRecord{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}

func (m *MemoryHistory) Version(_ context.Context, courseID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[courseID], nil
}

func (m *MemoryHistory) Set(_ context.Context, courseID string, version int64, records []attendance.HistoryRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[courseID] != version {
		return nil
	}
	m.entries[courseID] = raw
	return nil
}

func (m *MemoryHistory) Invalidate(_ context.Context, courseID string) error {
	m.mu.Lock()
	m.versions[courseID]++
	delete(m.entries, courseID)
	m.mu.Unlock()
	return nil
}
