package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/redis/go-redis/v9"
)

// StatsCache keeps the team dashboard numbers per date. Misses and backend
// errors both read as a miss; callers fall back to the ledger.
//
// Writers read Generation before counting and pass it to Set. Any
// Invalidate in between bumps the generation and the Set is dropped, so a
// count taken before a check-in is never cached after it.
type StatsCache interface {
	Get(ctx context.Context, date string) (attendance.TeamStats, bool)
	Generation(ctx context.Context) (int64, bool)
	Set(ctx context.Context, date string, gen int64, s attendance.TeamStats)
	Invalidate(ctx context.Context, date string)
}

type MemoryStats struct {
	mu  sync.Mutex
	gen int64
	c   *TTL[attendance.TeamStats]
}

func NewMemoryStats(ttl time.Duration) *MemoryStats {
	return &MemoryStats{c: NewTTL[attendance.TeamStats](ttl)}
}

func (m *MemoryStats) Get(_ context.Context, date string) (attendance.TeamStats, bool) {
	return m.c.Get(date)
}

func (m *MemoryStats) Generation(_ context.Context) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, true
}

func (m *MemoryStats) Set(_ context.Context, date string, gen int64, s attendance.TeamStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}
	m.c.Set(date, s)
}

func (m *MemoryStats) Invalidate(_ context.Context, date string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.c.Delete(date)
}

// set only while the generation still matches what the writer read
var setIfGenerationScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisStats shares the cache across API instances.
type RedisStats struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	genKey string
}

func NewRedisStats(rdb redis.UniversalClient, ttl time.Duration) *RedisStats {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisStats{rdb: rdb, ttl: ttl, prefix: "stats:team:", genKey: "stats:team:gen"}
}

func (r *RedisStats) Get(ctx context.Context, date string) (attendance.TeamStats, bool) {
	raw, err := r.rdb.Get(ctx, r.prefix+date).Bytes()
	if err != nil {
		return attendance.TeamStats{}, false
	}

	var s attendance.TeamStats
	if err := json.Unmarshal(raw, &s); err != nil {
		return attendance.TeamStats{}, false
	}
	return s, true
}

func (r *RedisStats) Generation(ctx context.Context) (int64, bool) {
	gen, err := r.rdb.Get(ctx, r.genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		return 0, false
	}
	return gen, true
}

func (r *RedisStats) Set(ctx context.Context, date string, gen int64, s attendance.TeamStats) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = setIfGenerationScript.Run(ctx, r.rdb,
		[]string{r.genKey, r.prefix + date},
		strconv.FormatInt(gen, 10), raw, r.ttl.Milliseconds(),
	).Err()
}

func (r *RedisStats) Invalidate(ctx context.Context, date string) {
	_, _ = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.genKey)
		pipe.Del(ctx, r.prefix+date)
		return nil
	})
}
