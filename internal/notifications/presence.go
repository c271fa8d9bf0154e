package notifications

import (
	"context"
	"strconv"
	"sync"
	"time"

	"homehive/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix  = "ws:last_seen:"
	defaultPresenceTTL = 90 * time.Second
)

// Presence tracks which users have an open socket. Local connection counts are
// authoritative for this process; a Redis last-seen key with a TTL shares the state
// with other API instances and expires on its own when a process dies.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration

	mu     sync.RWMutex
	counts map[uint]int
}

func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{
		rdb:    rdb,
		ttl:    defaultPresenceTTL,
		counts: make(map[uint]int),
	}
}

// Connected records a new socket for userID.
func (p *Presence) Connected(ctx context.Context, userID uint) {
	p.mu.Lock()
	p.counts[userID]++
	p.mu.Unlock()
	p.Touch(ctx, userID)
}

// Disconnected records a closed socket. The shared key is dropped with the last one.
func (p *Presence) Disconnected(ctx context.Context, userID uint) {
	p.mu.Lock()
	n := p.counts[userID] - 1
	if n > 0 {
		p.counts[userID] = n
		p.mu.Unlock()
		return
	}
	delete(p.counts, userID)
	p.mu.Unlock()

	if p.rdb != nil {
		if err := p.rdb.Del(ctx, p.key(userID)).Err(); err != nil {
			observability.RedisErrorRate.WithLabelValues("presence_del").Inc()
		}
	}
}

// Touch refreshes the shared last-seen key.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := p.rdb.SetEx(ctx, p.key(userID), now, p.ttl).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("presence_touch").Inc()
	}
}

// IsOnline reports whether userID has a socket on this or any other instance.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	local := p.counts[userID] > 0
	p.mu.RUnlock()
	if local || p.rdb == nil {
		return local
	}
	n, err := p.rdb.Exists(ctx, p.key(userID)).Result()
	return err == nil && n > 0
}

func (p *Presence) key(userID uint) string {
	return presenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}
