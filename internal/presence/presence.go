package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineKeyPrefix = "arcadia:online:"

	// Sessions idle longer than this had every server crash without
	// cleaning up; let Redis reap the set.
	onlineExpiration = 2 * time.Hour
)

// Tracker records which players are currently connected to each session.
// This is the onlineUsers subset of the roster: connection state, not
// membership.
type Tracker interface {
	Connect(ctx context.Context, sessionID, playerID string) error
	Disconnect(ctx context.Context, sessionID, playerID string) error
	Online(ctx context.Context, sessionID string) ([]string, error)
}

// Redis tracks presence in a per-session set so multiple server instances
// agree on who is connected.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Connect(ctx context.Context, sessionID, playerID string) error {
	key := onlineKeyPrefix + sessionID
	if err := r.client.SAdd(ctx, key, playerID).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, onlineExpiration).Err()
}

func (r *Redis) Disconnect(ctx context.Context, sessionID, playerID string) error {
	return r.client.SRem(ctx, onlineKeyPrefix+sessionID, playerID).Err()
}

func (r *Redis) Online(ctx context.Context, sessionID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, onlineKeyPrefix+sessionID).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

// Memory is the single-instance fallback used when no REDIS_ADDR is
// configured.
type Memory struct {
	mu     sync.Mutex
	online map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{online: make(map[string]map[string]struct{})}
}

func (m *Memory) Connect(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.online[sessionID]
	if !ok {
		set = make(map[string]struct{})
		m.online[sessionID] = set
	}
	set[playerID] = struct{}{}
	return nil
}

func (m *Memory) Disconnect(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.online[sessionID]; ok {
		delete(set, playerID)
		if len(set) == 0 {
			delete(m.online, sessionID)
		}
	}
	return nil
}

func (m *Memory) Online(ctx context.Context, sessionID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.online[sessionID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
