// Package leader decides which replica runs singleton background work.
package leader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Elector reports whether this replica currently holds leadership.
type Elector interface {
	IsLeader(ctx context.Context) (bool, error)
}

// Static reports a fixed role, for single-replica deployments without an
// election backend.
type Static bool

// IsLeader implements Elector.
func (s Static) IsLeader(context.Context) (bool, error) {
	return bool(s), nil
}

// HTTPElector asks a leader-election sidecar who the leader is and compares
// the answer with this replica's hostname.
type HTTPElector struct {
	url      string
	hostname string
	client   *http.Client
}

// NewHTTPElector creates an elector backed by the sidecar at url.
func NewHTTPElector(url, hostname string) *HTTPElector {
	return &HTTPElector{
		url:      url,
		hostname: hostname,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type electorResponse struct {
	Name string `json:"name"`
}

// IsLeader implements Elector.
func (e *HTTPElector) IsLeader(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return false, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("leader election request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("leader election returned status %d", resp.StatusCode)
	}

	var body electorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode leader election response: %w", err)
	}
	return body.Name == e.hostname, nil
}

// renewScript extends the lock only when this replica still owns it.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisElector holds leadership through a Redis lock with a TTL. A replica
// that stops renewing loses the lock once the TTL expires.
type RedisElector struct {
	rdb      redis.UniversalClient
	key      string
	hostname string
	ttl      time.Duration
}

// NewRedisElector creates a lock-based elector.
func NewRedisElector(rdb redis.UniversalClient, key, hostname string, ttl time.Duration) *RedisElector {
	return &RedisElector{rdb: rdb, key: key, hostname: hostname, ttl: ttl}
}

// IsLeader implements Elector by acquiring or renewing the lock.
func (e *RedisElector) IsLeader(ctx context.Context) (bool, error) {
	acquired, err := e.rdb.SetNX(ctx, e.key, e.hostname, e.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire leader lock: %w", err)
	}
	if acquired {
		return true, nil
	}

	renewed, err := renewScript.Run(ctx, e.rdb, []string{e.key}, e.hostname, e.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew leader lock: %w", err)
	}
	return renewed == 1, nil
}

// Resign releases the lock if this replica holds it.
func (e *RedisElector) Resign(ctx context.Context) error {
	current, err := e.rdb.Get(ctx, e.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current != e.hostname {
		return nil
	}
	return e.rdb.Del(ctx, e.key).Err()
}
