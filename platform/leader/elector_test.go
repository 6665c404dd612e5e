package leader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPElectorComparesHostname(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"pod-a","last_update":"2024-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	leader, err := NewHTTPElector(srv.URL, "pod-a").IsLeader(context.Background())
	require.NoError(t, err)
	assert.True(t, leader)

	leader, err = NewHTTPElector(srv.URL, "pod-b").IsLeader(context.Background())
	require.NoError(t, err)
	assert.False(t, leader)
}

func TestHTTPElectorPropagatesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPElector(srv.URL, "pod-a").IsLeader(context.Background())
	assert.Error(t, err)
}

func TestRedisElectorSingleHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	a := NewRedisElector(rdb, "leader:test", "pod-a", 5*time.Second)
	b := NewRedisElector(rdb, "leader:test", "pod-b", 5*time.Second)

	ok, err := a.IsLeader(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.IsLeader(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// renewal keeps the lock with the holder
	ok, err = a.IsLeader(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(6 * time.Second)
	ok, err = b.IsLeader(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock should pass to b after the ttl expires")

	require.NoError(t, a.Resign(ctx))
	holder, err := mr.Get("leader:test")
	require.NoError(t, err)
	assert.Equal(t, "pod-b", holder, "resign must not release a lock held by another replica")
}

func TestStaticElector(t *testing.T) {
	lead, err := Static(true).IsLeader(context.Background())
	require.NoError(t, err)
	assert.True(t, lead)

	lead, err = Static(false).IsLeader(context.Background())
	require.NoError(t, err)
	assert.False(t, lead)
}
