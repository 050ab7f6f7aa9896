package cryptox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDrandServer(t *testing.T, round uint64, infoCalls *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/chain/info", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(infoCalls, 1)
		_, _ = w.Write([]byte(`{"period":3,"genesis_time":1692803367,"hash":"chain"}`))
	})
	mux.HandleFunc("/chain/public/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"round":` + strconv.FormatUint(round, 10) + `}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDrandClock_Now(t *testing.T) {
	var calls int32
	srv := newDrandServer(t, 1000, &calls)

	c := NewDrandClock(srv.URL+"/", "chain", srv.Client())

	now, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1692803367+3000, 0).UTC(), now)

	_, err = c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDrandClock_RoundAt(t *testing.T) {
	var calls int32
	srv := newDrandServer(t, 1, &calls)
	c := NewDrandClock(srv.URL, "chain", srv.Client())

	round, err := c.RoundAt(context.Background(), time.Unix(1692803367+30, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), round)

	round, err = c.RoundAt(context.Background(), time.Unix(1692803367+31, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), round)

	_, err = c.RoundAt(context.Background(), time.Unix(0, 0))
	assert.Error(t, err)
}

func TestDrandClock_GatesTimeLock(t *testing.T) {
	var calls int32
	srv := newDrandServer(t, 1000, &calls)
	l := NewTimeLocker(NewDrandClock(srv.URL, "chain", srv.Client()))
	assert.Equal(t, "drand", l.Authority())

	beacon := RoundTime(1692803367, 3, 1000)

	env, err := l.Lock([]byte("beacon"), beacon.Add(time.Second))
	require.NoError(t, err)
	_, err = l.Unlock(context.Background(), env)
	assert.ErrorIs(t, err, common.ErrTimeLockNotExpired)
	assert.ErrorContains(t, err, "beacon round 1001")

	env, err = l.Lock([]byte("beacon"), beacon)
	require.NoError(t, err)
	got, err := l.Unlock(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, []byte("beacon"), got)
}

func TestDrandClock_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewDrandClock(srv.URL, "chain", srv.Client()).Now(context.Background())
	assert.ErrorContains(t, err, "502")
}
