package resolver

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngx-proxy/forward-engine/common/errs"
)

func TestResolveLiteral(t *testing.T) {
	r := New("")
	ep, err := r.Resolve(context.Background(), "127.0.0.1", "8080")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", ep.String())

	ep, err = r.Resolve(context.Background(), "::1", "53")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), ep.Family())
}

func TestResolveBadPort(t *testing.T) {
	r := New("")
	_, err := r.Resolve(context.Background(), "127.0.0.1", "banana")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindProtocol))

	_, err = r.Resolve(context.Background(), "127.0.0.1", "70000")
	require.Error(t, err)
}

func TestLookupServedFromCache(t *testing.T) {
	r := New("")
	want := []netip.Addr{netip.MustParseAddr("192.0.2.7")}
	r.cache.Store("cached.example", cacheEntry{addrs: want, expires: time.Now().Add(time.Minute)})

	got, err := r.LookupAddrs(context.Background(), "cached.example")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExpiredCacheEntryIgnored(t *testing.T) {
	r := New("203.0.113.1:1") // unroutable, query will fail fast or time out
	r.client.Timeout = 50 * time.Millisecond
	r.cache.Store("stale.example", cacheEntry{
		addrs:   []netip.Addr{netip.MustParseAddr("192.0.2.7")},
		expires: time.Now().Add(-time.Second),
	})

	_, err := r.LookupAddrs(context.Background(), "stale.example")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
}

func TestNameserverDefaultPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1:53", New("10.0.0.1").nameserver)
	assert.Equal(t, "10.0.0.1:5353", New("10.0.0.1:5353").nameserver)
}

func TestClampTTL(t *testing.T) {
	assert.Equal(t, minCacheTTL, clampTTL(0))
	assert.Equal(t, maxCacheTTL, clampTTL(time.Hour))
	assert.Equal(t, 30*time.Second, clampTTL(30*time.Second))
}
