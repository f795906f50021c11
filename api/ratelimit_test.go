package api

import (
	"net/http"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIPLimiter() (*ipRateLimiter, *testClock) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := newIPRateLimiter()
	rl.now = clock.Now
	return rl, clock
}

func TestIPRateLimiter_AllowsBeforeThreshold(t *testing.T) {
	rl, _ := newTestIPLimiter()
	for range ipMaxFailures - 1 {
		rl.recordFailure("192.0.2.1")
	}
	blocked, _ := rl.check("192.0.2.1")
	assert.False(t, blocked)
}

func TestIPRateLimiter_BlocksAfterThreshold(t *testing.T) {
	rl, clock := newTestIPLimiter()
	for range ipMaxFailures {
		rl.recordFailure("192.0.2.1")
	}
	blocked, retryAfter := rl.check("192.0.2.1")
	require.True(t, blocked)
	assert.Equal(t, ipBaseLockout, retryAfter)

	clock.Advance(ipBaseLockout)
	blocked, _ = rl.check("192.0.2.1")
	assert.False(t, blocked, "lockout ends after its duration")
}

func TestIPRateLimiter_ExponentialBackoff(t *testing.T) {
	rl, _ := newTestIPLimiter()
	for range ipMaxFailures + 2 {
		rl.recordFailure("192.0.2.1")
	}
	_, retryAfter := rl.check("192.0.2.1")
	assert.Equal(t, 4*ipBaseLockout, retryAfter)
}

func TestIPRateLimiter_MaxLockoutCap(t *testing.T) {
	rl, _ := newTestIPLimiter()
	for range ipMaxFailures + 20 {
		rl.recordFailure("192.0.2.1")
	}
	_, retryAfter := rl.check("192.0.2.1")
	assert.Equal(t, ipMaxLockout, retryAfter)
}

func TestIPRateLimiter_IsolatesAndResets(t *testing.T) {
	rl, _ := newTestIPLimiter()
	for range ipMaxFailures {
		rl.recordFailure("192.0.2.1")
	}
	blocked, _ := rl.check("192.0.2.2")
	assert.False(t, blocked, "one IP's failures must not affect another")

	rl.recordSuccess("192.0.2.1")
	blocked, _ = rl.check("192.0.2.1")
	assert.False(t, blocked, "success clears the record")
}

func TestIPRateLimiter_SweepRemovesExpired(t *testing.T) {
	rl, clock := newTestIPLimiter()
	rl.recordFailure("old")
	clock.Advance(attemptExpiry / 2)
	rl.recordFailure("recent")
	clock.Advance(attemptExpiry/2 + time.Second)

	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.attempts, "old")
	assert.Contains(t, rl.attempts, "recent")
}

func TestGlobalRateLimiter(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := newGlobalRateLimiter()
	rl.now = clock.Now

	for range globalMaxFailures - 1 {
		rl.recordFailure()
	}
	blocked, _ := rl.check()
	assert.False(t, blocked)

	t.Run("SlidingWindowExpiry", func(t *testing.T) {
		clock.Advance(globalWindow + time.Second)
		rl.recordFailure()
		blocked, _ := rl.check()
		assert.False(t, blocked, "old failures fall out of the window")
	})

	t.Run("BlocksAtThreshold", func(t *testing.T) {
		for range globalMaxFailures {
			rl.recordFailure()
		}
		blocked, retryAfter := rl.check()
		assert.True(t, blocked)
		assert.Equal(t, globalLockout, retryAfter)
	})
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, backoff(5, 5, time.Minute, time.Hour))
	assert.Equal(t, 2*time.Minute, backoff(6, 5, time.Minute, time.Hour))
	assert.Equal(t, 8*time.Minute, backoff(8, 5, time.Minute, time.Hour))
	assert.Equal(t, time.Hour, backoff(50, 5, time.Minute, time.Hour))
}

func TestRetryAfterString(t *testing.T) {
	assert.Equal(t, "1", retryAfterString(0))
	assert.Equal(t, "1", retryAfterString(300*time.Millisecond))
	assert.Equal(t, "90", retryAfterString(90*time.Second))
}

func TestExtractClientIPWithProxies(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		proxies    []netip.Prefix
		want       string
	}{
		{"remote addr only", "192.0.2.1:1234", nil, nil, "192.0.2.1"},
		{"no proxies ignores XFF", "192.0.2.1:1234", map[string]string{"X-Forwarded-For": "198.51.100.25"}, nil, "192.0.2.1"},
		{"trusted proxy honors XFF", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.25, 10.0.0.2"}, trusted, "198.51.100.25"},
		{"trusted proxy skips junk XFF", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "unknown, 198.51.100.26"}, trusted, "198.51.100.26"},
		{"trusted proxy honors Forwarded", "10.0.0.1:80", map[string]string{"Forwarded": `for="[2001:db8::1]:4711";proto=https`}, trusted, "2001:db8::1"},
		{"trusted proxy honors X-Real-IP", "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.27"}, trusted, "198.51.100.27"},
		{"untrusted peer ignores headers", "192.168.1.1:80", map[string]string{"X-Forwarded-For": "198.51.100.25", "X-Real-IP": "198.51.100.27"}, trusted, "192.168.1.1"},
		{"trusted proxy without headers", "10.0.0.1:80", nil, trusted, "10.0.0.1"},
		{"ipv6 remote", "[2001:db8::2]:443", nil, nil, "2001:db8::2"},
		{"ipv4-mapped remote", "[::ffff:192.0.2.9]:443", nil, nil, "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr, Header: make(http.Header)}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIPWithProxies(r, tt.proxies))
		})
	}
}

func TestWithTrustedProxies(t *testing.T) {
	t.Run("valid CIDRs and bare IPs", func(t *testing.T) {
		opt, err := WithTrustedProxies([]string{"10.0.0.0/8", " 172.16.0.1 ", "::1", ""})
		require.NoError(t, err)
		a := &API{}
		opt(a)
		require.Len(t, a.trustedProxies, 3)
		assert.Equal(t, 32, a.trustedProxies[1].Bits())
		assert.Equal(t, 128, a.trustedProxies[2].Bits())
	})

	t.Run("invalid entry returns error", func(t *testing.T) {
		_, err := WithTrustedProxies([]string{"10.0.0.0/8", "garbage"})
		require.Error(t, err)
	})
}
