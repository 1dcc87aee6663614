package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/authkit/reason"
)

// ThrottleMaxClients bounds the per-client buckets Throttle keeps. The least
// recently seen client is evicted first.
const ThrottleMaxClients = 10000

type throttle struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	// mu makes lookup-or-insert atomic; the cache is itself safe for concurrent use.
	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
}

// Throttle limits each client IP to rps requests per second with the given burst.
func Throttle(rps float64, burst int) func(http.Handler) http.Handler {
	return newThrottle(rps, burst, ThrottleMaxClients, time.Now).middleware
}

func newThrottle(rps float64, burst, maxClients int, now func() time.Time) *throttle {
	if burst < 1 {
		burst = 1
	}
	if maxClients < 1 {
		maxClients = ThrottleMaxClients
	}
	cache, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		panic(err) // size is positive
	}
	return &throttle{rps: rate.Limit(rps), burst: burst, now: now, buckets: cache}
}

func (t *throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(t.rps, t.burst)
		t.buckets.Add(key, lim)
	}
	return lim
}

func (t *throttle) allow(key string) (bool, time.Duration) {
	now := t.now()
	res := t.limiter(key).ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientIP(r)
		if key == "" {
			key = "unknown"
		}
		ok, wait := t.allow(key)
		if !ok {
			secs := int(wait / time.Second)
			if time.Duration(secs)*time.Second < wait {
				secs++
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeReason(w, reason.RateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
