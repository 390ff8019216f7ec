package auth

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LoginThrottle counts failed logins per key and locks the key once the
// limit is reached inside the window. Counters expire with the window.
type LoginThrottle struct {
	maxFailures int
	window      time.Duration
	failures    *gocache.Cache
}

func NewLoginThrottle(maxFailures int, window time.Duration) *LoginThrottle {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginThrottle{
		maxFailures: maxFailures,
		window:      window,
		failures:    gocache.New(window, 2*window),
	}
}

func (t *LoginThrottle) Locked(key string) bool {
	n, found := t.failures.Get(key)
	if !found {
		return false
	}
	return n.(int) >= t.maxFailures
}

func (t *LoginThrottle) Fail(key string) {
	if _, err := t.failures.IncrementInt(key, 1); err != nil {
		t.failures.Set(key, 1, t.window)
	}
}

func (t *LoginThrottle) Reset(key string) {
	t.failures.Delete(key)
}
