package gateway

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 4096
)

var (
	errTokenRequired = errors.New("token required")
	errTokenMismatch = errors.New("token mismatch")
	errLockedOut     = errors.New("too many failed attempts")
)

// authRateLimiter budgets failed token checks per remote host. Each host may
// fail authRateMaxFails times in a burst; the budget refills over
// authRateWindow. Only the most active hosts are tracked.
type authRateLimiter struct {
	mu    sync.Mutex
	hosts *lru.ARCCache
	now   func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	hosts, err := lru.NewARC(authRateMaxIPs)
	if err != nil {
		panic(err)
	}
	return &authRateLimiter{hosts: hosts, now: time.Now}
}

func (l *authRateLimiter) limiter(host string) *rate.Limiter {
	if v, ok := l.hosts.Get(host); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Every(authRateWindow/authRateMaxFails), authRateMaxFails)
	l.hosts.Add(host, lim)
	return lim
}

// allow reports whether host still has failure budget left.
func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := remoteHost(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.hosts.Peek(host)
	if !ok {
		return true
	}
	return v.(*rate.Limiter).TokensAt(l.now()) >= 1
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := remoteHost(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter(host).AllowN(l.now(), 1)
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// requestToken reads a bearer token, falling back to ?token= for WebSocket
// clients that cannot set headers.
func requestToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return r.URL.Query().Get("token")
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// authorize checks the caller's token. No configured token means open access.
func (s *Server) authorize(r *http.Request) error {
	if s.token == "" {
		return nil
	}
	if !s.authLimiter.allow(r.RemoteAddr) {
		return errLockedOut
	}
	err := errTokenMismatch
	switch got := requestToken(r); {
	case got == "":
		err = errTokenRequired
	case safeEqual(got, s.token):
		return nil
	}
	s.authLimiter.recordFailure(r.RemoteAddr)
	return err
}

func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.authorize(r)
		if err == nil {
			next(w, r)
			return
		}
		status := http.StatusUnauthorized
		if errors.Is(err, errLockedOut) {
			status = http.StatusTooManyRequests
		}
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("rejected request")
		writeError(w, status, err.Error())
	})
}

// safeEqual compares in constant time without leaking the length of b.
func safeEqual(a, b string) bool {
	sameLen := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	sameBytes := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(sameLen, sameBytes, 0) == 1
}
