package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// Middleware guards the status server with an IP allow list and a per-client
// token bucket, and logs every request at debug level.
type Middleware struct {
	allowed []*net.IPNet
	rps     rate.Limit
	burst   int

	mu           sync.Mutex
	rateLimiters map[string]*rate.Limiter

	logger zerolog.Logger
}

// NewMiddleware creates a middleware. Entries in allowed may be single
// addresses or CIDR ranges; invalid entries are skipped. A zero rps disables
// rate limiting.
func NewMiddleware(allowed []string, rps float64, burst int) *Middleware {
	m := &Middleware{
		rps:          rate.Limit(rps),
		burst:        burst,
		rateLimiters: make(map[string]*rate.Limiter),
		logger:       log.WithComponent("api"),
	}
	if m.burst < 1 {
		m.burst = 1
	}

	for _, entry := range allowed {
		if ipNet := parseNetwork(entry); ipNet != nil {
			m.allowed = append(m.allowed, ipNet)
		} else {
			m.logger.Warn().Str("entry", entry).Msg("Ignoring invalid allowed network")
		}
	}
	return m
}

// Wrap applies access control and rate limiting in front of next
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := getClientIP(r)

		if !m.checkAccess(clientIP) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if !m.checkRateLimit(clientIP) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)

		m.logger.Debug().
			Str("client", clientIP).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

func (m *Middleware) checkAccess(clientIP string) bool {
	if len(m.allowed) == 0 {
		return true
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		m.logger.Warn().Str("client", clientIP).Msg("Invalid client IP")
		return false
	}
	for _, ipNet := range m.allowed {
		if ipNet.Contains(ip) {
			return true
		}
	}
	m.logger.Warn().Str("client", clientIP).Msg("Access denied (not in allow list)")
	return false
}

func (m *Middleware) checkRateLimit(clientIP string) bool {
	if m.rps <= 0 {
		return true
	}

	m.mu.Lock()
	limiter, exists := m.rateLimiters[clientIP]
	if !exists {
		if len(m.rateLimiters) >= maxTrackedClients {
			m.rateLimiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(m.rps, m.burst)
		m.rateLimiters[clientIP] = limiter
	}
	m.mu.Unlock()

	if !limiter.Allow() {
		m.logger.Warn().Str("client", clientIP).Msg("Rate limit exceeded")
		return false
	}
	return true
}

// getClientIP uses the connection's peer address. Forwarding headers are
// ignored since they would let a client pick its own identity.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseNetwork accepts "10.0.0.0/8" or a single address
func parseNetwork(entry string) *net.IPNet {
	if !strings.Contains(entry, "/") {
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
	}

	_, ipNet, err := net.ParseCIDR(entry)
	if err != nil {
		return nil
	}
	return ipNet
}
