package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = remote
	return req
}

func TestMiddleware_AllowList(t *testing.T) {
	handler := NewMiddleware([]string{"127.0.0.1", "192.168.8.0/24", "::1", "garbage"}, 0, 0).Wrap(okHandler())

	tests := []struct {
		name           string
		remote         string
		expectedStatus int
	}{
		{"single address", "127.0.0.1:40000", http.StatusOK},
		{"inside range", "192.168.8.77:40000", http.StatusOK},
		{"ipv6 loopback", "[::1]:40000", http.StatusOK},
		{"outside range", "10.1.2.3:40000", http.StatusForbidden},
		{"unparseable peer", "somewhere", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestFrom(tt.remote))
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestMiddleware_ForwardedHeaderIgnored(t *testing.T) {
	handler := NewMiddleware([]string{"127.0.0.1"}, 0, 0).Wrap(okHandler())

	req := requestFrom("10.1.2.3:40000")
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMiddleware_RateLimitPerClient(t *testing.T) {
	// One token per second with a burst of 2: the third immediate request fails
	handler := NewMiddleware(nil, 1, 2).Wrap(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.168.8.10:1234"))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.168.8.11:1234"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_Disabled(t *testing.T) {
	handler := NewMiddleware(nil, 0, 0).Wrap(okHandler())
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1:1"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
