package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestHTTPChecker_StatusCodes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantHealthy bool
		wantFailure types.FailureKind
	}{
		{"ok", http.StatusOK, true, types.FailureNone},
		{"redirect counts as up", http.StatusFound, true, types.FailureNone},
		{"server error", http.StatusInternalServerError, false, types.FailureProtocolError},
		{"missing path", http.StatusNotFound, false, types.FailureNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			result := NewHTTPChecker(server.URL).Check(context.Background())

			assert.Equal(t, tt.wantHealthy, result.Healthy, result.Message)
			assert.Equal(t, tt.wantFailure, result.Failure)
			assert.Greater(t, result.Duration, time.Duration(0))
		})
	}
}

func TestHTTPChecker_CustomStatusRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithStatusRange(200, 200).Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestHTTPChecker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithTimeout(100 * time.Millisecond).Check(context.Background())

	assert.False(t, result.Healthy)
	assert.Equal(t, types.FailureTimeout, result.Failure)
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result := NewHTTPChecker(url).Check(context.Background())

	assert.False(t, result.Healthy)
	assert.Equal(t, types.FailureConnectionRefused, result.Failure)
}

func TestHTTPChecker_Type(t *testing.T) {
	assert.Equal(t, types.TargetKindHTTP, NewHTTPChecker("http://example.com").Type())
}
