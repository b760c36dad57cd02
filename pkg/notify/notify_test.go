package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender_PostsMessage(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewWebhookSender(server.URL, time.Second).Send(context.Background(), "primary is down")
	require.NoError(t, err)
	assert.Equal(t, "primary is down", got.Message)
}

func TestWebhookSender_Failures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		err := NewWebhookSender(server.URL, time.Second).Send(context.Background(), "x")
		assert.ErrorContains(t, err, "502")
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		start := time.Now()
		err := NewWebhookSender(server.URL, 50*time.Millisecond).Send(context.Background(), "x")
		assert.Error(t, err)
		assert.Less(t, time.Since(start), time.Second)
	})
}

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeSender) Send(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSender) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func TestNotifier_DeliversBrokerEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sender := &fakeSender{}
	sub := broker.Subscribe(10)
	n := NewNotifier(sender, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, sub) }()

	broker.Publish(events.New(events.EventFailover, events.SeverityWarning, "failover", "DNS failover: primary -> secondary"))

	require.Eventually(t, func() bool { return len(sender.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "[WARNING] DNS failover: primary -> secondary", sender.Messages()[0])

	cancel()
	assert.NoError(t, <-done)
}

func TestNotifier_DropsFailedDelivery(t *testing.T) {
	sender := &fakeSender{err: errors.New("bridge down")}
	n := NewNotifier(sender, time.Second)

	before := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("failed"))
	n.Deliver(context.Background(), events.New(events.EventNoTargets, events.SeverityCritical, "failover", "No DNS targets available"))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("failed")))
	assert.Empty(t, sender.Messages())
}

func TestNotifier_StopsWhenSubscriptionClosed(t *testing.T) {
	sub := make(events.Subscriber)
	close(sub)
	assert.NoError(t, NewNotifier(&fakeSender{}, 0).Run(context.Background(), sub))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender().Send(context.Background(), "hello"))
}
