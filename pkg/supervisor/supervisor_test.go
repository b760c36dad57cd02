package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestSupervisor_StopCancelsAllTasks(t *testing.T) {
	s := New(context.Background())

	var stopped atomic.Int32
	for _, name := range []string{"reconciler", "failover", "analyzer"} {
		require.True(t, s.Go(name, func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return nil
		}))
	}
	assert.Equal(t, []string{"analyzer", "failover", "reconciler"}, s.Names())

	s.Stop()
	require.NoError(t, s.Wait())
	assert.Equal(t, int32(3), stopped.Load())
	assert.True(t, s.Stopping())
	assert.False(t, s.Go("late", blockUntilDone))
}

func TestSupervisor_FailingTaskIsIsolated(t *testing.T) {
	s := New(context.Background())

	s.Go("broken", func(ctx context.Context) error {
		return errors.New("boom")
	})
	s.Go("panicky", func(ctx context.Context) error {
		panic("bad")
	})

	var alive atomic.Bool
	alive.Store(true)
	s.Go("healthy", func(ctx context.Context) error {
		<-ctx.Done()
		alive.Store(false)
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	assert.True(t, alive.Load())
	assert.NoError(t, s.Context().Err())

	s.Stop()
	require.NoError(t, s.Wait())
	assert.False(t, alive.Load())
}

func TestSupervisor_CriticalFailureStopsEverything(t *testing.T) {
	s := New(context.Background())

	s.Go("loop", blockUntilDone)
	s.GoCritical("api", func(ctx context.Context) error {
		return errors.New("address in use")
	})

	err := s.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.Error(t, s.Context().Err())
}

func TestSupervisor_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent)
	s.Go("loop", blockUntilDone)

	cancel()
	assert.NoError(t, s.Wait())
}
