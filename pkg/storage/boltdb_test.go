package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestBoltStore_RemediationsRoundTripAcrossReopen(t *testing.T) {
	store, dir := newTestStore(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stamps := []time.Time{base, base.Add(time.Minute)}
	require.NoError(t, store.SaveRemediations("pihole_primary", stamps))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.LoadRemediations()
	require.NoError(t, err)
	require.Len(t, records["pihole_primary"], 2)
	assert.True(t, records["pihole_primary"][1].Equal(base.Add(time.Minute)))
}

func TestBoltStore_SaveEmptyDeletesKey(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()

	require.NoError(t, store.SaveRemediations("keepalived", []time.Time{time.Now()}))
	require.NoError(t, store.SaveRemediations("keepalived", nil))

	records, err := store.LoadRemediations()
	require.NoError(t, err)
	assert.NotContains(t, records, "keepalived")
}

func TestBoltStore_ListTransitions(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendTransition(types.Transition{
			ID:   fmt.Sprintf("t%d", i),
			From: "primary",
			To:   "secondary",
		}))
	}

	all, err := store.ListTransitions(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "t0", all[0].ID)

	last, err := store.ListTransitions(2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, []string{"t3", "t4"}, []string{last[0].ID, last[1].ID})
}
