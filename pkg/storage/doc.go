/*
Package storage persists sentinel state that must outlive the process.

Two things are stored, both in a single BoltDB file (<dataDir>/sentinel.db):

	remediations  key = container name, value = JSON list of restart times
	transitions   key = big-endian sequence, value = JSON types.Transition

Persisting the restart timestamps means a crash-looping sentinel cannot reset
its own hourly restart ceiling by restarting. The transition history backs the
"sentinel history" command.

Persistence is optional. When no data directory is configured the rate limiter
and failover machine keep everything in memory.

# Usage

	store, err := storage.NewBoltStore("/var/lib/sentinel")
	if err != nil {
		return err
	}
	defer store.Close()

	limiter := ratelimit.New(3, ratelimit.WithStore(store))

The store is safe for concurrent use; BoltDB serializes write transactions.
*/
package storage
