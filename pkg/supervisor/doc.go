// Package supervisor runs sentinel's independent control loops concurrently.
//
// The reconciler, failover machine, log watchers, notifier and API server each
// run as a Task. A task that returns an error or panics is logged and does not
// affect its siblings; tasks registered with GoCritical cancel the whole group
// instead. Stop cancels the shared context and Wait blocks until every task
// has returned.
package supervisor
