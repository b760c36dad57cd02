/*
Package events carries alerts from the control loops to their consumers.

Every loop (failover, reconciler, analyzer) raises alerts by publishing an
Event on a shared Broker through the narrow Publisher interface. The broker
fans each event out to its subscribers:

	┌──────────┐  ┌────────────┐  ┌──────────┐
	│ failover │  │ reconciler │  │ analyzer │
	└────┬─────┘  └─────┬──────┘  └────┬─────┘
	     └──────────────┼──────────────┘
	                    ▼ Publish (never blocks)
	              ┌──────────┐
	              │  Broker  │
	              └────┬─────┘
	         ┌─────────┴──────────┐
	         ▼                    ▼
	  notify.Notifier       events.Journal
	  (webhook delivery)    (/status endpoint)

# Delivery Semantics

Publish is non-blocking. When the broker's buffer (100 events) is full the
event is counted in Dropped and discarded, and a subscriber whose own buffer is
full misses the event. Losing an alert is acceptable; stalling a health check
loop is not.

# Event Types

	failover.transition       active resolver moved down the list
	failback.transition       active resolver moved back up
	failover.no_targets       no resolver passed its probe (critical)
	failover.restored         a resolver is reachable again
	container.restarted       reconciler restarted a container
	container.restart_refused hourly ceiling reached, manual intervention needed
	network.recreated         shared network recreated with desired addressing
	prediction.fired          log analysis predicts an imminent failure
	runtime.degraded          a runtime operation failed three times in a row

Events carry a UUID, a Severity, the emitting Source component and optional
Metadata such as the container or target name.
*/
package events
