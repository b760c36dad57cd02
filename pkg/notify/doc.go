// Package notify delivers alert events to humans.
//
// A Notifier subscribes to the event broker and hands each event, rendered as
// "[SEVERITY] message", to a Sender. WebhookSender posts {"message": ...} to a
// chat bridge; LogSender logs the alert when no bridge is configured. Each
// delivery is bounded by a timeout and failures are counted in
// sentinel_notifications_total{status="failed"} and dropped.
package notify
