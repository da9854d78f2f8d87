// Package notifications publishes workflow events to an ntfy topic.
//
// The service degrades to a noop when no topic is configured, so callers can
// always hold a non-nil Service. Completion and error notifications can be
// toggled independently in configuration.
package notifications
