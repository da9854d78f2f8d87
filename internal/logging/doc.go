// Package logging provides slog construction and shared structured-field
// helpers for revoice. Console and JSON handlers are available; context-aware
// helpers thread queue item, stage, and request identifiers into every record.
package logging
