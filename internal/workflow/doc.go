// Package workflow drives queued items through the audio replacement
// pipeline. A single manager goroutine polls the queue, claims the next
// ready item, and runs the stage registered for its status while a
// heartbeat loop keeps the claim fresh. Stage failures are classified and
// routed to failed or review, and terminal items have their staging
// workspaces removed.
package workflow
