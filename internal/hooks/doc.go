// Package hooks admits externally triggered hook events and drives them to
// completion off the calling path.
//
// Three entry points exist on Dispatcher:
//   - DispatchWake enqueues a system event for the primary session and, for
//     mode "now", requests an immediate heartbeat. It is fully synchronous.
//   - DispatchAgent builds a one-shot isolated agent-turn job, starts it in its
//     own goroutine, and returns a run id immediately.
//   - DispatchPing does the same for tenant ping requests and reports the
//     outcome to the caller-supplied callback URL.
//
// Completion fans out to independent channels: the system event queue, the
// heartbeat trigger, and the ping callback. Each channel logs its own failures
// and never prevents the others from firing.
//
// Error handling:
//   - Execution errors (the executor returns an error or panics) become
//     "(error)" system events and, for pings, an error callback.
//   - Callback delivery is single-attempt. Non-2xx responses and transport
//     errors are logged as warnings and dropped.
//   - Nothing raised inside a hook goroutine reaches the dispatch caller.
//
// Limitations:
//   - No retries, outbox, or exactly-once callback delivery.
//   - No cancellation or dispatcher-imposed timeout; the executor bounds its
//     own work and the callback client uses its configured timeout, if any.
//   - Policy classification is a keyword heuristic (see ClassifyPolicy).
package hooks
