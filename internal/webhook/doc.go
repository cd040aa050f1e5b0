// Package webhook is the authenticated HTTP ingress for hook events.
//
// Three routes are mounted under the configured base path (default /hooks):
//
//	POST /hooks/wake   {"text": "...", "mode": "now" | "next-heartbeat"}
//	POST /hooks/agent  {"message": "...", "name": "...", "wakeMode": "...", ...}
//	POST /hooks/ping   {"update_id": "...", "tenant_id": "...", "callback": {"url": "..."}}
//
// # Security Model
//
// - Every request carries the hook token as "Authorization: Bearer <token>" or
// "X-Hook-Token: <token>", compared in constant time (401 on mismatch)
// - When hooks.signing_secret is set, the body must also carry an HMAC-SHA256
// signature in hooks.signature_header (403 on mismatch, no details)
// - Body size limits are enforced before parsing (413)
// - Request logging excludes payloads
//
// # Request Flow
//
//  1. Token checked
//  2. Body read up to max_body_size
//  3. Signature verified, if configured
//  4. Payload decoded and normalised (400 on invalid input)
//  5. Event handed to the dispatcher
//  6. wake answers 200 {"ok":true,"mode":...}; agent and ping answer
//     202 {"ok":true,"runId":...} before the run finishes
//
// Errors are always {"ok":false,"error":"..."}.
package webhook
