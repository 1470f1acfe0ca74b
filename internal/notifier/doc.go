// Package notifier delivers reminder texts through a chat transport.
//
// # Retry policy
//
// Transport errors are reduced to a tagged Outcome (Success, RetryIn,
// Permanent) in one place, Classify, and a single loop in Sender acts on it:
//
//   - rate limited: wait exactly the server-provided delay, retry
//   - network or server (5xx) failure: wait the fixed retry delay, retry
//   - recipient gone (blocked, deactivated, chat not found): abort
//   - anything else: abort and log
//
// Callers only ever observe Delivered or Aborted. Cancellation ends the loop
// without a terminal outcome.
package notifier
