// Package conversation keeps the per-agent message logs and reconciles
// concurrent sends into a stable ordering.
//
// # Anchoring
//
// A send appends the user's message synchronously, before the backend call
// goes out. That entry is the exchange's anchor. When the reply arrives,
// whenever that is, it is inserted immediately after the anchor's current
// position. Replies therefore never interleave: each question/answer pair
// stays adjacent regardless of the order in which the backend resolves
// overlapping requests.
//
// # Generations
//
// Every conversation carries a generation counter that Clear increments.
// An exchange remembers the generation it was opened under; a reply whose
// generation no longer matches is dropped silently. Clearing mid-flight is
// safe and cheap: no cancellation, no joining on outstanding requests.
//
// # Failure
//
// A failed send keeps the user's message in the log and returns a SendError
// with a fixed user-facing sentence. The caller decides how to surface it;
// the log itself records no error entries.
package conversation
