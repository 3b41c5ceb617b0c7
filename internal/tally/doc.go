// Package tally implements the reaction counting engine.
//
// The Tracker owns two in-memory tables: the per-author tally table and the
// per-(author, message) dedup record. Both are guarded by a single mutex so
// that read-modify-write of a count and the whole-file save that follows it
// form one critical section. Reaction handlers delivered concurrently by the
// gateway serialize here rather than interleave.
//
// Counting rules, in check order:
//  1. A reactor never scores their own message.
//  2. A reactor on the opt-out list scores nothing for anyone.
//  3. A message that already produced a count for its author is never
//     counted again, no matter how many distinct users react to it.
//
// Rule 3 dedups per (author, message), NOT per (author, message, reactor).
// A second distinct reactor on an already-counted message is a no-op. That is
// the modeled behavior, preserved exactly.
//
// The dedup record lives only in process memory. After a restart a
// previously-counted message can produce one more count - a documented,
// bounded window, not a defect.
package tally
