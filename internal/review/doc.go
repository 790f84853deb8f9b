// Package review is the orchestration core: reviewer workers, the
// coordinator that fans a round out to them, and the judge that merges their
// findings into a verdict.
//
// Each Worker is bound to one lens (quality, or security and performance).
// The Coordinator runs every worker concurrently and waits for all of them
// before judging. If some lenses fail, the round continues with a
// degradation note per failed lens; if all fail, the round returns a
// RoundError and no verdict.
//
// Judging is deterministic. Findings on the same file with overlapping lines
// and similar descriptions (Levenshtein ratio, exact-after-normalization as
// the floor) are merged, keeping the more severe one. The rest are sorted
// by severity and path and split into must fix, should fix and refactoring
// opportunities, which decide REQUEST_CHANGES, NEEDS_DISCUSSION or APPROVE.
//
// LLMWorker is the model-backed worker. It reads changed files through the
// tool provider for context, redacts secrets, splits large diffs into
// per-file chunks reviewed in parallel, caches responses, and issues one
// repair request when a model returns invalid JSON.
package review
