// Package store keeps an optional transcript of review sessions in SQLite.
//
// Each completed round is appended with its per-lens raw findings and its
// verdict categories, so `tribunal sessions show` can re-render a past
// session in any output format. The store is opt-in; sessions work without
// it.
package store
