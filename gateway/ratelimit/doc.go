// Package ratelimit enforces request-count-per-time-window rules per caller
// identity using a sliding-window ledger.
//
// The ledger lives behind the Store interface so the in-memory map can be
// swapped for a shared Redis backend without touching rule logic. The
// in-memory store is advisory, per-process state: it makes no correctness
// guarantee across multiple concurrent process instances. Deployments that
// need a cross-node limit should configure the Redis store.
package ratelimit
