// Package store provides SQLite-backed durable storage for cora.
//
// The store is a scoped key-value table. Each visitor gets its own scope,
// keyed by visitor ID, and the niche and contingency registries share a
// community scope. Scope returns a kv.Store view so the ritual packages
// never see SQL.
//
// # Ordering
//
// Every write bumps a logical seq counter. Listings order by key
// (COLLATE BINARY) and visitors by creation time then ID, so repeated reads
// are stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
