// Package audit implements a hash-chained audit log of report lifecycle
// transitions. The chain starts at a well-known genesis entry whose Hash is
// GenesisHash; every later entry records the SHA-256 of its predecessor, so
// tampering is detectable via Verify. Appends are non-fatal from the
// lifecycle's perspective: a failed append is logged, never propagated.
//
// Two implementations of the Log interface are provided:
//   - MemoryLog: in-process, for testing and development.
//   - PostgresLog: durable, for production use.
package audit

import "context"

// Log is the append-only transition audit chain.
type Log interface {
	// Append adds an entry chained to the previous one. payload is
	// JSON-marshalled and its SHA-256 stored as DataHash.
	Append(ctx context.Context, reportID, event, actor string, payload any) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the number of entries including genesis.
	Len(ctx context.Context) (int, error)

	// Verify walks the chain and checks hash consistency.
	Verify(ctx context.Context) error

	// Root returns the hash of the most recent entry.
	Root(ctx context.Context) (string, error)
}
