// Package snapshot describes how the records of one map
// partition move between members when the partition migrates.
package snapshot

import (
	"context"
	"io"
)

// Acceptor is the receiving side of a partition migration.
// ApplySnapshot replays every record in snap as a replicated
// put. Records already held are overwritten and nothing is
// removed.
type Acceptor interface {
	ApplySnapshot(ctx context.Context, snap io.Reader) error
}

// Source is the sending side of a partition migration. The
// returned stream holds the records present when Snapshot was
// called. Closing it releases them.
type Source interface {
	Snapshot(ctx context.Context) (io.ReadCloser, error)
}
