// Package storage defines where transcript nodes live.
//
// A relayed turn becomes a chain of merkle.Node values; a conversation that
// is resumed with different follow-ups branches the chain. Drivers store the
// nodes by hash and answer the few traversals the history API needs.
package storage

import (
	"context"

	"github.com/papercomputeco/quill/pkg/merkle"
)

// Driver persists merkle nodes. Implementations must be safe for concurrent
// use by the relay worker pool and the history API.
type Driver interface {
	// Put stores node and reports whether it was new. Storing a hash that
	// already exists is a successful no-op, which is how identical
	// conversation prefixes are shared.
	Put(ctx context.Context, node *merkle.Node) (bool, error)

	// Get returns the node with hash, or a NotFoundError.
	Get(ctx context.Context, hash string) (*merkle.Node, error)

	Has(ctx context.Context, hash string) (bool, error)

	// List returns every node, oldest first.
	List(ctx context.Context) ([]*merkle.Node, error)

	// Roots returns the first message of every conversation.
	Roots(ctx context.Context) ([]*merkle.Node, error)

	// Leaves returns the heads of every conversation branch.
	Leaves(ctx context.Context) ([]*merkle.Node, error)

	// Ancestry walks from hash up to its root, hash first.
	Ancestry(ctx context.Context, hash string) ([]*merkle.Node, error)

	// Depth is the number of parents above hash.
	Depth(ctx context.Context, hash string) (int, error)

	Close() error
}
