// Package inmemory provides a map-backed storage.Driver for tests and for
// running the relay without a database.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/quill/pkg/merkle"
	"github.com/papercomputeco/quill/pkg/storage"
)

// Driver keeps nodes in insertion order with a child count per hash, so
// Leaves needs no scan over parent links.
type Driver struct {
	mu       sync.RWMutex
	nodes    map[string]*merkle.Node
	order    []string
	children map[string]int

	now func() time.Time
}

func NewDriver() *Driver {
	return &Driver{
		nodes:    make(map[string]*merkle.Node),
		children: make(map[string]int),
		now:      time.Now,
	}
}

// Put stores a copy of node stamped with the insertion time.
func (d *Driver) Put(_ context.Context, node *merkle.Node) (bool, error) {
	if node == nil {
		return false, errors.New("cannot store nil node")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.nodes[node.Hash]; ok {
		return false, nil
	}

	stored := *node
	stored.CreatedAt = d.now().UTC()
	d.nodes[stored.Hash] = &stored
	d.order = append(d.order, stored.Hash)
	if stored.ParentHash != nil {
		d.children[*stored.ParentHash]++
	}
	return true, nil
}

// Get returns a copy of the stored node.
func (d *Driver) Get(_ context.Context, hash string) (*merkle.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.getLocked(hash)
}

func (d *Driver) getLocked(hash string) (*merkle.Node, error) {
	node, ok := d.nodes[hash]
	if !ok {
		return nil, storage.NotFoundError{Hash: hash}
	}
	c := *node
	return &c, nil
}

func (d *Driver) Has(_ context.Context, hash string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.nodes[hash]
	return ok, nil
}

func (d *Driver) List(_ context.Context) ([]*merkle.Node, error) {
	return d.collect(func(*merkle.Node) bool { return true }), nil
}

func (d *Driver) Roots(_ context.Context) ([]*merkle.Node, error) {
	return d.collect(func(n *merkle.Node) bool { return n.ParentHash == nil }), nil
}

func (d *Driver) Leaves(_ context.Context) ([]*merkle.Node, error) {
	return d.collect(func(n *merkle.Node) bool { return d.children[n.Hash] == 0 }), nil
}

// collect returns copies of matching nodes in insertion order. keep runs
// under the read lock.
func (d *Driver) collect(keep func(*merkle.Node) bool) []*merkle.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*merkle.Node, 0, len(d.order))
	for _, hash := range d.order {
		if n := d.nodes[hash]; keep(n) {
			c := *n
			out = append(out, &c)
		}
	}
	return out
}

// Ancestry walks parent links under one read lock, node first.
func (d *Driver) Ancestry(_ context.Context, hash string) ([]*merkle.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var path []*merkle.Node
	for current := &hash; current != nil; {
		node, err := d.getLocked(*current)
		if err != nil {
			return nil, fmt.Errorf("getting node %s: %w", *current, err)
		}
		path = append(path, node)
		current = node.ParentHash
	}
	return path, nil
}

func (d *Driver) Depth(ctx context.Context, hash string) (int, error) {
	path, err := d.Ancestry(ctx, hash)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

// Count returns the number of stored nodes.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

func (d *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
