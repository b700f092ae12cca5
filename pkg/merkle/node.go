// Package merkle is an implementation of a Merkle DAG for relayed chat
// transcripts. Every message is a node whose hash covers its content and its
// parent's hash, so identical conversation prefixes share nodes.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Node represents a single content-addressed node in a Merkle DAG
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous node hash.
	// This will be nil for root nodes.
	ParentHash *string `json:"parent_hash"`

	// Bucket is the hashable content for the node.
	Bucket Bucket `json:"bucket"`

	// Project is the git repository or project name the relay serves.
	Project string `json:"project,omitempty"`

	// Partial marks an assistant reply whose stream ended without the
	// completion sentinel.
	Partial bool `json:"partial,omitempty"`

	// CreatedAt is set by the storage driver.
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NodeMeta contains optional metadata for a node that is stored
// but does not affect the content-addressable hash.
type NodeMeta struct {
	Project string
	Partial bool
}

// NewNode creates a new node with the computed hash for the provided bucket.
// The optional NodeMeta sets fields outside of the content-addressable Bucket.
func NewNode(bucket Bucket, parent *Node, metas ...NodeMeta) *Node {
	n := &Node{
		Bucket: bucket,
	}

	if parent != nil {
		n.ParentHash = &parent.Hash
	}

	if len(metas) > 0 {
		n.Project = metas[0].Project
		n.Partial = metas[0].Partial
	}

	n.Hash = computeHash(n.ParentHash, n.Bucket)
	return n
}

// Verify reports whether the node's hash matches its content.
func (n *Node) Verify() bool {
	return n.Hash == computeHash(n.ParentHash, n.Bucket)
}

func computeHash(parentHash *string, bucket Bucket) string {
	parent := ""
	if parentHash != nil {
		parent = *parentHash
	}

	// Struct fields marshal in declaration order, which keeps the hash input
	// stable across runs.
	data, err := json.Marshal(struct {
		Parent  string `json:"parent"`
		Content Bucket `json:"content"`
	}{
		Parent:  parent,
		Content: bucket,
	})
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
