// Package sqlstore implements storage.Driver on top of database/sql. The
// sqlite and postgres packages open a *sql.DB with their respective drivers
// and hand it to New with the matching Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/quill/pkg/merkle"
	"github.com/papercomputeco/quill/pkg/storage"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Schema creates the nodes table and its indexes if missing.
	Schema string

	// Numbered placeholders ($1, $2, ...) instead of "?".
	Numbered bool
}

// SQLite is the dialect for github.com/mattn/go-sqlite3.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: `
	CREATE TABLE IF NOT EXISTS nodes (
		hash TEXT PRIMARY KEY,
		parent_hash TEXT,
		bucket TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		partial INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_parent_hash ON nodes(parent_hash);
	`,
}

// Postgres is the dialect for github.com/jackc/pgx/v5/stdlib.
var Postgres = Dialect{
	Name: "postgres",
	Schema: `
	CREATE TABLE IF NOT EXISTS nodes (
		hash TEXT PRIMARY KEY,
		parent_hash TEXT,
		bucket JSONB NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		partial BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_parent_hash ON nodes(parent_hash);
	`,
	Numbered: true,
}

// rebind rewrites "?" placeholders for dialects that use numbered ones.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const nodeColumns = `n.hash, n.parent_hash, n.bucket, n.project, n.partial, n.created_at`

// Store implements storage.Driver over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New migrates the schema and returns a Store. The Store owns db and closes
// it on Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}

	if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
		return nil, fmt.Errorf("failed to migrate %s schema: %w", dialect.Name, err)
	}

	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Put stores a node. Returns true if the node was newly inserted.
func (s *Store) Put(ctx context.Context, node *merkle.Node) (bool, error) {
	if node == nil {
		return false, errors.New("cannot store nil node")
	}

	bucketJSON, err := json.Marshal(node.Bucket)
	if err != nil {
		return false, fmt.Errorf("failed to marshal bucket: %w", err)
	}

	// ON CONFLICT DO NOTHING gives idempotent inserts on both dialects
	// (deduplication via content-addressing).
	query := s.dialect.rebind(`
		INSERT INTO nodes (hash, parent_hash, bucket, project, partial, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (hash) DO NOTHING`)

	res, err := s.db.ExecContext(ctx, query,
		node.Hash,
		node.ParentHash,
		string(bucketJSON),
		node.Project,
		node.Partial,
		s.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert node: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// Get retrieves a node by its hash.
func (s *Store) Get(ctx context.Context, hash string) (*merkle.Node, error) {
	query := s.dialect.rebind(`SELECT ` + nodeColumns + ` FROM nodes n WHERE n.hash = ?`)

	node, err := scanNode(s.db.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Hash: hash}
	}
	if err != nil {
		return nil, err
	}

	return node, nil
}

// Has checks if a node exists by its hash.
func (s *Store) Has(ctx context.Context, hash string) (bool, error) {
	query := s.dialect.rebind(`SELECT 1 FROM nodes WHERE hash = ? LIMIT 1`)

	var exists int
	err := s.db.QueryRowContext(ctx, query, hash).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// List returns all nodes ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*merkle.Node, error) {
	return s.query(ctx, `SELECT `+nodeColumns+` FROM nodes n ORDER BY n.created_at, n.hash`)
}

// Roots returns all root nodes (nodes with no parent).
func (s *Store) Roots(ctx context.Context) ([]*merkle.Node, error) {
	return s.query(ctx, `SELECT `+nodeColumns+` FROM nodes n WHERE n.parent_hash IS NULL ORDER BY n.created_at, n.hash`)
}

// Leaves returns all leaf nodes (nodes with no children).
func (s *Store) Leaves(ctx context.Context) ([]*merkle.Node, error) {
	// Find nodes whose hash is not referenced as a parent by any other node
	return s.query(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes n
		LEFT JOIN nodes c ON c.parent_hash = n.hash
		WHERE c.hash IS NULL
		ORDER BY n.created_at, n.hash`)
}

// Ancestry returns the path from a node back to its root (node first, root last).
func (s *Store) Ancestry(ctx context.Context, hash string) ([]*merkle.Node, error) {
	var path []*merkle.Node
	current := hash

	for {
		node, err := s.Get(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("getting node %s: %w", current, err)
		}
		path = append(path, node)

		if node.ParentHash == nil {
			break
		}
		current = *node.ParentHash
	}

	return path, nil
}

// Depth returns the depth of a node (0 for roots).
func (s *Store) Depth(ctx context.Context, hash string) (int, error) {
	path, err := s.Ancestry(ctx, hash)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*merkle.Node, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*merkle.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return nodes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*merkle.Node, error) {
	var (
		node       merkle.Node
		parentHash sql.NullString
		bucketJSON []byte
	)

	err := row.Scan(&node.Hash, &parentHash, &bucketJSON, &node.Project, &node.Partial, &node.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	if parentHash.Valid {
		node.ParentHash = &parentHash.String
	}

	if err := json.Unmarshal(bucketJSON, &node.Bucket); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bucket: %w", err)
	}

	node.CreatedAt = node.CreatedAt.UTC()
	return &node, nil
}

var _ storage.Driver = (*Store)(nil)
