// Package sqlitestore provides a SQLite-backed graph.Store.
//
// Refs are content-addressed from node/link identity, so INSERT OR IGNORE
// gives the store its create-or-get contract: rewriting an identical node or
// link touches nothing and returns the existing ref.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshmindco/meshmind/pkg/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	ref       TEXT PRIMARY KEY,
	node_type TEXT NOT NULL,
	name      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
	ref       TEXT PRIMARY KEY,
	link_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS link_members (
	link_ref   TEXT    NOT NULL REFERENCES links(ref) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	member_ref TEXT    NOT NULL,
	PRIMARY KEY (link_ref, position)
);

CREATE INDEX IF NOT EXISTS idx_link_members_member ON link_members(member_ref);
`

// Store implements graph.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and ensures the graph
// schema exists. dbPath may be ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// AddNode creates or gets a typed, named node.
func (s *Store) AddNode(ctx context.Context, nodeType, name string) (graph.Ref, error) {
	ref := graph.NodeRef(nodeType, name)

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO nodes (ref, node_type, name) VALUES (?, ?, ?)",
		string(ref), nodeType, name,
	)
	if err != nil {
		return graph.RefNil, fmt.Errorf("%w: inserting node: %v", graph.ErrUnavailable, err)
	}
	return ref, nil
}

// AddLink creates or gets a typed link over the ordered refs.
func (s *Store) AddLink(ctx context.Context, linkType string, refs ...graph.Ref) (graph.Ref, error) {
	ref := graph.LinkRef(linkType, refs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return graph.RefNil, fmt.Errorf("%w: beginning transaction: %v", graph.ErrUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO links (ref, link_type) VALUES (?, ?)",
		string(ref), linkType,
	)
	if err != nil {
		return graph.RefNil, fmt.Errorf("%w: inserting link: %v", graph.ErrUnavailable, err)
	}

	// Zero rows affected means the link already existed; members are
	// already in place.
	if affected, _ := res.RowsAffected(); affected > 0 {
		for i, member := range refs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO link_members (link_ref, position, member_ref) VALUES (?, ?, ?)",
				string(ref), i, string(member),
			); err != nil {
				return graph.RefNil, fmt.Errorf("%w: inserting link member: %v", graph.ErrUnavailable, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return graph.RefNil, fmt.Errorf("%w: committing link: %v", graph.ErrUnavailable, err)
	}
	return ref, nil
}

// GetIncident returns every link that includes ref, in creation order.
func (s *Store) GetIncident(ctx context.Context, ref graph.Ref) ([]graph.Ref, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lm.link_ref FROM link_members lm
		 JOIN links l ON l.ref = lm.link_ref
		 WHERE lm.member_ref = ?
		 GROUP BY lm.link_ref
		 ORDER BY MIN(l.rowid)`,
		string(ref),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying incident links: %v", graph.ErrUnavailable, err)
	}
	defer rows.Close()

	var links []graph.Ref
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scanning incident link: %w", err)
		}
		links = append(links, graph.Ref(link))
	}
	return links, rows.Err()
}

// GetOutgoing returns the ordered tuple a link connects, or nil for nodes.
func (s *Store) GetOutgoing(ctx context.Context, link graph.Ref) ([]graph.Ref, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_ref FROM link_members WHERE link_ref = ? ORDER BY position",
		string(link),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying outgoing refs: %v", graph.ErrUnavailable, err)
	}
	defer rows.Close()

	var refs []graph.Ref
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scanning outgoing ref: %w", err)
		}
		refs = append(refs, graph.Ref(member))
	}
	return refs, rows.Err()
}

// FindNode looks up a node by type and name. Absence is not an error.
func (s *Store) FindNode(ctx context.Context, nodeType, name string) (graph.Ref, error) {
	var ref string
	err := s.db.QueryRowContext(ctx,
		"SELECT ref FROM nodes WHERE node_type = ? AND name = ?",
		nodeType, name,
	).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.RefNil, nil
	}
	if err != nil {
		return graph.RefNil, fmt.Errorf("%w: finding node: %v", graph.ErrUnavailable, err)
	}
	return graph.Ref(ref), nil
}

// NodeName returns the (type, name) of a node ref or the link type of a link.
func (s *Store) NodeName(ctx context.Context, ref graph.Ref) (string, string, error) {
	var nodeType, name string
	err := s.db.QueryRowContext(ctx,
		"SELECT node_type, name FROM nodes WHERE ref = ?",
		string(ref),
	).Scan(&nodeType, &name)
	if err == nil {
		return nodeType, name, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%w: reading node: %v", graph.ErrUnavailable, err)
	}

	var linkType string
	err = s.db.QueryRowContext(ctx,
		"SELECT link_type FROM links WHERE ref = ?",
		string(ref),
	).Scan(&linkType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", graph.NotFoundError{Ref: ref}
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: reading link: %v", graph.ErrUnavailable, err)
	}
	return linkType, "", nil
}

// Remove deletes a node or link.
func (s *Store) Remove(ctx context.Context, ref graph.Ref) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE ref = ?", string(ref))
	if err != nil {
		return fmt.Errorf("%w: deleting node: %v", graph.ErrUnavailable, err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}

	res, err = s.db.ExecContext(ctx, "DELETE FROM links WHERE ref = ?", string(ref))
	if err != nil {
		return fmt.Errorf("%w: deleting link: %v", graph.ErrUnavailable, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return graph.NotFoundError{Ref: ref}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ graph.Store = (*Store)(nil)
