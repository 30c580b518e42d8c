// Package pgstore provides a PostgreSQL-backed graph.Store using the pgx
// driver. Semantics mirror sqlitestore: content-addressed refs plus
// ON CONFLICT DO NOTHING give create-or-get writes.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

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
	link_type TEXT NOT NULL,
	seq       BIGSERIAL
);

CREATE TABLE IF NOT EXISTS link_members (
	link_ref   TEXT   NOT NULL REFERENCES links(ref) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	member_ref TEXT   NOT NULL,
	PRIMARY KEY (link_ref, position)
);

CREATE INDEX IF NOT EXISTS idx_link_members_member ON link_members(member_ref);
`

// Store implements graph.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects to PostgreSQL using a pgx connection string (URI or keyword
// form), verifies reachability, and ensures the graph schema exists.
func New(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", graph.ErrUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// AddNode creates or gets a typed, named node.
func (s *Store) AddNode(ctx context.Context, nodeType, name string) (graph.Ref, error) {
	ref := graph.NodeRef(nodeType, name)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO nodes (ref, node_type, name) VALUES ($1, $2, $3) ON CONFLICT (ref) DO NOTHING",
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
		"INSERT INTO links (ref, link_type) VALUES ($1, $2) ON CONFLICT (ref) DO NOTHING",
		string(ref), linkType,
	)
	if err != nil {
		return graph.RefNil, fmt.Errorf("%w: inserting link: %v", graph.ErrUnavailable, err)
	}

	if affected, _ := res.RowsAffected(); affected > 0 {
		for i, member := range refs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO link_members (link_ref, position, member_ref) VALUES ($1, $2, $3)",
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
		 WHERE lm.member_ref = $1
		 GROUP BY lm.link_ref
		 ORDER BY MIN(l.seq)`,
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
		"SELECT member_ref FROM link_members WHERE link_ref = $1 ORDER BY position",
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
		"SELECT ref FROM nodes WHERE node_type = $1 AND name = $2",
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
		"SELECT node_type, name FROM nodes WHERE ref = $1",
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
		"SELECT link_type FROM links WHERE ref = $1",
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
	res, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE ref = $1", string(ref))
	if err != nil {
		return fmt.Errorf("%w: deleting node: %v", graph.ErrUnavailable, err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}

	res, err = s.db.ExecContext(ctx, "DELETE FROM links WHERE ref = $1", string(ref))
	if err != nil {
		return fmt.Errorf("%w: deleting link: %v", graph.ErrUnavailable, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return graph.NotFoundError{Ref: ref}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ graph.Store = (*Store)(nil)
