package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the dialogue content tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS dialogue_graphs (
    character   TEXT PRIMARY KEY,
    entry       TEXT NOT NULL,
    nodes       JSONB NOT NULL DEFAULT '[]',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS dialogue_phrase_pairs (
    mother_lang TEXT NOT NULL,
    target_lang TEXT NOT NULL,
    pairs       JSONB NOT NULL DEFAULT '[]',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (mother_lang, target_lang)
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Nodes and phrase pairs
// are stored as JSONB documents, one row per character or language pair.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on db. The caller runs
// [PostgresStore.Migrate] before first use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("dialogue: migrate: %w", err)
	}
	return nil
}

// Graph implements [Store]. The loaded graph is validated, so corrupt rows
// surface as errors instead of reaching the engine.
func (s *PostgresStore) Graph(ctx context.Context, kind CharacterKind) (*Graph, error) {
	const query = `SELECT entry, nodes FROM dialogue_graphs WHERE character = $1`

	var (
		entry     string
		nodesJSON []byte
	)
	err := s.db.QueryRow(ctx, query, kind.String()).Scan(&entry, &nodesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dialogue: graph for %s: %w", kind, ErrNotFound)
		}
		return nil, fmt.Errorf("dialogue: get graph %s: %w", kind, err)
	}

	var nodes []Node
	if err := json.Unmarshal(nodesJSON, &nodes); err != nil {
		return nil, fmt.Errorf("dialogue: unmarshal nodes of %s: %w", kind, err)
	}
	g := NewGraph(kind, entry, nodes)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// SaveGraph implements [Store].
func (s *PostgresStore) SaveGraph(ctx context.Context, g *Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	nodesJSON, err := json.Marshal(g.SortedNodes())
	if err != nil {
		return fmt.Errorf("dialogue: marshal nodes: %w", err)
	}

	const query = `
		INSERT INTO dialogue_graphs (character, entry, nodes)
		VALUES ($1, $2, $3)
		ON CONFLICT (character) DO UPDATE
		SET entry = EXCLUDED.entry, nodes = EXCLUDED.nodes, updated_at = now()`

	if _, err := s.db.Exec(ctx, query, g.Character.String(), g.Entry, nodesJSON); err != nil {
		return fmt.Errorf("dialogue: save graph %s: %w", g.Character, err)
	}
	return nil
}

// PhrasePairs implements [Store].
func (s *PostgresStore) PhrasePairs(ctx context.Context, mother, target string) ([]PhrasePair, error) {
	const query = `SELECT pairs FROM dialogue_phrase_pairs WHERE mother_lang = $1 AND target_lang = $2`

	var pairsJSON []byte
	if err := s.db.QueryRow(ctx, query, mother, target).Scan(&pairsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dialogue: phrase pairs %s->%s: %w", mother, target, ErrNotFound)
		}
		return nil, fmt.Errorf("dialogue: get phrase pairs %s->%s: %w", mother, target, err)
	}
	var pairs []PhrasePair
	if err := json.Unmarshal(pairsJSON, &pairs); err != nil {
		return nil, fmt.Errorf("dialogue: unmarshal phrase pairs: %w", err)
	}
	return pairs, nil
}

// SavePhrasePairs implements [Store].
func (s *PostgresStore) SavePhrasePairs(ctx context.Context, mother, target string, pairs []PhrasePair) error {
	if pairs == nil {
		pairs = []PhrasePair{}
	}
	pairsJSON, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("dialogue: marshal phrase pairs: %w", err)
	}

	const query = `
		INSERT INTO dialogue_phrase_pairs (mother_lang, target_lang, pairs)
		VALUES ($1, $2, $3)
		ON CONFLICT (mother_lang, target_lang) DO UPDATE
		SET pairs = EXCLUDED.pairs, updated_at = now()`

	if _, err := s.db.Exec(ctx, query, mother, target, pairsJSON); err != nil {
		return fmt.Errorf("dialogue: save phrase pairs %s->%s: %w", mother, target, err)
	}
	return nil
}

// Ping checks connectivity; used by readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("dialogue: ping: %w", err)
	}
	return nil
}
