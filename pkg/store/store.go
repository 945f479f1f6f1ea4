// Package store is the hand-written persistence layer: one repository method per
// entity operation named by the data model, backed by Postgres via pgxpool. There is
// no ORM or migration framework; the schema is created idempotently at startup.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool with the repository operations the rest of the
// system needs. Every mutable row has exactly one writer (the Analyzer attached to
// that game); Store itself enforces no such ownership, it only persists.
type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates every table this package needs, if absent. Safe to call on every
// startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tournament (
		id BIGSERIAL PRIMARY KEY,
		lichess_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		is_finished BOOLEAN NOT NULL DEFAULT false,
		is_hidden BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tournament_is_finished ON tournament (is_finished)`,
	`CREATE TABLE IF NOT EXISTS game (
		id BIGSERIAL PRIMARY KEY,
		tournament_id BIGINT NOT NULL REFERENCES tournament(id),
		lichess_round_id TEXT NOT NULL,
		lichess_id TEXT NOT NULL,
		game_name TEXT NOT NULL,
		round_name TEXT NOT NULL,
		player1_name TEXT NOT NULL,
		player1_fide_id INTEGER,
		player1_rating INTEGER,
		player1_fed TEXT,
		player2_name TEXT NOT NULL,
		player2_fide_id INTEGER,
		player2_rating INTEGER,
		player2_fed TEXT,
		status TEXT NOT NULL,
		is_finished BOOLEAN NOT NULL DEFAULT false,
		is_hidden BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_game_is_finished ON game (is_finished)`,
	`CREATE TABLE IF NOT EXISTS game_filter (
		game_id BIGINT NOT NULL REFERENCES game(id),
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (game_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS game_position (
		id BIGSERIAL PRIMARY KEY,
		game_id BIGINT NOT NULL REFERENCES game(id),
		ply_number INTEGER NOT NULL,
		fen TEXT NOT NULL,
		move_uci TEXT,
		move_san TEXT,
		white_clock INTEGER,
		black_clock INTEGER,
		nodes BIGINT NOT NULL DEFAULT 0,
		q_score INTEGER,
		white_score INTEGER,
		draw_score INTEGER,
		black_score INTEGER,
		moves_left INTEGER,
		time_ms BIGINT NOT NULL DEFAULT 0,
		depth INTEGER NOT NULL DEFAULT 0,
		seldepth INTEGER NOT NULL DEFAULT 0,
		UNIQUE (game_id, ply_number)
	)`,
	`CREATE TABLE IF NOT EXISTS game_position_evaluation (
		id BIGSERIAL PRIMARY KEY,
		position_id BIGINT NOT NULL REFERENCES game_position(id),
		nodes BIGINT NOT NULL,
		time_ms BIGINT NOT NULL,
		depth INTEGER NOT NULL,
		seldepth INTEGER NOT NULL,
		moves_left INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS game_position_evaluation_move (
		id BIGSERIAL PRIMARY KEY,
		evaluation_id BIGINT NOT NULL REFERENCES game_position_evaluation(id),
		nodes BIGINT NOT NULL,
		move_uci TEXT NOT NULL,
		move_san TEXT NOT NULL,
		q_score INTEGER,
		pv_san TEXT NOT NULL,
		pv_uci TEXT NOT NULL,
		mate_score INTEGER,
		white_score INTEGER,
		draw_score INTEGER,
		black_score INTEGER,
		moves_left INTEGER
	)`,
}

// txFunc runs fn inside a transaction, rolling back on any returned error.
func (s *Store) txFunc(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
