package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateTournament inserts a new tournament row, created out-of-band by the admin CLI.
func (s *Store) CreateTournament(ctx context.Context, lichessID, name string) (*Tournament, error) {
	t := &Tournament{LichessID: lichessID, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tournament (lichess_id, name, is_finished) VALUES ($1, $2, false) RETURNING id`,
		lichessID, name,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("create tournament: %w", err)
	}
	return t, nil
}

// ListUnfinishedTournaments returns every tournament not yet flagged finished.
func (s *Store) ListUnfinishedTournaments(ctx context.Context) ([]Tournament, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lichess_id, name, is_finished, is_hidden FROM tournament WHERE is_finished = false`)
	if err != nil {
		return nil, fmt.Errorf("list unfinished tournaments: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tournament, error) {
		var t Tournament
		err := row.Scan(&t.ID, &t.LichessID, &t.Name, &t.IsFinished, &t.IsHidden)
		return t, err
	})
}

// ListAllTournaments is used by the admin CLI to list everything, finished or not.
func (s *Store) ListAllTournaments(ctx context.Context) ([]Tournament, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lichess_id, name, is_finished, is_hidden FROM tournament ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tournament, error) {
		var t Tournament
		err := row.Scan(&t.ID, &t.LichessID, &t.Name, &t.IsFinished, &t.IsHidden)
		return t, err
	})
}

// SetTournamentFinished sets a tournament's is_finished flag to true. Nothing in this
// package clears the flag, so once set it stays set.
func (s *Store) SetTournamentFinished(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE tournament SET is_finished = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set tournament %v finished: %w", id, err)
	}
	return nil
}
