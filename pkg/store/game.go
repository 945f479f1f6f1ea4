package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// NewGame is the input to MaterializeGame: a candidate's full row plus the header set
// to persist as GameFilters.
type NewGame struct {
	Game    Game
	Filters map[string]string // header key -> value, already restricted to the fixed set
}

// MaterializeGame creates a Game row and its GameFilter rows in a single transaction,
// matching the data model's "Tournament.is_finished flip and Game creation are done
// inside a DB transaction" rule.
func (s *Store) MaterializeGame(ctx context.Context, ng NewGame) (*Game, error) {
	var created Game
	err := s.txFunc(ctx, func(tx pgx.Tx) error {
		g := ng.Game
		err := tx.QueryRow(ctx, `
			INSERT INTO game (
				tournament_id, lichess_round_id, lichess_id, game_name, round_name,
				player1_name, player1_fide_id, player1_rating, player1_fed,
				player2_name, player2_fide_id, player2_rating, player2_fed,
				status, is_finished
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,false)
			RETURNING id`,
			g.TournamentID, g.LichessRoundID, g.LichessID, g.GameName, g.RoundName,
			g.Player1Name, g.Player1FideID, g.Player1Rating, g.Player1Fed,
			g.Player2Name, g.Player2FideID, g.Player2Rating, g.Player2Fed,
			g.Status,
		).Scan(&g.ID)
		if err != nil {
			return fmt.Errorf("insert game: %w", err)
		}

		for key, value := range ng.Filters {
			if _, err := tx.Exec(ctx,
				`INSERT INTO game_filter (game_id, key, value) VALUES ($1, $2, $3)`,
				g.ID, key, value); err != nil {
				return fmt.Errorf("insert game_filter %v: %w", key, err)
			}
		}

		created = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListUnfinishedGames returns every game not yet flagged finished, used by the
// Supervisor to find games already covered by a running Analyzer.
func (s *Store) ListUnfinishedGames(ctx context.Context) ([]Game, error) {
	rows, err := s.pool.Query(ctx, gameSelectColumns+` FROM game WHERE is_finished = false`)
	if err != nil {
		return nil, fmt.Errorf("list unfinished games: %w", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

// ListVisibleGames returns every game visible on the WebSocket snapshot: all
// non-hidden games, plus unfinished games even if their tournament is hidden.
func (s *Store) ListVisibleGames(ctx context.Context) ([]Game, error) {
	rows, err := s.pool.Query(ctx, gameSelectColumns+`
		FROM game g JOIN tournament t ON t.id = g.tournament_id
		WHERE g.is_hidden = false AND (t.is_hidden = false OR g.is_finished = false)
		ORDER BY g.id`)
	if err != nil {
		return nil, fmt.Errorf("list visible games: %w", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

// GetGameFilters returns the persisted header-match rows for a game.
func (s *Store) GetGameFilters(ctx context.Context, gameID int64) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM game_filter WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get game filters %v: %w", gameID, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetGameFinished flips is_finished on a game. Callers treat this transition as
// terminal: all future ingests for the game become no-ops.
func (s *Store) SetGameFinished(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE game SET is_finished = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set game %v finished: %w", id, err)
	}
	return nil
}

const gameSelectColumns = `SELECT
	id, tournament_id, lichess_round_id, lichess_id, game_name, round_name,
	player1_name, player1_fide_id, player1_rating, player1_fed,
	player2_name, player2_fide_id, player2_rating, player2_fed,
	status, is_finished, is_hidden`

func collectGames(rows pgx.Rows) ([]Game, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Game, error) {
		var g Game
		err := row.Scan(
			&g.ID, &g.TournamentID, &g.LichessRoundID, &g.LichessID, &g.GameName, &g.RoundName,
			&g.Player1Name, &g.Player1FideID, &g.Player1Rating, &g.Player1Fed,
			&g.Player2Name, &g.Player2FideID, &g.Player2Rating, &g.Player2Fed,
			&g.Status, &g.IsFinished, &g.IsHidden,
		)
		return g, err
	})
}
