package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// NewPosition is the input to UpsertPosition: the fields known at PGN-ingest time,
// before any engine evaluation exists.
type NewPosition struct {
	GameID     int64
	PlyNumber  int
	FEN        string
	MoveUCI    *string
	MoveSAN    *string
	WhiteClock *int
	BlackClock *int
}

// UpsertPosition get-or-creates a GamePosition row for (game_id, ply_number). Returns
// the row and whether it was newly created, so callers can decide whether to emit a
// position-update frame (re-ingesting the same PGN must be a no-op, per the idempotent
// ingest law).
func (s *Store) UpsertPosition(ctx context.Context, np NewPosition) (*GamePosition, bool, error) {
	existing, err := s.GetPosition(ctx, np.GameID, np.PlyNumber)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	p := &GamePosition{
		GameID: np.GameID, PlyNumber: np.PlyNumber, FEN: np.FEN,
		MoveUCI: np.MoveUCI, MoveSAN: np.MoveSAN, WhiteClock: np.WhiteClock, BlackClock: np.BlackClock,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO game_position (game_id, ply_number, fen, move_uci, move_san, white_clock, black_clock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id, ply_number) DO NOTHING
		RETURNING id`,
		p.GameID, p.PlyNumber, p.FEN, p.MoveUCI, p.MoveSAN, p.WhiteClock, p.BlackClock,
	).Scan(&p.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Lost a race with a concurrent insert; re-read the row another writer created.
			existing, gerr := s.GetPosition(ctx, np.GameID, np.PlyNumber)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("upsert position %v/%v: %w", np.GameID, np.PlyNumber, err)
	}
	return p, true, nil
}

// GetPosition returns the position at (gameID, ply), or nil if it does not exist yet.
func (s *Store) GetPosition(ctx context.Context, gameID int64, ply int) (*GamePosition, error) {
	row := s.pool.QueryRow(ctx, positionSelectColumns+` FROM game_position WHERE game_id = $1 AND ply_number = $2`,
		gameID, ply)
	p, err := scanPosition(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position %v/%v: %w", gameID, ply, err)
	}
	return p, nil
}

// ListPositions returns every position of a game, ordered by ply. Used for the
// positions snapshot sent on subscription.
func (s *Store) ListPositions(ctx context.Context, gameID int64) ([]GamePosition, error) {
	rows, err := s.pool.Query(ctx, positionSelectColumns+` FROM game_position WHERE game_id = $1 ORDER BY ply_number`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list positions %v: %w", gameID, err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (GamePosition, error) {
		p, err := scanPosition(row)
		if p == nil {
			return GamePosition{}, err
		}
		return *p, err
	})
}

// PositionAggregates is the full-bundle aggregate computed by the Analyzer, mirrored
// onto the GamePosition row.
type PositionAggregates struct {
	Nodes      int64
	QScore     int
	WhiteScore int
	DrawScore  int
	BlackScore int
	MovesLeft  *int
	TimeMS     int64
	Depth      int
	SelDepth   int
}

// UpdatePositionAggregates overwrites a position's engine-derived columns with the
// latest bundle's aggregates.
func (s *Store) UpdatePositionAggregates(ctx context.Context, positionID int64, agg PositionAggregates) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE game_position SET
			nodes = $2, q_score = $3, white_score = $4, draw_score = $5, black_score = $6,
			moves_left = $7, time_ms = $8, depth = $9, seldepth = $10
		WHERE id = $1`,
		positionID, agg.Nodes, agg.QScore, agg.WhiteScore, agg.DrawScore, agg.BlackScore,
		agg.MovesLeft, agg.TimeMS, agg.Depth, agg.SelDepth,
	)
	if err != nil {
		return fmt.Errorf("update position %v aggregates: %w", positionID, err)
	}
	return nil
}

// InsertEvaluation appends one evaluation row for a position; evaluation rows are
// never updated or deleted.
func (s *Store) InsertEvaluation(ctx context.Context, e GamePositionEvaluation) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO game_position_evaluation (position_id, nodes, time_ms, depth, seldepth, moves_left)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.PositionID, e.Nodes, e.TimeMS, e.Depth, e.SelDepth, e.MovesLeft,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert evaluation for position %v: %w", e.PositionID, err)
	}
	return id, nil
}

// InsertEvaluationMoves appends the top show_pv PV rows of a bundle.
func (s *Store) InsertEvaluationMoves(ctx context.Context, moves []GamePositionEvaluationMove) error {
	for _, m := range moves {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO game_position_evaluation_move (
				evaluation_id, nodes, move_uci, move_san, q_score, pv_san, pv_uci,
				mate_score, white_score, draw_score, black_score, moves_left
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			m.EvaluationID, m.Nodes, m.MoveUCI, m.MoveSAN, m.QScore,
			strings.Join(m.PVSan, " "), strings.Join(m.PVUci, " "),
			m.MateScore, m.WhiteScore, m.DrawScore, m.BlackScore, m.MovesLeft,
		)
		if err != nil {
			return fmt.Errorf("insert evaluation move for evaluation %v: %w", m.EvaluationID, err)
		}
	}
	return nil
}

// GetLastEvaluation returns the most recently inserted evaluation for a position,
// along with its PV rows, or nil if none exist yet.
func (s *Store) GetLastEvaluation(ctx context.Context, positionID int64) (*GamePositionEvaluation, []GamePositionEvaluationMove, error) {
	var e GamePositionEvaluation
	err := s.pool.QueryRow(ctx, `
		SELECT id, position_id, nodes, time_ms, depth, seldepth, moves_left
		FROM game_position_evaluation WHERE position_id = $1 ORDER BY id DESC LIMIT 1`,
		positionID,
	).Scan(&e.ID, &e.PositionID, &e.Nodes, &e.TimeMS, &e.Depth, &e.SelDepth, &e.MovesLeft)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get last evaluation for position %v: %w", positionID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, evaluation_id, nodes, move_uci, move_san, q_score, pv_san, pv_uci,
			mate_score, white_score, draw_score, black_score, moves_left
		FROM game_position_evaluation_move WHERE evaluation_id = $1 ORDER BY id`, e.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get evaluation moves for evaluation %v: %w", e.ID, err)
	}
	defer rows.Close()

	moves, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GamePositionEvaluationMove, error) {
		var m GamePositionEvaluationMove
		var pvSan, pvUci string
		err := row.Scan(&m.ID, &m.EvaluationID, &m.Nodes, &m.MoveUCI, &m.MoveSAN, &m.QScore,
			&pvSan, &pvUci, &m.MateScore, &m.WhiteScore, &m.DrawScore, &m.BlackScore, &m.MovesLeft)
		if pvSan != "" {
			m.PVSan = strings.Split(pvSan, " ")
		}
		if pvUci != "" {
			m.PVUci = strings.Split(pvUci, " ")
		}
		return m, err
	})
	if err != nil {
		return nil, nil, err
	}
	return &e, moves, nil
}

const positionSelectColumns = `SELECT
	id, game_id, ply_number, fen, move_uci, move_san, white_clock, black_clock,
	nodes, q_score, white_score, draw_score, black_score, moves_left, time_ms, depth, seldepth`

func scanPosition(row pgx.Row) (*GamePosition, error) {
	var p GamePosition
	err := row.Scan(
		&p.ID, &p.GameID, &p.PlyNumber, &p.FEN, &p.MoveUCI, &p.MoveSAN, &p.WhiteClock, &p.BlackClock,
		&p.Nodes, &p.QScore, &p.WhiteScore, &p.DrawScore, &p.BlackScore, &p.MovesLeft, &p.TimeMS, &p.Depth, &p.SelDepth,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
