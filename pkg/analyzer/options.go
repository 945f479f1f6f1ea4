package analyzer

import (
	"context"
	"strconv"

	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/movetime"
	"github.com/lczero/broadcast-analyzer/pkg/store"
)

// OptionSource resolves the UCI options to use for one analysis. A Static source
// ignores its arguments; a PerPosition source computes options from the game, the
// board, and the stored position (which carries the clock comments the board itself
// does not). Resolve's output is merged on top of the config's static defaults at
// analysis start.
type OptionSource interface {
	Resolve(ctx context.Context, game *store.Game, b *board.Board, pos *store.GamePosition) map[string]string
}

// StaticOptions is an OptionSource that always returns the same map.
type StaticOptions map[string]string

func (s StaticOptions) Resolve(context.Context, *store.Game, *board.Board, *store.GamePosition) map[string]string {
	return map[string]string(s)
}

// PerPositionFunc adapts a plain function to OptionSource.
type PerPositionFunc func(ctx context.Context, game *store.Game, b *board.Board, pos *store.GamePosition) map[string]string

func (f PerPositionFunc) Resolve(ctx context.Context, game *store.Game, b *board.Board, pos *store.GamePosition) map[string]string {
	return f(ctx, game, b, pos)
}

// MergeOptions layers dynamic on top of static: static supplies the defaults, dynamic
// overrides any key it also sets.
func MergeOptions(static, dynamic map[string]string) map[string]string {
	merged := make(map[string]string, len(static)+len(dynamic))
	for k, v := range static {
		merged[k] = v
	}
	for k, v := range dynamic {
		merged[k] = v
	}
	return merged
}

// RatingsContemptOptions is the mandatory ratings-based engine-options rule: when both
// players have a known rating, bias the engine's evaluation toward white's perspective
// by their rating gap. Analyzer always merges this on top of the base/dynamic options,
// independent of whichever (if any) OptionSource is configured.
func RatingsContemptOptions(_ context.Context, game *store.Game, _ *board.Board, _ *store.GamePosition) map[string]string {
	if game.Player1Rating == nil || game.Player2Rating == nil {
		return nil
	}
	return map[string]string{
		"ClearTree":            "true",
		"WDLCalibrationElo":    strconv.Itoa(*game.Player1Rating),
		"Contempt":             strconv.Itoa(*game.Player1Rating - *game.Player2Rating),
		"ContemptMode":         "white_side_analysis",
		"WDLDrawRateReference": "0.64",
		"WDLEvalObjectivity":   "0.0",
	}
}

// MovetimeEloOptions builds a PerPositionFunc that derives a Contempt adjustment from
// how much thinking time the side to move has left, using tc to estimate seconds per
// move and movetime's Elo conversion.
func MovetimeEloOptions(tc *movetime.Estimator) PerPositionFunc {
	return func(_ context.Context, _ *store.Game, b *board.Board, pos *store.GamePosition) map[string]string {
		clock := pos.WhiteClock
		if b.Turn() == board.Black {
			clock = pos.BlackClock
		}
		adj := tc.EstimateEloAdjustment(b.FullMoves(), clock)
		return map[string]string{"Contempt": strconv.Itoa(int(adj))}
	}
}
