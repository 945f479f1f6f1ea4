package pgn

import (
	"fmt"
	"strings"

	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/board/fen"
)

// Ply is one half-move of a game's mainline, resolved against the position it was
// played from: the long-algebraic move, its SAN rendering, the clock comment if any,
// and the FEN of the position reached after playing it.
type Ply struct {
	Number       int
	Move         board.Move
	San          string
	ClockSeconds int
	HasClock     bool
	FEN          string
}

// StartFEN returns the game's starting position: the one named in a "FEN"/"SetUp"
// header pair, or the standard initial position.
func (g *Game) StartFEN() string {
	if g.Headers["SetUp"] == "1" {
		if custom, ok := g.Headers["FEN"]; ok && custom != "" {
			return custom
		}
	}
	return fen.Initial
}

// Mainline walks g's movetext against the starting position (the one named in a
// "FEN"/"SetUp" header pair, or the standard initial position), resolving every SAN
// token to a concrete legal move. Returns the per-ply records plus the leaf board.
func (g *Game) Mainline() ([]Ply, *board.Board, error) {
	pos, turn, noprogress, fullmoves, err := fen.Decode(g.StartFEN())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid starting position: %w", err)
	}
	b := board.NewBoard(pos, turn, noprogress, fullmoves)

	var plies []Ply
	for i, mt := range g.Moves {
		m, san, err := resolveSAN(b, mt.San)
		if err != nil {
			return plies, b, fmt.Errorf("ply %d: %w", i+1, err)
		}
		if !b.PushMove(m) {
			return plies, b, fmt.Errorf("ply %d: move %v rejected by board", i+1, m)
		}

		plies = append(plies, Ply{
			Number:       i + 1,
			Move:         m,
			San:          san,
			ClockSeconds: mt.ClockSeconds,
			HasClock:     mt.HasClock,
			FEN:          fen.Encode(b.Position(), b.Turn(), b.NoProgress(), b.FullMoves()),
		})
	}

	return plies, b, nil
}

// resolveSAN finds the legal move in b whose rendering matches san, tolerating the
// check/mate suffix and move-quality annotations a feed may omit or vary.
func resolveSAN(b *board.Board, san string) (board.Move, string, error) {
	want := normalizeSAN(san)

	for _, m := range b.LegalMoves() {
		rendered, err := b.San(m)
		if err != nil {
			continue
		}
		if normalizeSAN(rendered) == want {
			return m, rendered, nil
		}
	}
	return board.Move{}, "", fmt.Errorf("no legal move matches %q", san)
}

func normalizeSAN(san string) string {
	return strings.TrimRight(san, "+#!?")
}
