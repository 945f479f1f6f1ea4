package board

import (
	"fmt"
	"strings"
)

// San renders m, which must be legal in the board's current position, in Standard
// Algebraic Notation, including disambiguation and the "+"/"#" check/mate suffix.
func (b *Board) San(m Move) (string, error) {
	pos := b.current.pos
	turn := b.turn

	legal := false
	for _, l := range b.LegalMoves() {
		if l.Equals(m) {
			m, legal = l, true // carries the move type a parsed move lacks
			break
		}
	}
	if !legal {
		return "", fmt.Errorf("illegal move: %v", m)
	}

	color, piece, ok := pos.Square(m.From)
	if !ok || color != turn {
		return "", fmt.Errorf("no %v piece at %v", turn, m.From)
	}

	switch m.Type {
	case KingSideCastle:
		return withCheckSuffix(pos, turn, m, "O-O")
	case QueenSideCastle:
		return withCheckSuffix(pos, turn, m, "O-O-O")
	}

	isCapture := m.Type == Capture || m.Type == CapturePromotion || m.Type == EnPassant

	var sb strings.Builder
	if piece == Pawn {
		if isCapture {
			sb.WriteString(m.From.File().String())
			sb.WriteString("x")
		}
		sb.WriteString(m.To.String())
		if m.Promotion.IsValid() {
			sb.WriteString("=")
			sb.WriteString(strings.ToUpper(m.Promotion.String()))
		}
	} else {
		sb.WriteString(strings.ToUpper(piece.String()))
		sb.WriteString(disambiguate(pos, turn, piece, m))
		if isCapture {
			sb.WriteString("x")
		}
		sb.WriteString(m.To.String())
	}

	return withCheckSuffix(pos, turn, m, sb.String())
}

// disambiguate returns the file, rank, or full square qualifier needed to distinguish m
// from other legal moves of the same piece type to the same destination square.
func disambiguate(pos *Position, turn Color, piece Piece, m Move) string {
	var others []Square
	for _, o := range pos.LegalMoves(turn) {
		if o.To != m.To || o.From == m.From {
			continue
		}
		if _, p, ok := pos.Square(o.From); ok && p == piece {
			others = append(others, o.From)
		}
	}
	if len(others) == 0 {
		return ""
	}

	sameFile, sameRank := false, false
	for _, sq := range others {
		if sq.File() == m.From.File() {
			sameFile = true
		}
		if sq.Rank() == m.From.Rank() {
			sameRank = true
		}
	}

	switch {
	case !sameFile:
		return m.From.File().String()
	case !sameRank:
		return m.From.Rank().String()
	default:
		return m.From.String()
	}
}

func withCheckSuffix(pos *Position, turn Color, m Move, base string) (string, error) {
	next, ok := pos.Move(m)
	if !ok {
		return "", fmt.Errorf("illegal move: %v", m)
	}
	opp := turn.Opponent()
	if !next.IsChecked(opp) {
		return base, nil
	}
	if len(next.LegalMoves(opp)) == 0 {
		return base + "#", nil
	}
	return base + "+", nil
}
