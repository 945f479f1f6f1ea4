package board_test

import (
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/board/fen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPosition_RejectsBadKingCount(t *testing.T) {
	_, err := board.NewPosition([]board.Placement{
		{Square: board.E1, Color: board.White, Piece: board.King},
		{Square: board.E8, Color: board.Black, Piece: board.King},
		{Square: board.D8, Color: board.Black, Piece: board.King},
	}, 0, board.ZeroSquare)
	assert.Error(t, err)
}

func TestNewPosition_RejectsDuplicatePlacement(t *testing.T) {
	_, err := board.NewPosition([]board.Placement{
		{Square: board.E1, Color: board.White, Piece: board.King},
		{Square: board.E8, Color: board.Black, Piece: board.King},
		{Square: board.E1, Color: board.White, Piece: board.Queen},
	}, 0, board.ZeroSquare)
	assert.Error(t, err)
}

func TestStartingPosition_Has20LegalMoves(t *testing.T) {
	pos, turn, _, _, err := fen.Decode(fen.Initial)
	require.NoError(t, err)
	assert.Equal(t, board.White, turn)
	assert.Len(t, pos.LegalMoves(turn), 20)
}

func TestStartingPosition_IsNotChecked(t *testing.T) {
	pos, turn, _, _, err := fen.Decode(fen.Initial)
	require.NoError(t, err)
	assert.False(t, pos.IsChecked(turn))
	assert.False(t, pos.IsChecked(turn.Opponent()))
}

func TestCastling_BlockedByPieceBetween(t *testing.T) {
	// Bishop still on f1 blocks white kingside castling.
	pos, err := board.NewPosition([]board.Placement{
		{Square: board.E1, Color: board.White, Piece: board.King},
		{Square: board.H1, Color: board.White, Piece: board.Rook},
		{Square: board.F1, Color: board.White, Piece: board.Bishop},
		{Square: board.E8, Color: board.Black, Piece: board.King},
	}, board.WhiteKingSideCastle, board.ZeroSquare)
	require.NoError(t, err)

	for _, m := range pos.LegalMoves(board.White) {
		assert.NotEqual(t, board.KingSideCastle, m.Type)
	}
}

func TestCastling_AllowedWhenClearAndSafe(t *testing.T) {
	pos, err := board.NewPosition([]board.Placement{
		{Square: board.E1, Color: board.White, Piece: board.King},
		{Square: board.H1, Color: board.White, Piece: board.Rook},
		{Square: board.A1, Color: board.White, Piece: board.Rook},
		{Square: board.E8, Color: board.Black, Piece: board.King},
	}, board.FullCastingRights, board.ZeroSquare)
	require.NoError(t, err)

	var kinds []board.MoveType
	for _, m := range pos.LegalMoves(board.White) {
		kinds = append(kinds, m.Type)
	}
	assert.Contains(t, kinds, board.KingSideCastle)
	assert.Contains(t, kinds, board.QueenSideCastle)
}

func TestCastling_BlockedWhileInCheck(t *testing.T) {
	pos, err := board.NewPosition([]board.Placement{
		{Square: board.E1, Color: board.White, Piece: board.King},
		{Square: board.H1, Color: board.White, Piece: board.Rook},
		{Square: board.E8, Color: board.Black, Piece: board.King},
		{Square: board.E5, Color: board.Black, Piece: board.Rook},
	}, board.WhiteKingSideCastle, board.ZeroSquare)
	require.NoError(t, err)

	for _, m := range pos.LegalMoves(board.White) {
		assert.NotEqual(t, board.KingSideCastle, m.Type)
	}
}

func TestEnPassant_CaptureAvailable(t *testing.T) {
	pos, err := board.NewPosition([]board.Placement{
		{Square: board.E1, Color: board.White, Piece: board.King},
		{Square: board.E8, Color: board.Black, Piece: board.King},
		{Square: board.D5, Color: board.White, Piece: board.Pawn},
		{Square: board.E5, Color: board.Black, Piece: board.Pawn},
	}, 0, board.E6)
	require.NoError(t, err)

	var found bool
	for _, m := range pos.LegalMoves(board.White) {
		if m.Type == board.EnPassant {
			found = true
			assert.Equal(t, board.D5, m.From)
			assert.Equal(t, board.E6, m.To)
		}
	}
	assert.True(t, found)
}

func TestPromotion_GeneratesAllFourPieces(t *testing.T) {
	pos, err := board.NewPosition([]board.Placement{
		{Square: board.E1, Color: board.White, Piece: board.King},
		{Square: board.E8, Color: board.Black, Piece: board.King},
		{Square: board.A7, Color: board.White, Piece: board.Pawn},
	}, 0, board.ZeroSquare)
	require.NoError(t, err)

	var promos []board.Piece
	for _, m := range pos.LegalMoves(board.White) {
		if m.Type == board.Promotion {
			promos = append(promos, m.Promotion)
		}
	}
	assert.ElementsMatch(t, []board.Piece{board.Queen, board.Rook, board.Bishop, board.Knight}, promos)
}

func TestMove_LeavesOriginalPositionUnchanged(t *testing.T) {
	pos, turn, _, _, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	m, err := board.ParseMove("e2e4")
	require.NoError(t, err)

	next, ok := pos.Move(m)
	require.True(t, ok)

	assert.True(t, pos.IsEmpty(board.E4))
	assert.False(t, next.IsEmpty(board.E4))
	_ = turn
}
