package pgn_test

import (
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/board/pgn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `[Event "Test Broadcast"]
[Site "chess.com"]
[Date "2026.01.01"]
[Round "1"]
[White "Carlsen, Magnus"]
[Black "Nepomniachtchi, Ian"]
[Result "*"]

1. e4 { [%clk 1:30:00] } c5 { [%clk 1:29:50] } 2. Nf3 { [%clk 1:29:40] } *
`

func TestParse_Headers(t *testing.T) {
	g, err := pgn.Parse(sample)
	require.NoError(t, err)
	assert.Equal(t, "Test Broadcast", g.Headers["Event"])
	assert.Equal(t, "Carlsen, Magnus", g.Headers["White"])
	assert.Equal(t, "*", g.Headers["Result"])
}

func TestParse_MovesAndClocks(t *testing.T) {
	g, err := pgn.Parse(sample)
	require.NoError(t, err)

	require.Len(t, g.Moves, 3)
	assert.Equal(t, "e4", g.Moves[0].San)
	assert.True(t, g.Moves[0].HasClock)
	assert.Equal(t, 1*3600+30*60, g.Moves[0].ClockSeconds)

	assert.Equal(t, "c5", g.Moves[1].San)
	assert.Equal(t, "Nf3", g.Moves[2].San)
}

func TestParse_SkipsResultAndMoveNumbers(t *testing.T) {
	g, err := pgn.Parse(sample)
	require.NoError(t, err)
	for _, m := range g.Moves {
		assert.NotEqual(t, "*", m.San)
		assert.False(t, len(m.San) > 0 && m.San[0] >= '0' && m.San[0] <= '9' && m.San != "0-0" && m.San != "0-0-0")
	}
}

func TestMainline_ResolvesMovesAndFEN(t *testing.T) {
	g, err := pgn.Parse(sample)
	require.NoError(t, err)

	plies, leaf, err := g.Mainline()
	require.NoError(t, err)
	require.Len(t, plies, 3)

	assert.Equal(t, 1, plies[0].Number)
	assert.Equal(t, "e4", plies[0].San)
	assert.True(t, plies[0].HasClock)

	assert.Equal(t, "c5", plies[1].San)
	assert.Equal(t, "Nf3", plies[2].San)

	assert.NotEmpty(t, leaf.Position())
}

func TestParse_RejectsEmptyInput(t *testing.T) {
	_, err := pgn.Parse("   ")
	assert.Error(t, err)
}
