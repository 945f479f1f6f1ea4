package analyzer

import (
	"context"
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/board/pgn"
	"github.com/lczero/broadcast-analyzer/pkg/config"
	"github.com/lczero/broadcast-analyzer/pkg/engine/uci"
	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockFields_AttributesToMoverBySideOfPly(t *testing.T) {
	white, black := clockFields(pgn.Ply{Number: 1, ClockSeconds: 600, HasClock: true})
	require.NotNil(t, white)
	assert.Equal(t, 600, *white)
	assert.Nil(t, black)

	white, black = clockFields(pgn.Ply{Number: 2, ClockSeconds: 590, HasClock: true})
	require.NotNil(t, black)
	assert.Equal(t, 590, *black)
	assert.Nil(t, white)
}

func TestClockFields_NilWhenNoClockComment(t *testing.T) {
	white, black := clockFields(pgn.Ply{Number: 1, HasClock: false})
	assert.Nil(t, white)
	assert.Nil(t, black)
}

func TestGameEntry_CarriesIsBeingAnalyzedFlag(t *testing.T) {
	g := &store.Game{ID: 7, GameName: "Round 1.1", IsFinished: false}
	entry := gameEntry(g, true)
	assert.Equal(t, int64(7), entry.ID)
	assert.True(t, entry.IsBeingAnalyzed)
	assert.False(t, entry.IsFinished)
}

func TestToPositionData_CopiesAggregateFields(t *testing.T) {
	q := 42
	p := &store.GamePosition{PlyNumber: 3, FEN: "fen", QScore: &q}
	got := toPositionData(p)
	assert.Equal(t, 3, got.Ply)
	require.NotNil(t, got.QScore)
	assert.Equal(t, 42, *got.QScore)
}

func TestPvToSAN_ResolvesFirstMoveAndFullLine(t *testing.T) {
	moveSAN, sans, err := pvToSAN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", []string{"e2e4", "e7e5", "g1f3"})
	require.NoError(t, err)
	assert.Equal(t, "e4", moveSAN)
	assert.Equal(t, []string{"e4", "e5", "Nf3"}, sans)
}

func TestPvToSAN_TruncatesAtFirstUnresolvableMove(t *testing.T) {
	_, sans, err := pvToSAN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", []string{"e2e4", "e7e8q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, sans)
}

func TestPvToSAN_ErrorsOnEmptyResolvablePrefix(t *testing.T) {
	_, _, err := pvToSAN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", []string{"a1a1"})
	assert.Error(t, err)
}

func TestResolveOptions_AppliesRatingsContemptRegardlessOfConfiguredDynamicSource(t *testing.T) {
	game := &store.Game{Player1Rating: intPtr(2700), Player2Rating: intPtr(2650)}
	b := newStartBoard(t)

	cases := []struct {
		name    string
		dynamic OptionSource
	}{
		{"NoDynamicSourceConfigured", nil},
		{"MovetimeEloConfigured", PerPositionFunc(func(context.Context, *store.Game, *board.Board, *store.GamePosition) map[string]string {
			return map[string]string{"Contempt": "999", "Threads": "4"}
		})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := &Analyzer{cfg: config.AnalyzerConfig{UCIOptions: map[string]string{"Threads": "2"}}, dynamic: c.dynamic}
			got := a.resolveOptions(context.Background(), game, b, nil)
			assert.Equal(t, "50", got["Contempt"], "ratings-contempt must win over any configured dynamic source")
			assert.Equal(t, "2700", got["WDLCalibrationElo"])
		})
	}
}

func TestResolveOptions_FallsBackToStaticWhenRatingsUnknown(t *testing.T) {
	a := &Analyzer{cfg: config.AnalyzerConfig{UCIOptions: map[string]string{"Threads": "2"}}}
	got := a.resolveOptions(context.Background(), &store.Game{}, newStartBoard(t), nil)
	assert.Equal(t, "2", got["Threads"])
	assert.NotContains(t, got, "Contempt")
}

func TestBuildEvaluationMoves_PopulatesTopShowPVSlotsOnly(t *testing.T) {
	b := newBundle(3)
	b.add(uci.InfoRecord{MultiPV: 1, Nodes: 100, PV: []string{"e2e4"}, HasScore: true, Score: uci.Score{CP: 20}})
	b.add(uci.InfoRecord{MultiPV: 2, Nodes: 50, PV: []string{"d2d4"}, HasScore: true, Score: uci.Score{CP: 15}})
	b.add(uci.InfoRecord{MultiPV: 3, Nodes: 10, PV: []string{"c2c4"}, HasScore: true, Score: uci.Score{CP: 10}})

	moves := buildEvaluationMoves(99, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", board.White, b, 2)
	require.Len(t, moves, 2)
	assert.Equal(t, "e4", moves[0].MoveSAN)
	assert.Equal(t, "d4", moves[1].MoveSAN)
}
