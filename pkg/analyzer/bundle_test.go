package analyzer

import (
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/engine/uci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_CompletesOnMonotonicMultiPV(t *testing.T) {
	b := newBundle(2)
	assert.False(t, b.add(uci.InfoRecord{MultiPV: 1, Nodes: 100}))
	assert.True(t, b.add(uci.InfoRecord{MultiPV: 2, Nodes: 50}))
}

func TestBundle_NonMonotonicDiscardsPartial(t *testing.T) {
	b := newBundle(3)
	b.add(uci.InfoRecord{MultiPV: 1, Nodes: 100})
	assert.False(t, b.add(uci.InfoRecord{MultiPV: 3, Nodes: 10}))
	assert.Equal(t, 0, b.last)
}

func TestBundle_RestartsFromMultiPV1(t *testing.T) {
	b := newBundle(2)
	b.add(uci.InfoRecord{MultiPV: 1, Nodes: 100})
	b.add(uci.InfoRecord{MultiPV: 2, Nodes: 50})
	b.reset()
	assert.False(t, b.add(uci.InfoRecord{MultiPV: 1, Nodes: 200}))
	assert.True(t, b.add(uci.InfoRecord{MultiPV: 2, Nodes: 20}))
}

func TestAggregate_NodeWeightedScoresSumTo1000(t *testing.T) {
	b := newBundle(2)
	b.add(uci.InfoRecord{MultiPV: 1, Nodes: 600, HasWDL: true, WDL: [3]int{700, 200, 100}, HasScore: true, Score: uci.Score{CP: 50}})
	b.add(uci.InfoRecord{MultiPV: 2, Nodes: 400, HasWDL: true, WDL: [3]int{500, 300, 200}, HasScore: true, Score: uci.Score{CP: 30}})

	agg := aggregate(board.White, b)
	require.Equal(t, int64(1000), agg.Nodes)
	assert.Equal(t, 1000, agg.WhiteScore+agg.DrawScore+agg.BlackScore)
}

func TestAggregate_FlipsPerspectiveForBlackToMove(t *testing.T) {
	b := newBundle(1)
	b.add(uci.InfoRecord{MultiPV: 1, Nodes: 100, HasScore: true, Score: uci.Score{CP: 80}, HasWDL: true, WDL: [3]int{900, 50, 50}})

	white := aggregate(board.White, b)
	black := aggregate(board.Black, b)

	assert.Equal(t, 80, white.QScore)
	assert.Equal(t, -80, black.QScore)
	assert.Equal(t, 900, white.WhiteScore)
	assert.Equal(t, 900, black.BlackScore)
}

func TestAggregate_ClampsMateScore(t *testing.T) {
	b := newBundle(1)
	b.add(uci.InfoRecord{MultiPV: 1, Nodes: 1, HasScore: true, Score: uci.Score{IsMate: true, Mate: 3}})

	agg := aggregate(board.White, b)
	assert.Equal(t, mateScoreClamp, agg.QScore)
}

func TestAggregate_TimeDepthSeldepthFromMultiPV1(t *testing.T) {
	b := newBundle(2)
	b.add(uci.InfoRecord{MultiPV: 1, Nodes: 10, TimeMS: 1234, Depth: 20, SelDepth: 28})
	b.add(uci.InfoRecord{MultiPV: 2, Nodes: 5, TimeMS: 9999, Depth: 18, SelDepth: 24})

	agg := aggregate(board.White, b)
	assert.Equal(t, int64(1234), agg.TimeMS)
	assert.Equal(t, 20, agg.Depth)
	assert.Equal(t, 28, agg.SelDepth)
}

func TestMateScoreWhite_SignFlipsForBlackToMove(t *testing.T) {
	s := uci.Score{IsMate: true, Mate: 4}
	white := mateScoreWhite(board.White, s)
	black := mateScoreWhite(board.Black, s)
	require.NotNil(t, white)
	require.NotNil(t, black)
	assert.Equal(t, 4, *white)
	assert.Equal(t, -4, *black)
}
