package wsapi

import (
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestToPositionDataList_CopiesEveryField(t *testing.T) {
	q := 15
	positions := []store.GamePosition{
		{PlyNumber: 2, FEN: "fen2", Nodes: 100, QScore: &q},
	}

	got := toPositionDataList(positions)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Ply)
	assert.Equal(t, "fen2", got[0].FEN)
	assert.Equal(t, int64(100), got[0].Nodes)
	require.NotNil(t, got[0].QScore)
	assert.Equal(t, 15, *got[0].QScore)
}

func TestResolveTargetPly_DefaultsToLastPositionWhenPlyNil(t *testing.T) {
	positions := []store.GamePosition{{PlyNumber: 0}, {PlyNumber: 1}, {PlyNumber: 2}}

	got := resolveTargetPly(positions, nil)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.PlyNumber)
}

func TestResolveTargetPly_UsesRequestedPlyWhenPresent(t *testing.T) {
	positions := []store.GamePosition{{PlyNumber: 0}, {PlyNumber: 1}, {PlyNumber: 2}}

	got := resolveTargetPly(positions, intPtr(1))
	require.NotNil(t, got)
	assert.Equal(t, 1, got.PlyNumber)
}

func TestResolveTargetPly_NilWhenRequestedPlyNotPresent(t *testing.T) {
	positions := []store.GamePosition{{PlyNumber: 0}, {PlyNumber: 1}}
	assert.Nil(t, resolveTargetPly(positions, intPtr(5)))
}

func TestResolveTargetPly_NilWhenPositionsEmpty(t *testing.T) {
	assert.Nil(t, resolveTargetPly(nil, nil))
}

func TestBuildVariations_OnlyLastCarriesFullPayload(t *testing.T) {
	moves := []store.GamePositionEvaluationMove{
		{Nodes: 100, PVSan: []string{"e4"}, QScore: intPtr(10)},
		{Nodes: 40, PVSan: []string{"d4"}, QScore: intPtr(5)},
	}

	got := buildVariations(moves)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].PVSan)
	assert.Equal(t, int64(100), got[0].Nodes)
	assert.Equal(t, []string{"d4"}, got[1].PVSan)
	require.NotNil(t, got[1].QScore)
	assert.Equal(t, 5, *got[1].QScore)
}

func TestBuildVariations_EmptyWhenNoMoves(t *testing.T) {
	assert.Empty(t, buildVariations(nil))
}
