package selector

import (
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/board/pgn"
	"github.com/lczero/broadcast-analyzer/pkg/catalog"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestPickBest_MinimizesWorstClock(t *testing.T) {
	candidates := []Candidate{
		{Board: catalog.Board{ID: "a", Players: []catalog.Player{{Clock: intPtr(600)}, {Clock: intPtr(500)}}}},
		{Board: catalog.Board{ID: "b", Players: []catalog.Player{{Clock: intPtr(100)}, {Clock: intPtr(200)}}}},
		{Board: catalog.Board{ID: "c", Players: []catalog.Player{{Clock: intPtr(800)}, {Clock: intPtr(50)}}}},
	}

	best := PickBest(candidates)
	assert.Equal(t, "b", best.Board.ID)
}

func TestPickBest_UnknownClockTreatedAsLarge(t *testing.T) {
	candidates := []Candidate{
		{Board: catalog.Board{ID: "known", Players: []catalog.Player{{Clock: intPtr(10)}, {Clock: intPtr(20)}}}},
		{Board: catalog.Board{ID: "unknown", Players: []catalog.Player{{}, {}}}},
	}

	best := PickBest(candidates)
	assert.Equal(t, "known", best.Board.ID)
}

func TestPickBest_TiesBreakByListOrder(t *testing.T) {
	candidates := []Candidate{
		{Board: catalog.Board{ID: "first", Players: []catalog.Player{{Clock: intPtr(100)}, {Clock: intPtr(100)}}}},
		{Board: catalog.Board{ID: "second", Players: []catalog.Player{{Clock: intPtr(100)}, {Clock: intPtr(100)}}}},
	}

	best := PickBest(candidates)
	assert.Equal(t, "first", best.Board.ID)
}

func TestMatchesCandidate_NullSafeComparison(t *testing.T) {
	c := Candidate{Board: catalog.Board{
		Players: []catalog.Player{
			{Name: "Carlsen, Magnus", Rating: intPtr(2830)},
			{Name: "Nepomniachtchi, Ian"},
		},
	}}

	g := &pgn.Game{Headers: map[string]string{
		"Result": "*",
		"White":  "Carlsen, Magnus",
		"Black":  "Nepomniachtchi, Ian",
		// WhiteElo absent from board data's Rating is not true here: board has rating, PGN doesn't.
	}}
	assert.True(t, matchesCandidate(g, c))

	mismatched := &pgn.Game{Headers: map[string]string{
		"Result": "*",
		"White":  "Someone Else",
		"Black":  "Nepomniachtchi, Ian",
	}}
	assert.False(t, matchesCandidate(mismatched, c))
}

func TestMatchesCandidate_RejectsFinishedGames(t *testing.T) {
	c := Candidate{Board: catalog.Board{Players: []catalog.Player{{Name: "A"}, {Name: "B"}}}}
	g := &pgn.Game{Headers: map[string]string{"Result": "1-0", "White": "A", "Black": "B"}}
	assert.False(t, matchesCandidate(g, c))
}

func TestSplitOnBlankLine_SplitsMultipleGames(t *testing.T) {
	archive := "[Event \"A\"]\n\n1. e4 *\n\n\n[Event \"B\"]\n\n1. d4 *\n"
	chunks := splitOnBlankLine(archive)
	assert.Len(t, chunks, 2)
}
