package analyzer

import (
	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/engine/uci"
)

const mateScoreClamp = 20000

// bundle accumulates the contiguous multipv=1..n info records of one "full-width"
// analysis step. Any record whose multipv does not immediately follow the last one
// discards whatever was accumulated so far; accumulation restarts from that record if
// it is multipv 1, and otherwise from the next multipv 1 record.
type bundle struct {
	n       int
	records map[int]uci.InfoRecord
	last    int
}

func newBundle(n int) *bundle {
	return &bundle{n: n, records: map[int]uci.InfoRecord{}}
}

// add ingests one info record and reports whether the bundle is now complete.
func (b *bundle) add(rec uci.InfoRecord) bool {
	idx := rec.MultiPV
	if idx < 1 {
		idx = 1
	}

	if idx != b.last+1 {
		if idx != 1 {
			b.records = map[int]uci.InfoRecord{}
			b.last = 0
			return false
		}
		b.records = map[int]uci.InfoRecord{}
	}

	b.records[idx] = rec
	b.last = idx
	return idx >= b.n
}

// reset clears the bundle so the next record starts a fresh accumulation.
func (b *bundle) reset() {
	b.records = map[int]uci.InfoRecord{}
	b.last = 0
}

// aggregate computes the data model's per-bundle aggregates for a position occupied by
// the side to move turn.
func aggregate(turn board.Color, b *bundle) Aggregates {
	var nodes int64
	var qSum, wSum, bSum float64
	var movesLeftSum, movesLeftNodes int64

	for i := 1; i <= b.n; i++ {
		rec, ok := b.records[i]
		if !ok {
			continue
		}
		nodes += rec.Nodes
		qSum += float64(rec.Nodes) * float64(scoreCPWhite(turn, rec.Score))
		if rec.HasWDL {
			w, _, l := wdlWhite(turn, rec.WDL)
			wSum += float64(rec.Nodes) * float64(w)
			bSum += float64(rec.Nodes) * float64(l)
		}
		if rec.HasMovesLeft {
			movesLeftSum += rec.MovesLeft * rec.Nodes
			movesLeftNodes += rec.Nodes
		}
	}

	agg := Aggregates{Nodes: nodes}
	if nodes > 0 {
		agg.QScore = clamp(round(qSum/float64(nodes)), -mateScoreClamp, mateScoreClamp)
		agg.WhiteScore = round(wSum / float64(nodes))
		agg.BlackScore = round(bSum / float64(nodes))
		agg.DrawScore = 1000 - agg.WhiteScore - agg.BlackScore
	}
	if movesLeftNodes > 0 {
		ml := int(movesLeftSum / movesLeftNodes)
		agg.MovesLeft = &ml
	}

	if first, ok := b.records[1]; ok {
		agg.TimeMS = first.TimeMS
		agg.Depth = first.Depth
		agg.SelDepth = first.SelDepth
	}
	return agg
}

// Aggregates mirrors store.PositionAggregates plus nothing else; kept as a distinct
// type so bundle math has no store import dependency.
type Aggregates struct {
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

// scoreCPWhite converts an info record's score to signed centipawns from White's point
// of view, clamping mate scores to ±mateScoreClamp.
func scoreCPWhite(turn board.Color, s uci.Score) int {
	cp := s.CP
	if s.IsMate {
		if s.Mate >= 0 {
			cp = mateScoreClamp
		} else {
			cp = -mateScoreClamp
		}
	}
	if turn == board.Black {
		cp = -cp
	}
	return cp
}

// mateScoreWhite converts a mate score to a signed ply count from White's point of
// view, or nil if the record is not a forced mate.
func mateScoreWhite(turn board.Color, s uci.Score) *int {
	if !s.IsMate {
		return nil
	}
	m := s.Mate
	if turn == board.Black {
		m = -m
	}
	return &m
}

// wdlWhite reorients a side-to-move-relative WDL triple to (white, draw, black).
func wdlWhite(turn board.Color, wdl [3]int) (white, draw, black int) {
	if turn == board.White {
		return wdl[0], wdl[1], wdl[2]
	}
	return wdl[2], wdl[1], wdl[0]
}

func round(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return -int(-f + 0.5)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
