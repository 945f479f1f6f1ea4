// Package movetime estimates how long a player is likely to spend on their next move
// from a Lichess-style time-control spec, and translates that into a contempt/strength
// adjustment for a weaker-feeling engine opponent.
package movetime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	minTotalMoves = 60
	minMovesLeft  = 20
)

// Section is one phase of a time control, e.g. "40 moves in 7200s, then the rest at
// 1800s+30s increment".
type Section struct {
	BaseTimeSec   int
	IncrementSec  int
	BeginMove     int
	EndMove       int
}

// Estimator estimates per-move thinking time from a parsed time-control spec.
type Estimator struct {
	sections []Section
}

// Parse parses a spec string like "40/7200:1800+30" into its sections: colon-separated
// phases, each "moves/base+increment" (moves/ is omitted for the last, open-ended phase).
func Parse(spec string) (*Estimator, error) {
	var sections []Section
	curMove := 1

	for _, part := range strings.Split(spec, ":") {
		moves, rest, hasMoves := strings.Cut(part, "/")
		if !hasMoves {
			rest = part
		}
		base, increment, hasIncrement := strings.Cut(rest, "+")

		baseSec, err := strconv.Atoi(base)
		if err != nil {
			return nil, fmt.Errorf("invalid time control %q: %w", spec, err)
		}
		incSec := 0
		if hasIncrement {
			incSec, err = strconv.Atoi(increment)
			if err != nil {
				return nil, fmt.Errorf("invalid time control %q: %w", spec, err)
			}
		}

		endMove := 5000
		if hasMoves {
			n, err := strconv.Atoi(moves)
			if err != nil {
				return nil, fmt.Errorf("invalid time control %q: %w", spec, err)
			}
			endMove = curMove + n
		}

		sections = append(sections, Section{BaseTimeSec: baseSec, IncrementSec: incSec, BeginMove: curMove, EndMove: endMove})
		curMove = endMove
	}

	return &Estimator{sections: sections}, nil
}

// Estimate returns the estimated seconds this player should spend on their next move,
// given the current move number and their remaining clock (nil if unknown, in which
// case the first section's base time stands in for it).
func (e *Estimator) Estimate(curMove int, clockSec *int) float64 {
	clock := float64(e.sections[0].BaseTimeSec)
	if clockSec != nil {
		clock = float64(*clockSec)
	}
	total := clock

	endMove := curMove + minMovesLeft
	if endMove < minTotalMoves {
		endMove = minTotalMoves
	}

	for _, s := range e.sections {
		if curMove >= s.EndMove {
			continue
		}
		if endMove <= s.BeginMove {
			break
		}
		if curMove < s.BeginMove {
			total += float64(s.BaseTimeSec)
		}
		lo, hi := curMove, endMove
		if lo < s.BeginMove {
			lo = s.BeginMove
		}
		if hi > s.EndMove {
			hi = s.EndMove
		}
		total += float64(s.IncrementSec) * float64(hi-lo)
	}

	return total / float64(endMove-curMove)
}

// EstimateEloAdjustment converts the estimated per-move time into a contempt/strength
// adjustment in Elo, on the logarithmic scale the reference estimator uses: doubling
// the available time per move is worth 50 Elo.
func (e *Estimator) EstimateEloAdjustment(curMove int, clockSec *int) float64 {
	return 50 * math.Log2(e.Estimate(curMove, clockSec)/10)
}
