// Package selector implements the two operations that keep engine workers busy: finding
// every live candidate game across unfinished tournaments, and materializing a chosen
// candidate into a persisted Game plus its header-filter rows.
package selector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lczero/broadcast-analyzer/pkg/board/pgn"
	"github.com/lczero/broadcast-analyzer/pkg/catalog"
	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/seekerror/logw"
)

// ErrAmbiguousGame is returned by Materialize when zero or more than one PGN in the
// round's archive matches the candidate's header fields.
type ErrAmbiguousGame struct {
	BoardID string
	Matched int
}

func (e *ErrAmbiguousGame) Error() string {
	return fmt.Sprintf("ambiguous game %v: %v PGNs matched", e.BoardID, e.Matched)
}

// unknownClockSeconds stands in for a player with no reported clock, so such a player
// never wins the "closest to time trouble" comparison.
const unknownClockSeconds = 999999

// Candidate is one ongoing board gathered from an unfinished tournament's ongoing
// rounds.
type Candidate struct {
	Board        catalog.Board
	Round        catalog.Round
	Tour         catalog.Tour
	TournamentID int64
}

// GetCandidates loads every unfinished tournament, flips any now-fully-finished
// tournament's flag, and gathers every "*"-status board from their ongoing rounds.
func GetCandidates(ctx context.Context, cat *catalog.Client, st *store.Store) ([]Candidate, error) {
	tournaments, err := st.ListUnfinishedTournaments(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, t := range tournaments {
		remote, err := cat.GetTournament(ctx, t.LichessID)
		if err != nil {
			logw.Warningf(ctx, "GetTournament %v failed: %v", t.LichessID, err)
			continue
		}

		if allRoundsFinished(remote.Rounds) {
			logw.Infof(ctx, "Tournament %v [%v] is now finished.", t.ID, t.Name)
			if err := st.SetTournamentFinished(ctx, t.ID); err != nil {
				logw.Warningf(ctx, "SetTournamentFinished %v failed: %v", t.ID, err)
			}
			continue
		}

		for _, round := range remote.Rounds {
			if !round.Ongoing {
				continue
			}
			rb, err := cat.GetRoundBoards(ctx, round.ID)
			if err != nil {
				logw.Warningf(ctx, "GetRoundBoards %v failed: %v", round.ID, err)
				continue
			}
			for _, b := range rb.Games {
				if b.Status != "*" {
					continue
				}
				candidates = append(candidates, Candidate{
					Board: b, Round: round, Tour: remote.Tour, TournamentID: t.ID,
				})
			}
		}
	}
	return candidates, nil
}

func allRoundsFinished(rounds []catalog.Round) bool {
	for _, r := range rounds {
		if !r.Finished {
			return false
		}
	}
	return true
}

// PickBest minimizes the worst (largest) player clock across candidates, preferring the
// game closest to time trouble. Ties break on list order, so the result is stable for a
// fixed candidate slice.
func PickBest(candidates []Candidate) Candidate {
	best := candidates[0]
	bestClock := worstClock(best)
	for _, c := range candidates[1:] {
		if clock := worstClock(c); clock < bestClock {
			best, bestClock = c, clock
		}
	}
	return best
}

func worstClock(c Candidate) int {
	worst := 0
	for _, p := range c.Board.Players {
		clock := unknownClockSeconds
		if p.Clock != nil {
			clock = *p.Clock
		}
		if clock > worst {
			worst = clock
		}
	}
	return worst
}

// filterHeaders is the fixed set of PGN headers copied into GameFilter rows, restricted
// to those actually present in the matched PGN.
var filterHeaders = []string{
	"Event", "Date", "Round", "White", "Black",
	"WhiteElo", "BlackElo", "WhiteFideId", "BlackFideId", "WhiteFed", "BlackFed", "TimeControl",
}

// Materialize fetches the round's PGN archive, finds the one game matching the
// candidate's players/ratings/fide ids, and creates the Game + GameFilter rows.
func Materialize(ctx context.Context, cat *catalog.Client, st *store.Store, c Candidate) (*store.Game, error) {
	archive, err := cat.FetchRoundPGNs(ctx, c.Round.ID)
	if err != nil {
		return nil, err
	}

	games := splitConcatenatedPGN(archive)

	var matched *pgn.Game
	matchCount := 0
	for _, g := range games {
		if matchesCandidate(g, c) {
			matched = g
			matchCount++
		}
	}
	if matchCount != 1 {
		return nil, &ErrAmbiguousGame{BoardID: c.Board.ID, Matched: matchCount}
	}

	filters := map[string]string{}
	for _, key := range filterHeaders {
		if v, ok := matched.Headers[key]; ok {
			filters[key] = v
		}
	}

	p1, p2 := c.Board.Players[0], c.Board.Players[1]
	ng := store.NewGame{
		Game: store.Game{
			TournamentID:   c.TournamentID,
			LichessRoundID: c.Round.ID,
			LichessID:      c.Board.ID,
			GameName:       c.Board.Name,
			RoundName:      c.Round.Name,
			Player1Name:    p1.Name,
			Player1FideID:  p1.FideID,
			Player1Rating:  p1.Rating,
			Player1Fed:     p1.Fed,
			Player2Name:    p2.Name,
			Player2FideID:  p2.FideID,
			Player2Rating:  p2.Rating,
			Player2Fed:     p2.Fed,
			Status:         c.Board.Status,
		},
		Filters: filters,
	}
	return st.MaterializeGame(ctx, ng)
}

// matchesCandidate applies the null-safe header match rule: a field matches if either
// side is unknown, else the values must be equal as strings.
func matchesCandidate(g *pgn.Game, c Candidate) bool {
	p1, p2 := c.Board.Players[0], c.Board.Players[1]
	return g.Headers["Result"] == "*" &&
		cmp(g.Headers["White"], p1.Name) &&
		cmp(g.Headers["Black"], p2.Name) &&
		cmpIntPtr(g.Headers["WhiteElo"], p1.Rating) &&
		cmpIntPtr(g.Headers["BlackElo"], p2.Rating) &&
		cmpIntPtr(g.Headers["WhiteFideId"], p1.FideID) &&
		cmpIntPtr(g.Headers["BlackFideId"], p2.FideID)
}

// cmp is true if either side is empty/missing, else requires string equality.
func cmp(header string, value string) bool {
	if header == "" || value == "" {
		return true
	}
	return header == value
}

func cmpIntPtr(header string, value *int) bool {
	if header == "" || value == nil {
		return true
	}
	return header == strconv.Itoa(*value)
}

// splitConcatenatedPGN splits a one-shot, non-streaming PGN archive on the blank-line
// separator between games and parses each chunk, skipping any that fail to parse.
func splitConcatenatedPGN(archive string) []*pgn.Game {
	var out []*pgn.Game
	for _, chunk := range splitOnBlankLine(archive) {
		g, err := pgn.Parse(chunk)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}

// splitOnBlankLine splits wherever two or more consecutive blank lines appear (a single
// blank line, as between a game's headers and its movetext, does not split), tolerating
// the archive endpoint's looser spacing compared to the streaming feed's exact "\n\n\n"
// record separator.
func splitOnBlankLine(archive string) []string {
	var chunks []string
	var cur string
	blank := 0
	for _, line := range splitLines(archive) {
		if line == "" {
			blank++
			if blank >= 2 && cur != "" {
				chunks = append(chunks, cur)
				cur = ""
				blank = 0
			}
			continue
		}
		blank = 0
		if cur != "" {
			cur += "\n"
		}
		cur += line
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	lines = append(lines, trimCR(s[start:]))
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
