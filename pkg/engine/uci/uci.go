// Package uci contains the client side of the UCI protocol: encoding GUI → engine
// commands and decoding engine → GUI responses. It has no knowledge of process
// management; it only deals in protocol lines.
//
// See: http://wbec-ridderkerk.nl/html/UCIProtocol.html
package uci

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lczero/broadcast-analyzer/pkg/board"
)

// FormatUCI is the handshake command that switches the engine into UCI mode.
func FormatUCI() string {
	return "uci"
}

// FormatIsReady asks the engine to confirm it is ready to process further commands.
func FormatIsReady() string {
	return "isready"
}

// FormatNewGame tells the engine the next position belongs to a new game.
func FormatNewGame() string {
	return "ucinewgame"
}

// FormatSetOption formats a "setoption" command.
func FormatSetOption(name, value string) string {
	if value == "" {
		return fmt.Sprintf("setoption name %v", name)
	}
	return fmt.Sprintf("setoption name %v value %v", name, value)
}

// FormatPosition formats a "position fen ... moves ..." command.
func FormatPosition(fenStr string, moves []board.Move) string {
	var sb strings.Builder
	sb.WriteString("position fen ")
	sb.WriteString(fenStr)
	if len(moves) > 0 {
		sb.WriteString(" moves")
		for _, m := range moves {
			sb.WriteString(" ")
			sb.WriteString(m.String())
		}
	}
	return sb.String()
}

// FormatGoInfinite formats a "go infinite" command: analyze until told to stop.
func FormatGoInfinite() string {
	return "go infinite"
}

// FormatStop formats a "stop" command, requesting the engine halt and emit bestmove.
func FormatStop() string {
	return "stop"
}

// FormatQuit formats a "quit" command, requesting engine process termination.
func FormatQuit() string {
	return "quit"
}

// IsUCIOK returns true iff line is the "uciok" handshake terminator.
func IsUCIOK(line string) bool {
	return strings.TrimSpace(line) == "uciok"
}

// IsReadyOK returns true iff line is the "readyok" response.
func IsReadyOK(line string) bool {
	return strings.TrimSpace(line) == "readyok"
}

// IsBestMove returns true iff line begins a "bestmove" response, which the engine
// emits once it has honored a "stop" or concluded a bounded search.
func IsBestMove(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "bestmove")
}

// Score is a position evaluation: either a centipawn score or a forced mate in N plies.
type Score struct {
	CP     int
	Mate   int
	IsMate bool
}

func (s Score) String() string {
	if s.IsMate {
		return fmt.Sprintf("mate %v", s.Mate)
	}
	return fmt.Sprintf("cp %v", s.CP)
}

// InfoRecord is one parsed "info ..." line from the engine.
type InfoRecord struct {
	MultiPV  int // 1-based; defaults to 1 if the engine omits it for single-PV output.
	Depth    int
	SelDepth int
	Nodes    int64
	TimeMS   int64

	Score    Score
	HasScore bool

	WDL    [3]int // win, draw, loss for the side to move, per-mille
	HasWDL bool

	MovesLeft    int64
	HasMovesLeft bool

	PV []string // long algebraic move tokens, engine-native order
}

// ParseInfo parses a UCI "info ..." line. Returns false for lines without a "depth"
// field (e.g. "info string ..." banners), which callers should ignore.
func ParseInfo(line string) (InfoRecord, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 || fields[0] != "info" {
		return InfoRecord{}, false
	}

	rec := InfoRecord{MultiPV: 1}
	found := false

	i := 1
	for i < len(fields) {
		switch fields[i] {
		case "depth":
			rec.Depth, i = nextInt(fields, i)
			found = true
		case "seldepth":
			rec.SelDepth, i = nextInt(fields, i)
		case "multipv":
			rec.MultiPV, i = nextInt(fields, i)
		case "nodes":
			n, j := nextInt(fields, i)
			rec.Nodes, i = int64(n), j
		case "time":
			n, j := nextInt(fields, i)
			rec.TimeMS, i = int64(n), j
		case "score":
			i++
			if i >= len(fields) {
				break
			}
			switch fields[i] {
			case "cp":
				v, j := nextInt(fields, i)
				rec.Score = Score{CP: v}
				rec.HasScore = true
				i = j
			case "mate":
				v, j := nextInt(fields, i)
				rec.Score = Score{Mate: v, IsMate: true}
				rec.HasScore = true
				i = j
			default:
				// lowerbound/upperbound qualifiers without a following value: skip token.
			}
		case "movesleft":
			n, j := nextInt(fields, i)
			rec.MovesLeft, rec.HasMovesLeft, i = int64(n), true, j
		case "wdl":
			if i+3 < len(fields) {
				w, _ := strconv.Atoi(fields[i+1])
				d, _ := strconv.Atoi(fields[i+2])
				l, _ := strconv.Atoi(fields[i+3])
				rec.WDL = [3]int{w, d, l}
				rec.HasWDL = true
				i += 4
			} else {
				i++
			}
		case "pv":
			rec.PV = append([]string{}, fields[i+1:]...)
			i = len(fields)
		case "string":
			// Free-form diagnostic text runs to end of line; nothing further to parse.
			i = len(fields)
		default:
			i++
		}
	}

	return rec, found
}

func nextInt(fields []string, i int) (int, int) {
	if i+1 >= len(fields) {
		return 0, i + 1
	}
	v, err := strconv.Atoi(fields[i+1])
	if err != nil {
		return 0, i + 1
	}
	return v, i + 2
}
