// Package pgn parses a single PGN game: its header block and movetext. It knows
// nothing about streaming or record separators; pkg/feed owns splitting a
// never-ending response into per-game chunks and hands each one to Parse.
package pgn

import (
	"fmt"
	"strconv"
	"strings"
)

// MoveText is one parsed movetext token, in SAN, plus its clock annotation if present.
type MoveText struct {
	San          string
	ClockSeconds int
	HasClock     bool
}

// Game is a parsed PGN game: its header block plus movetext tokens in play order.
// Moves are not yet resolved against a position; see Mainline for that.
type Game struct {
	Headers map[string]string
	Moves   []MoveText
}

// Parse parses one PGN game from a chunk of text: a header block of "[Key "Value"]"
// lines followed by movetext.
func Parse(chunk string) (*Game, error) {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return nil, fmt.Errorf("empty PGN game")
	}

	lines := strings.Split(chunk, "\n")
	headers := map[string]string{}

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "[") {
			break
		}
		key, value, ok := parseHeaderLine(line)
		if !ok {
			return nil, fmt.Errorf("invalid PGN header line: %q", line)
		}
		headers[key] = value
	}

	moves, err := parseMovetext(strings.Join(lines[i:], "\n"))
	if err != nil {
		return nil, fmt.Errorf("invalid PGN movetext: %w", err)
	}

	return &Game{Headers: headers, Moves: moves}, nil
}

func parseHeaderLine(line string) (string, string, bool) {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return "", "", false
	}
	inner := line[1 : len(line)-1]

	sp := strings.IndexByte(inner, ' ')
	if sp < 0 {
		return "", "", false
	}
	key := inner[:sp]
	rest := strings.TrimSpace(inner[sp+1:])
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", "", false
	}
	return key, rest[1 : len(rest)-1], true
}

// parseMovetext strips move numbers, result markers, NAGs ("$3") and recursive
// annotation variations ("(...)") and extracts clock comments ("{[%clk H:MM:SS]}")
// attached to the preceding move.
func parseMovetext(s string) ([]MoveText, error) {
	var moves []MoveText
	pendingIdx := -1

	flush := func(tok string) {
		tok = strings.TrimSpace(tok)
		if tok == "" || isMoveNumber(tok) || isResultMarker(tok) || strings.HasPrefix(tok, "$") {
			return
		}
		moves = append(moves, MoveText{San: tok})
		pendingIdx = len(moves) - 1
	}

	var tok strings.Builder
	var comment strings.Builder
	inComment := false
	depth := 0

	for _, r := range s {
		switch {
		case inComment:
			if r == '}' {
				inComment = false
				if pendingIdx >= 0 {
					if secs, ok := parseClockComment(comment.String()); ok {
						moves[pendingIdx].ClockSeconds = secs
						moves[pendingIdx].HasClock = true
					}
				}
				comment.Reset()
			} else {
				comment.WriteRune(r)
			}
		case depth > 0:
			switch r {
			case '(':
				depth++
			case ')':
				depth--
			}
		case r == '{':
			flush(tok.String())
			tok.Reset()
			inComment = true
		case r == '(':
			flush(tok.String())
			tok.Reset()
			depth++
		case r == ' ' || r == '\n' || r == '\t' || r == '\r':
			flush(tok.String())
			tok.Reset()
		default:
			tok.WriteRune(r)
		}
	}
	flush(tok.String())

	return moves, nil
}

func isMoveNumber(tok string) bool {
	i := 0
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		i++
	}
	if i == 0 {
		return false
	}
	for ; i < len(tok); i++ {
		if tok[i] != '.' {
			return false
		}
	}
	return true
}

func isResultMarker(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	default:
		return false
	}
}

// parseClockComment extracts the seconds encoded in a "[%clk H:MM:SS]" annotation
// found anywhere inside a comment body.
func parseClockComment(comment string) (int, bool) {
	idx := strings.Index(comment, "%clk")
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(comment[idx+len("%clk"):])
	if end := strings.IndexByte(rest, ']'); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)

	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	secStr := parts[2]
	if dot := strings.IndexByte(secStr, '.'); dot >= 0 {
		secStr = secStr[:dot]
	}
	sec, err3 := strconv.Atoi(secStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return h*3600 + m*60 + sec, true
}
