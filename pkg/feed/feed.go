// Package feed consumes a never-ending streaming PGN response and emits one parsed game
// per record, retrying transport errors with a fixed backoff.
package feed

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lczero/broadcast-analyzer/pkg/board/pgn"
	"github.com/seekerror/logw"
)

const (
	recordSeparator = "\n\n\n"
	retryBackoff    = time.Second
)

// Filter is a single required header match; a game is delivered only if every filter's
// key maps to its value in the game's headers.
type Filter struct {
	Key   string
	Value string
}

// Feed streams GET url, splits the chunked body on the PGN record separator, and
// delivers each chunk that matches every filter as a parsed pgn.Game. It closes its
// output channel and returns when a delivered game's Result header is not "*", or when
// ctx is cancelled. Transport errors reconnect to the same url after retryBackoff with
// an empty buffer; the feed never surfaces them to the caller.
type Feed struct {
	hc      *http.Client
	url     string
	filters []Filter
}

func New(hc *http.Client, url string, filters []Filter) *Feed {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Feed{hc: hc, url: url, filters: filters}
}

// Run starts consuming the feed and returns a channel of parsed games. The channel is
// closed when the game finishes (Result != "*") or ctx is cancelled.
func (f *Feed) Run(ctx context.Context) <-chan *pgn.Game {
	out := make(chan *pgn.Game, 16)
	go f.worker(ctx, out)
	return out
}

func (f *Feed) worker(ctx context.Context, out chan<- *pgn.Game) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}
		done, err := f.fetchOnce(ctx, out)
		if err != nil {
			logw.Warningf(ctx, "PGN feed %v: %v; reconnecting in %v", f.url, err, retryBackoff)
			select {
			case <-time.After(retryBackoff):
				continue
			case <-ctx.Done():
				return
			}
		}
		if done {
			return
		}
	}
}

// fetchOnce opens one HTTP session and reads until the body closes, an error occurs, or
// a delivered game signals completion. Returns done=true on normal completion.
func (f *Feed) fetchOnce(ctx context.Context, out chan<- *pgn.Game) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return false, err
	}

	resp, err := f.hc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var buf strings.Builder
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			for {
				content := buf.String()
				idx := strings.Index(content, recordSeparator)
				if idx < 0 {
					break
				}
				raw := content[:idx]
				buf.Reset()
				buf.WriteString(content[idx+len(recordSeparator):])

				done, derr := f.deliver(ctx, raw, out)
				if derr != nil {
					logw.Warningf(ctx, "PGN feed %v: discarding malformed game: %v", f.url, derr)
					continue
				}
				if done {
					return true, nil
				}
			}
		}
		if rerr == io.EOF {
			return false, io.ErrUnexpectedEOF
		}
		if rerr != nil {
			return false, rerr
		}
	}
}

func (f *Feed) deliver(ctx context.Context, raw string, out chan<- *pgn.Game) (bool, error) {
	g, err := pgn.Parse(raw)
	if err != nil {
		return false, err
	}
	if !f.matches(g) {
		return false, nil
	}

	select {
	case out <- g:
	case <-ctx.Done():
		return true, nil
	}

	return g.Headers["Result"] != "*", nil
}

func (f *Feed) matches(g *pgn.Game) bool {
	for _, filt := range f.filters {
		if g.Headers[filt.Key] != filt.Value {
			return false
		}
	}
	return true
}
