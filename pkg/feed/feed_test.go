package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lczero/broadcast-analyzer/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const game1 = `[Event "Test"]
[White "A"]
[Black "B"]
[Result "*"]

1. e4 *
`

const game2Finished = `[Event "Test"]
[White "A"]
[Black "B"]
[Result "1-0"]

1. e4 e5 2. Qh5 g6 3. Qxe5# 1-0
`

func TestFeed_DeliversMatchingGameAndStopsOnResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(game1 + "\n\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte(game2Finished + "\n\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	f := feed.New(srv.Client(), srv.URL, []feed.Filter{{Key: "Event", Value: "Test"}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := f.Run(ctx)

	g1, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "*", g1.Headers["Result"])

	g2, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "1-0", g2.Headers["Result"])

	_, ok = <-out
	assert.False(t, ok)
}

func TestFeed_FiltersNonMatchingHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(game2Finished + "\n\n\n"))
	}))
	defer srv.Close()

	// The only game the server ever serves doesn't match, so fetchOnce sees EOF with no
	// completed game delivered: that's a premature close, which goes through the retry
	// backoff rather than reconnecting immediately. The channel only closes once ctx
	// expires, so the context deadline here is short and the wait below is generous
	// relative to it, not to retryBackoff.
	f := feed.New(srv.Client(), srv.URL, []feed.Filter{{Key: "Event", Value: "Other"}})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := f.Run(ctx)
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("expected channel to close without delivering a non-matching game")
	}
}

func TestFeed_PrematureCloseBacksOffInsteadOfBusyLooping(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		// Close without writing anything: a transport close with no completed game.
	}))
	defer srv.Close()

	f := feed.New(srv.Client(), srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out := f.Run(ctx)
	<-out

	// retryBackoff is 1s, so a 500ms window should see at most 2 requests (the initial
	// fetch plus, at most, one that was already in flight when ctx expired); a busy loop
	// with no backoff would run into the hundreds.
	assert.LessOrEqual(t, atomic.LoadInt64(&requests), int64(2))
}
