package engine

import (
	"bufio"
	"context"
	"io"

	"github.com/seekerror/logw"
)

// readLines reads lines from r into a chan, closing it when r is exhausted or errors.
// Async: the channel is the only signal of completion.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ret := make(chan string, 100)
	go func() {
		defer close(ret)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			logw.Debugf(ctx, "<< %v", scanner.Text())
			ret <- scanner.Text()
		}
	}()
	return ret
}
