// Package engine owns a single external UCI engine subprocess: spawning it (locally or
// over SSH), performing the handshake, and driving one analysis at a time.
package engine

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/engine/uci"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
	"golang.org/x/crypto/ssh"
)

// ErrEngineStartup is returned by Initialize when the UCI handshake does not complete.
type ErrEngineStartup struct {
	Reason string
}

func (e *ErrEngineStartup) Error() string {
	return fmt.Sprintf("engine startup failed: %v", e.Reason)
}

// SSHConfig configures a remote shell channel for spawning the engine, instead of a
// local subprocess.
type SSHConfig struct {
	Host     string
	Username string
}

// Config describes how to spawn and identify an engine instance.
type Config struct {
	Command []string
	SSH     *SSHConfig
}

// Client owns one engine subprocess and enforces that at most one analysis is active
// at a time (§5's engine_lock/cancellation_lock pair).
type Client struct {
	cfg Config

	stdin  io.WriteCloser
	stdout io.Reader
	closer func() error // releases the process/session/connection

	lines <-chan string

	name, author string

	engineMu     sync.Mutex // held while starting an analysis
	cancelMu     sync.Mutex // held while cancelling one
	activeMu     sync.Mutex // guards active below
	active       *AnalysisHandle

	quit iox.AsyncCloser
}

// New spawns the configured engine command and returns an unintialized Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("empty engine command")
	}

	c := &Client{cfg: cfg, quit: iox.NewAsyncCloser()}

	if cfg.SSH != nil {
		if err := c.spawnRemote(ctx, *cfg.SSH); err != nil {
			return nil, err
		}
	} else {
		if err := c.spawnLocal(ctx); err != nil {
			return nil, err
		}
	}

	c.lines = readLines(ctx, c.stdout)
	return c, nil
}

func (c *Client) spawnLocal(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.cfg.Command[0], c.cfg.Command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}

	c.stdin = stdin
	c.stdout = stdout
	c.closer = func() error {
		_ = stdin.Close()
		return cmd.Wait()
	}
	return nil
}

// spawnRemote opens an SSH connection, kept open for the engine's lifetime, and runs
// the configured command over an interactive session's pipes.
func (c *Client) spawnRemote(ctx context.Context, cfg SSHConfig) error {
	conn, err := ssh.Dial("tcp", cfg.Host, &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(defaultAgentSigners)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		return fmt.Errorf("ssh dial %v: %w", cfg.Host, err)
	}

	session, err := conn.NewSession()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("ssh session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("ssh stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("ssh stdout: %w", err)
	}

	if err := session.Start(strings.Join(c.cfg.Command, " ")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("ssh start: %w", err)
	}

	c.stdin = stdin
	c.stdout = stdout
	c.closer = func() error {
		_ = stdin.Close()
		err := session.Wait()
		_ = conn.Close()
		return err
	}
	return nil
}

func defaultAgentSigners() ([]ssh.Signer, error) {
	// No ssh-agent forwarding is configured for the analyzer process; remote engine
	// spawn is expected to run under host-key-based automation with no passphrase.
	return nil, fmt.Errorf("no ssh signers configured")
}

func (c *Client) send(line string) {
	logw.Debugf(context.Background(), ">> %v", line)
	_, _ = fmt.Fprintln(c.stdin, line)
}

// Initialize performs the UCI handshake: uci → id/option* → uciok, then isready →
// readyok. Fails with ErrEngineStartup if the engine exits or never completes it.
func (c *Client) Initialize(ctx context.Context) error {
	c.send(uci.FormatUCI())

	sawUCIOK := false
	for line := range c.lines {
		if strings.HasPrefix(line, "id name ") {
			c.name = strings.TrimPrefix(line, "id name ")
			continue
		}
		if strings.HasPrefix(line, "id author ") {
			c.author = strings.TrimPrefix(line, "id author ")
			continue
		}
		if uci.IsUCIOK(line) {
			sawUCIOK = true
			break
		}
		// "option ..." lines are advertised capabilities; we do not build a settings
		// dialog, so they are only logged at debug level by readLines.
	}
	if !sawUCIOK {
		return &ErrEngineStartup{Reason: "engine exited before uciok"}
	}

	c.send(uci.FormatIsReady())
	for line := range c.lines {
		if uci.IsReadyOK(line) {
			logw.Infof(ctx, "Engine ready: %v by %v", c.name, c.author)
			go c.pump(ctx)
			return nil
		}
	}
	return &ErrEngineStartup{Reason: "engine exited before readyok"}
}

// Name returns the engine's advertised name, if any.
func (c *Client) Name() string {
	return c.name
}

// AnalysisHandle streams info records from one in-flight analysis.
type AnalysisHandle struct {
	info chan uci.InfoRecord
	done iox.AsyncCloser
}

func newAnalysisHandle() *AnalysisHandle {
	return &AnalysisHandle{
		info: make(chan uci.InfoRecord, 256),
		done: iox.NewAsyncCloser(),
	}
}

// Info streams parsed info records until the analysis is cancelled or the engine
// reports bestmove.
func (h *AnalysisHandle) Info() <-chan uci.InfoRecord {
	return h.info
}

// Closed reports when the analysis has concluded, for any reason.
func (h *AnalysisHandle) Closed() <-chan struct{} {
	return h.done.Closed()
}

// Analyze begins analysis of the given position with the given UCI options and
// multi-PV width. Only one analysis may be active at a time; callers must Cancel the
// previous handle first.
func (c *Client) Analyze(ctx context.Context, fenStr string, moves []board.Move, options map[string]string, multipv int) (*AnalysisHandle, error) {
	c.engineMu.Lock()
	defer c.engineMu.Unlock()

	// Block until any in-flight cancellation has fully completed before starting a
	// new analysis on the same engine.
	c.cancelMu.Lock()
	c.cancelMu.Unlock()

	c.activeMu.Lock()
	if c.active != nil {
		c.activeMu.Unlock()
		return nil, fmt.Errorf("analysis already active")
	}
	h := newAnalysisHandle()
	c.active = h
	c.activeMu.Unlock()

	if multipv < 1 {
		multipv = 1
	}
	c.send(uci.FormatSetOption("MultiPV", fmt.Sprintf("%d", multipv)))
	for name, value := range options {
		c.send(uci.FormatSetOption(name, value))
	}
	c.send(uci.FormatNewGame())
	c.send(uci.FormatPosition(fenStr, moves))
	c.send(uci.FormatGoInfinite())

	return h, nil
}

// Cancel stops the active analysis and waits for the engine to acknowledge with
// bestmove. No further info records are delivered on the handle after Cancel returns.
func (c *Client) Cancel(ctx context.Context, h *AnalysisHandle) {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()

	c.send(uci.FormatStop())
	<-h.Closed()

	c.activeMu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.activeMu.Unlock()
}

// pump is the sole reader of the engine's stdout after the handshake. It routes info
// lines to the active analysis handle and closes it on bestmove.
func (c *Client) pump(ctx context.Context) {
	defer c.quit.Close()

	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				c.closeActive()
				return
			}
			c.dispatch(line)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(line string) {
	c.activeMu.Lock()
	h := c.active
	c.activeMu.Unlock()
	if h == nil {
		return
	}

	if uci.IsBestMove(line) {
		h.done.Close()
		return
	}
	if rec, ok := uci.ParseInfo(line); ok {
		select {
		case h.info <- rec:
		default:
			// A stalled consumer must not block the engine pump; drop the oldest
			// info record rather than deadlock the read loop.
			<-h.info
			h.info <- rec
		}
	}
}

func (c *Client) closeActive() {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	if c.active != nil {
		c.active.done.Close()
		c.active = nil
	}
}

// Quit terminates the engine process and releases its transport.
func (c *Client) Quit() error {
	if c.stdin != nil {
		c.send(uci.FormatQuit())
	}
	if c.closer != nil {
		return c.closer()
	}
	return nil
}
