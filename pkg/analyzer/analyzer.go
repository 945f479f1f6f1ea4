// Package analyzer is the per-engine worker: it repeatedly acquires a game from a
// NextGameSource, ingests its PGN stream, and drives one engine analysis per distinct
// leaf position, persisting positions and evaluations and notifying subscribers.
package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/lczero/broadcast-analyzer/pkg/board"
	"github.com/lczero/broadcast-analyzer/pkg/board/fen"
	"github.com/lczero/broadcast-analyzer/pkg/board/pgn"
	"github.com/lczero/broadcast-analyzer/pkg/catalog"
	"github.com/lczero/broadcast-analyzer/pkg/config"
	"github.com/lczero/broadcast-analyzer/pkg/engine"
	"github.com/lczero/broadcast-analyzer/pkg/engine/uci"
	"github.com/lczero/broadcast-analyzer/pkg/feed"
	"github.com/lczero/broadcast-analyzer/pkg/notify"
	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/seekerror/logw"
)

// NextGameSource is the one-way replacement for the source's Analyzer-to-Supervisor
// callback: the Analyzer only ever calls in, it is never called back.
type NextGameSource interface {
	GetNextGame(ctx context.Context) (*store.Game, error)
}

// Analyzer is a single engine worker.
type Analyzer struct {
	cfg      config.AnalyzerConfig
	client   *engine.Client
	st       *store.Store
	cat      *catalog.Client
	notifier *notify.Notifier
	next     NextGameSource
	dynamic  OptionSource // nil if cfg.DynamicOptions names no built-in variant
	hc       *http.Client

	mu      sync.Mutex
	current *store.Game
}

// New spawns the configured engine (without yet performing the handshake; call Run to
// do that) and returns an Analyzer ready to serve games from next.
func New(ctx context.Context, cfg config.AnalyzerConfig, st *store.Store, cat *catalog.Client, notifier *notify.Notifier, next NextGameSource, dynamic OptionSource) (*Analyzer, error) {
	engineCfg := engine.Config{Command: cfg.Command}
	if cfg.SSH != nil {
		engineCfg.SSH = &engine.SSHConfig{Host: cfg.SSH.Host, Username: cfg.SSH.Username}
	}

	client, err := engine.New(ctx, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("spawn engine: %w", err)
	}

	return &Analyzer{
		cfg: cfg, client: client, st: st, cat: cat, notifier: notifier,
		next: next, dynamic: dynamic, hc: http.DefaultClient,
	}, nil
}

// GetGame returns the game currently held by this worker, or nil if idle.
func (a *Analyzer) GetGame() *store.Game {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *Analyzer) setGame(g *store.Game) {
	a.mu.Lock()
	a.current = g
	a.mu.Unlock()
}

// Run performs the handshake, then loops: acquire a game, run it to completion, repeat.
// A per-game failure is logged and the loop continues to the next assignment; engine
// startup failure is fatal, matching the error taxonomy's "Analyzer exits, slot stays
// empty" rule.
func (a *Analyzer) Run(ctx context.Context) error {
	if err := a.client.Initialize(ctx); err != nil {
		return fmt.Errorf("engine initialize: %w", err)
	}
	logw.Infof(ctx, "Analyzer ready on engine %v", a.client.Name())

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		game, err := a.next.GetNextGame(ctx)
		if err != nil {
			return fmt.Errorf("get next game: %w", err)
		}
		if err := a.runGame(ctx, game); err != nil {
			logw.Warningf(ctx, "Game %v ended with error: %v", game.ID, err)
		}
	}
}

// runGame runs the Ingestor/Worker pair for one game under its own cancellation scope,
// per the per-game subtree described in the concurrency model.
func (a *Analyzer) runGame(parent context.Context, game *store.Game) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a.setGame(game)
	defer a.setGame(nil)

	a.notifier.SendGameEntryUpdate(gameEntry(game, true))

	filters, err := a.st.GetGameFilters(ctx, game.ID)
	if err != nil {
		return err
	}
	var feedFilters []feed.Filter
	for k, v := range filters {
		feedFilters = append(feedFilters, feed.Filter{Key: k, Value: v})
	}

	f := feed.New(a.hc, a.cat.StreamURL(game.LichessRoundID), feedFilters)
	pgnCh := f.Run(ctx)

	var currentPos *store.GamePosition
	var handle *engine.AnalysisHandle
	var bund *bundle
	var turn board.Color

	for {
		var infoCh <-chan uci.InfoRecord
		if handle != nil {
			infoCh = handle.Info()
		}

		select {
		case g, ok := <-pgnCh:
			if !ok {
				if handle != nil {
					a.client.Cancel(ctx, handle)
				}
				return a.finishGame(ctx, game)
			}

			leaf, err := a.ingestPositions(ctx, game, g)
			if err != nil {
				logw.Warningf(ctx, "Game %v: ingest failed: %v", game.ID, err)
				continue
			}
			if currentPos != nil && leaf.ID == currentPos.ID {
				continue
			}

			if handle != nil {
				a.client.Cancel(ctx, handle)
				handle = nil
			}
			currentPos = leaf
			handle, bund, turn, err = a.startAnalysis(ctx, game, leaf)
			if err != nil {
				logw.Warningf(ctx, "Game %v: analysis start failed: %v", game.ID, err)
				handle = nil
			}

		case rec, ok := <-infoCh:
			if !ok || bund == nil {
				continue
			}
			if bund.add(rec) {
				a.persistBundle(ctx, game, currentPos, turn, bund)
				bund.reset()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Analyzer) finishGame(ctx context.Context, game *store.Game) error {
	if err := a.st.SetGameFinished(ctx, game.ID); err != nil {
		return err
	}
	game.IsFinished = true
	a.notifier.SendGameEntryUpdate(gameEntry(game, false))
	return nil
}

// ingestPositions upserts every position named by g's mainline (including ply 0),
// notifying subscribers only for positions newly created by this call, and returns the
// leaf position.
func (a *Analyzer) ingestPositions(ctx context.Context, game *store.Game, g *pgn.Game) (*store.GamePosition, error) {
	plies, _, err := g.Mainline()
	if err != nil {
		return nil, fmt.Errorf("resolve mainline: %w", err)
	}

	ply0, created, err := a.st.UpsertPosition(ctx, store.NewPosition{GameID: game.ID, PlyNumber: 0, FEN: g.StartFEN()})
	if err != nil {
		return nil, err
	}
	if created {
		a.notifier.SendGameUpdate(game.ID, []notify.PositionData{toPositionData(ply0)}, nil, nil)
	}
	leaf := ply0

	for _, p := range plies {
		moveUCI, moveSAN := p.Move.String(), p.San
		whiteClock, blackClock := clockFields(p)

		pos, created, err := a.st.UpsertPosition(ctx, store.NewPosition{
			GameID: game.ID, PlyNumber: p.Number, FEN: p.FEN,
			MoveUCI: &moveUCI, MoveSAN: &moveSAN, WhiteClock: whiteClock, BlackClock: blackClock,
		})
		if err != nil {
			return nil, err
		}
		if created {
			a.notifier.SendGameUpdate(game.ID, []notify.PositionData{toPositionData(pos)}, nil, nil)
		}
		leaf = pos
	}
	return leaf, nil
}

// clockFields attributes a ply's clock comment to whichever side made that move: White
// on odd plies, Black on even plies (ply 1 is White's first move).
func clockFields(p pgn.Ply) (whiteClock, blackClock *int) {
	if !p.HasClock {
		return nil, nil
	}
	sec := p.ClockSeconds
	if p.Number%2 == 1 {
		return &sec, nil
	}
	return nil, &sec
}

// startAnalysis begins analysis of leaf's position. Returns nil, nil, _, nil (no error,
// no handle) if the position has no legal moves, since there is nothing to analyze.
func (a *Analyzer) startAnalysis(ctx context.Context, game *store.Game, leaf *store.GamePosition) (*engine.AnalysisHandle, *bundle, board.Color, error) {
	pos, turn, noprogress, fullmoves, err := fen.Decode(leaf.FEN)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("decode leaf fen: %w", err)
	}
	b := board.NewBoard(pos, turn, noprogress, fullmoves)

	legal := b.LegalMoves()
	if len(legal) == 0 {
		return nil, nil, turn, nil
	}

	n := a.cfg.MaxMultiPV
	if n <= 0 || n > len(legal) {
		n = len(legal)
	}

	merged := a.resolveOptions(ctx, game, b, leaf)

	handle, err := a.client.Analyze(ctx, leaf.FEN, nil, merged, n)
	if err != nil {
		return nil, nil, turn, fmt.Errorf("start analysis: %w", err)
	}
	return handle, newBundle(n), turn, nil
}

// resolveOptions computes the UCI options for one analysis: the config's static
// defaults, then the configured dynamic source (if any), then the mandatory
// ratings-contempt block on top. The ratings-contempt block is unconditional — it is not
// one more selectable dynamic-option variant, it applies whenever both ratings are known
// regardless of what a.dynamic is.
func (a *Analyzer) resolveOptions(ctx context.Context, game *store.Game, b *board.Board, pos *store.GamePosition) map[string]string {
	var dynamic map[string]string
	if a.dynamic != nil {
		dynamic = a.dynamic.Resolve(ctx, game, b, pos)
	}
	merged := MergeOptions(a.cfg.UCIOptions, dynamic)
	return MergeOptions(merged, RatingsContemptOptions(ctx, game, b, pos))
}

// persistBundle stores a completed bundle as a new evaluation, mirrors the aggregates
// onto the position row, and notifies subscribers.
func (a *Analyzer) persistBundle(ctx context.Context, game *store.Game, pos *store.GamePosition, turn board.Color, b *bundle) {
	agg := aggregate(turn, b)

	evalID, err := a.st.InsertEvaluation(ctx, store.GamePositionEvaluation{
		PositionID: pos.ID, Nodes: agg.Nodes, TimeMS: agg.TimeMS, Depth: agg.Depth, SelDepth: agg.SelDepth, MovesLeft: agg.MovesLeft,
	})
	if err != nil {
		logw.Warningf(ctx, "Game %v: insert evaluation failed: %v", game.ID, err)
		return
	}

	showPV := a.cfg.ShowPV
	if showPV > b.n {
		showPV = b.n
	}
	moves := buildEvaluationMoves(evalID, pos.FEN, turn, b, showPV)
	if err := a.st.InsertEvaluationMoves(ctx, moves); err != nil {
		logw.Warningf(ctx, "Game %v: insert evaluation moves failed: %v", game.ID, err)
	}

	if err := a.st.UpdatePositionAggregates(ctx, pos.ID, store.PositionAggregates{
		Nodes: agg.Nodes, QScore: agg.QScore, WhiteScore: agg.WhiteScore, DrawScore: agg.DrawScore,
		BlackScore: agg.BlackScore, MovesLeft: agg.MovesLeft, TimeMS: agg.TimeMS, Depth: agg.Depth, SelDepth: agg.SelDepth,
	}); err != nil {
		logw.Warningf(ctx, "Game %v: update position aggregates failed: %v", game.ID, err)
	}

	pos.Nodes, pos.QScore, pos.WhiteScore, pos.DrawScore, pos.BlackScore = agg.Nodes, &agg.QScore, &agg.WhiteScore, &agg.DrawScore, &agg.BlackScore
	pos.MovesLeft, pos.TimeMS, pos.Depth, pos.SelDepth = agg.MovesLeft, agg.TimeMS, agg.Depth, agg.SelDepth

	ply := pos.PlyNumber
	a.notifier.SendGameUpdate(game.ID, nil, []notify.EvaluationData{toEvaluationData(pos, moves)}, &ply)
}

// buildEvaluationMoves converts the top showPV slots of a bundle into persistable rows,
// resolving each PV's SAN by replaying it against the position leafFEN names.
func buildEvaluationMoves(evalID int64, leafFEN string, turn board.Color, b *bundle, showPV int) []store.GamePositionEvaluationMove {
	var out []store.GamePositionEvaluationMove
	for i := 1; i <= showPV; i++ {
		rec, ok := b.records[i]
		if !ok {
			continue
		}

		moveSAN, pvSAN, err := pvToSAN(leafFEN, rec.PV)
		if err != nil {
			continue
		}
		moveUCI := ""
		if len(rec.PV) > 0 {
			moveUCI = rec.PV[0]
		}

		qscore := scoreCPWhite(turn, rec.Score)
		m := store.GamePositionEvaluationMove{
			EvaluationID: evalID, Nodes: rec.Nodes, MoveUCI: moveUCI, MoveSAN: moveSAN,
			QScore: &qscore, PVSan: pvSAN, PVUci: rec.PV, MateScore: mateScoreWhite(turn, rec.Score),
		}
		if rec.HasWDL {
			w, d, l := wdlWhite(turn, rec.WDL)
			m.WhiteScore, m.DrawScore, m.BlackScore = &w, &d, &l
		}
		if rec.HasMovesLeft {
			ml := int(rec.MovesLeft)
			m.MovesLeft = &ml
		}
		out = append(out, m)
	}
	return out
}

// pvToSAN replays a PV of long-algebraic moves from leafFEN, returning the first move's
// SAN and the full SAN sequence. It stops at the first move it cannot resolve, which
// truncates rather than discards the PV (an engine's PV may run past mate/checkmate
// bookkeeping edge cases this service does not otherwise need to model).
func pvToSAN(leafFEN string, pv []string) (string, []string, error) {
	pos, turn, noprogress, fullmoves, err := fen.Decode(leafFEN)
	if err != nil {
		return "", nil, err
	}
	b := board.NewBoard(pos, turn, noprogress, fullmoves)

	var sans []string
	for _, u := range pv {
		m, err := board.ParseMove(u)
		if err != nil {
			break
		}
		san, err := b.San(m)
		if err != nil {
			break
		}
		if !b.PushMove(m) {
			break
		}
		sans = append(sans, san)
	}
	if len(sans) == 0 {
		return "", nil, fmt.Errorf("no resolvable move in pv")
	}
	return sans[0], sans, nil
}

func gameEntry(g *store.Game, isBeingAnalyzed bool) notify.GameEntry {
	return notify.GameEntry{
		ID: g.ID, TournamentID: g.TournamentID, GameName: g.GameName, RoundName: g.RoundName,
		Player1Name: g.Player1Name, Player2Name: g.Player2Name, Status: g.Status,
		IsFinished: g.IsFinished, IsBeingAnalyzed: isBeingAnalyzed,
	}
}

func toPositionData(p *store.GamePosition) notify.PositionData {
	return notify.PositionData{
		Ply: p.PlyNumber, FEN: p.FEN, MoveUCI: p.MoveUCI, MoveSAN: p.MoveSAN,
		WhiteClock: p.WhiteClock, BlackClock: p.BlackClock, Nodes: p.Nodes,
		QScore: p.QScore, WhiteScore: p.WhiteScore, DrawScore: p.DrawScore, BlackScore: p.BlackScore,
	}
}

func toEvaluationData(p *store.GamePosition, moves []store.GamePositionEvaluationMove) notify.EvaluationData {
	variations := make([]notify.VariationData, len(moves))
	for i, m := range moves {
		variations[i] = notify.VariationData{Nodes: m.Nodes}
	}
	if len(moves) > 0 {
		last := moves[len(moves)-1]
		variations = notify.PopulateLastVariation(variations, notify.VariationData{
			Nodes: last.Nodes, PVSan: last.PVSan, PVUci: last.PVUci,
			QScore: last.QScore, WhiteScore: last.WhiteScore, DrawScore: last.DrawScore,
			BlackScore: last.BlackScore, MateScore: last.MateScore,
		})
	}
	return notify.EvaluationData{Ply: p.PlyNumber, Depth: p.Depth, SelDepth: p.SelDepth, TimeMS: p.TimeMS, Variations: variations}
}
