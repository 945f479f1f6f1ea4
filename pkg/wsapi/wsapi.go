// Package wsapi serves the single WebSocket endpoint every viewer connects to: a
// snapshot on connect, then incremental updates filtered by the (game, ply) the client
// last asked for.
package wsapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/lczero/broadcast-analyzer/pkg/notify"
	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/seekerror/logw"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Conn adapts a gorilla *websocket.Conn to notify.Subscriber.
type Conn struct {
	ws *websocket.Conn
}

func (c *Conn) Send(frame notify.Frame) error {
	return c.ws.WriteJSON(frame)
}

// request is the client-to-server message shape: select a game and optionally a ply
// within it.
type request struct {
	GameID *int64 `json:"gameId"`
	Ply    *int   `json:"ply"`
}

// Handler serves /api/ws.
type Handler struct {
	st        *store.Store
	notifier  *notify.Notifier
	assetHash string
}

func NewHandler(st *store.Store, notifier *notify.Notifier, assetHash string) *Handler {
	return &Handler{st: st, notifier: notifier, assetHash: assetHash}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logw.Warningf(r.Context(), "wsapi: upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	conn := &Conn{ws: ws}
	h.notifier.Register(conn)
	defer h.notifier.Unregister(conn)

	if err := h.sendInitialSnapshot(r.Context(), conn); err != nil {
		logw.Warningf(r.Context(), "wsapi: initial snapshot failed: %v", err)
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if len(data) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			logw.Warningf(r.Context(), "wsapi: invalid JSON, closing connection: %v", err)
			return
		}
		if req.GameID == nil {
			continue
		}
		h.handleSetGameAndPly(r.Context(), conn, *req.GameID, req.Ply)
	}
}

func (h *Handler) sendInitialSnapshot(ctx context.Context, conn *Conn) error {
	games, err := h.st.ListVisibleGames(ctx)
	if err != nil {
		return err
	}

	entries := make([]notify.GameEntry, len(games))
	for i, g := range games {
		entries[i] = notify.GameEntry{
			ID: g.ID, TournamentID: g.TournamentID, GameName: g.GameName, RoundName: g.RoundName,
			Player1Name: g.Player1Name, Player2Name: g.Player2Name, Status: g.Status,
			IsFinished: g.IsFinished,
		}
	}

	status := notify.StatusData{NumViewers: h.notifier.NumSubscribers(), AssetHash: h.assetHash}
	return conn.Send(notify.Frame{Status: &status, Games: entries})
}

// handleSetGameAndPly updates conn's subscription and sends it direct snapshots: the
// game's known positions if the selected game changed, and the evaluation of the
// requested ply (the last position when no ply is given) if the game changed or a ply
// was given.
func (h *Handler) handleSetGameAndPly(ctx context.Context, conn *Conn, gameID int64, ply *int) {
	changed := h.notifier.SetGameAndPly(conn, gameID, ply)
	if !changed && ply == nil {
		return
	}

	positions, err := h.st.ListPositions(ctx, gameID)
	if err != nil {
		logw.Warningf(ctx, "wsapi: list positions %v: %v", gameID, err)
		return
	}

	if changed {
		if err := conn.Send(notify.Frame{Positions: toPositionDataList(positions)}); err != nil {
			return
		}
	}

	target := resolveTargetPly(positions, ply)
	if target == nil {
		return
	}

	eval, moves, err := h.st.GetLastEvaluation(ctx, target.ID)
	if err != nil || eval == nil {
		return
	}
	conn.Send(notify.Frame{Evaluations: []notify.EvaluationData{{
		Ply: target.PlyNumber, Depth: eval.Depth, SelDepth: eval.SelDepth, TimeMS: eval.TimeMS,
		Variations: buildVariations(moves),
	}}})
}

func toPositionDataList(positions []store.GamePosition) []notify.PositionData {
	out := make([]notify.PositionData, len(positions))
	for i, p := range positions {
		out[i] = notify.PositionData{
			Ply: p.PlyNumber, FEN: p.FEN, MoveUCI: p.MoveUCI, MoveSAN: p.MoveSAN,
			WhiteClock: p.WhiteClock, BlackClock: p.BlackClock, Nodes: p.Nodes,
			QScore: p.QScore, WhiteScore: p.WhiteScore, DrawScore: p.DrawScore, BlackScore: p.BlackScore,
		}
	}
	return out
}

// resolveTargetPly returns the position at ply, or the last position if ply is nil, or
// nil if positions is empty or ply names one not present.
func resolveTargetPly(positions []store.GamePosition, ply *int) *store.GamePosition {
	if len(positions) == 0 {
		return nil
	}
	targetPly := positions[len(positions)-1].PlyNumber
	if ply != nil {
		targetPly = *ply
	}
	for i := range positions {
		if positions[i].PlyNumber == targetPly {
			return &positions[i]
		}
	}
	return nil
}

// buildVariations mirrors the asymmetric update: every move carries its node count, but
// only the last carries the full PV and score breakdown.
func buildVariations(moves []store.GamePositionEvaluationMove) []notify.VariationData {
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
	return variations
}
