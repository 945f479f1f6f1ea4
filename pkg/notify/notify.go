// Package notify fans typed update frames out to WebSocket subscribers, each filtered
// by the (game, ply) it currently has open.
package notify

import (
	"sync"
)

// Subscriber is anything that can receive a serialized frame and report failure.
// *wsapi.Conn implements it; tests use a fake.
type Subscriber interface {
	Send(frame Frame) error
}

// Frame is the envelope sent to subscribers. Only the populated fields are marshaled.
type Frame struct {
	Status      *StatusData       `json:"status,omitempty"`
	Games       []GameEntry       `json:"games,omitempty"`
	Positions   []PositionData    `json:"positions,omitempty"`
	Evaluations []EvaluationData  `json:"evaluations,omitempty"`
}

// StatusData is the periodic status broadcast payload.
type StatusData struct {
	NumViewers int    `json:"numViewers"`
	AssetHash  string `json:"assetHash,omitempty"`
}

// GameEntry is one row of the "games" list, i.e. a game card.
type GameEntry struct {
	ID              int64  `json:"id"`
	TournamentID    int64  `json:"tournamentId"`
	GameName        string `json:"gameName"`
	RoundName       string `json:"roundName"`
	Player1Name     string `json:"player1Name"`
	Player2Name     string `json:"player2Name"`
	Status          string `json:"status"`
	IsFinished      bool   `json:"isFinished"`
	IsBeingAnalyzed bool   `json:"isBeingAnalyzed"`
}

// PositionData is one row of a "positions" snapshot.
type PositionData struct {
	Ply         int     `json:"ply"`
	FEN         string  `json:"fen"`
	MoveUCI     *string `json:"moveUci,omitempty"`
	MoveSAN     *string `json:"moveSan,omitempty"`
	WhiteClock  *int    `json:"whiteClock,omitempty"`
	BlackClock  *int    `json:"blackClock,omitempty"`
	Nodes       int64   `json:"nodes,omitempty"`
	QScore      *int    `json:"scoreQ,omitempty"`
	WhiteScore  *int    `json:"scoreW,omitempty"`
	DrawScore   *int    `json:"scoreD,omitempty"`
	BlackScore  *int    `json:"scoreB,omitempty"`
}

// VariationData carries one PV's evaluation. Within an EvaluationData's Variations list
// only the last (most recent) entry is fully populated; earlier entries carry Nodes only,
// mirroring the source's asymmetric update payload.
type VariationData struct {
	Nodes      int64   `json:"nodes"`
	PVSan      []string `json:"pvSan,omitempty"`
	PVUci      []string `json:"pvUci,omitempty"`
	QScore     *int    `json:"scoreQ,omitempty"`
	WhiteScore *int    `json:"scoreW,omitempty"`
	DrawScore  *int    `json:"scoreD,omitempty"`
	BlackScore *int    `json:"scoreB,omitempty"`
	MateScore  *int    `json:"mateScore,omitempty"`
}

// EvaluationData is one row of an "evaluations" snapshot, at a given ply.
type EvaluationData struct {
	Ply        int              `json:"ply"`
	Depth      int              `json:"depth"`
	SelDepth   int              `json:"seldepth"`
	TimeMS     int64            `json:"time"`
	Variations []VariationData  `json:"variations"`
}

// PopulateLastVariation fills out the full variation payload on the last element of vs
// only, leaving earlier elements with just their Nodes count. This mirrors the reference
// service's make_evaluations_update, which treats all but the newest PV as superseded.
func PopulateLastVariation(vs []VariationData, full VariationData) []VariationData {
	if len(vs) == 0 {
		return vs
	}
	last := len(vs) - 1
	vs[last].PVSan = full.PVSan
	vs[last].PVUci = full.PVUci
	vs[last].QScore = full.QScore
	vs[last].WhiteScore = full.WhiteScore
	vs[last].DrawScore = full.DrawScore
	vs[last].BlackScore = full.BlackScore
	vs[last].MateScore = full.MateScore
	return vs
}

type interest struct {
	hasGame bool
	gameID  int64
	hasPly  bool
	ply     int
}

// Notifier owns the subscriber registry and dispatches frames filtered by subscriber
// interest. register/unregister/set_game_and_ply mutate the map; notify takes a
// snapshot before dispatch so a slow subscriber's Send cannot block another's.
type Notifier struct {
	mu  sync.Mutex
	sub map[Subscriber]interest
}

func New() *Notifier {
	return &Notifier{sub: map[Subscriber]interest{}}
}

// Register adds s with no interest set. Idempotent.
func (n *Notifier) Register(s Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sub[s]; !ok {
		n.sub[s] = interest{}
	}
}

// Unregister removes s. Idempotent.
func (n *Notifier) Unregister(s Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.sub, s)
}

// SetGameAndPly updates s's interest and reports whether the game changed, so the
// caller knows whether to resend a positions snapshot.
func (n *Notifier) SetGameAndPly(s Subscriber, gameID int64, ply *int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur, ok := n.sub[s]
	if !ok {
		return false
	}
	changed := !cur.hasGame || cur.gameID != gameID

	next := interest{hasGame: true, gameID: gameID}
	if ply != nil {
		next.hasPly = true
		next.ply = *ply
	}
	n.sub[s] = next
	return changed
}

func (n *Notifier) NumSubscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sub)
}

// snapshot returns subscribers whose interest matches the given (gameID, ply) filter.
// A nil gameID matches everyone; a non-nil gameID with nil ply matches any ply of that
// game; a non-nil gameID with non-nil ply matches only that exact ply.
func (n *Notifier) snapshot(gameID *int64, ply *int) []Subscriber {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []Subscriber
	for s, in := range n.sub {
		if gameID != nil {
			if !in.hasGame || in.gameID != *gameID {
				continue
			}
			if ply != nil && (!in.hasPly || in.ply != *ply) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Notify is the lowest-level dispatch: it snapshots matching subscribers, then fans the
// frame out concurrently, so one slow subscriber's Send cannot delay another's. A send
// error unregisters that subscriber.
func (n *Notifier) Notify(frame Frame, gameID *int64, ply *int) {
	targets := n.snapshot(gameID, ply)

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, s := range targets {
		s := s
		go func() {
			defer wg.Done()
			if err := s.Send(frame); err != nil {
				n.Unregister(s)
			}
		}()
	}
	wg.Wait()
}

// SendGameEntryUpdate broadcasts a single game's card to every subscriber.
func (n *Notifier) SendGameEntryUpdate(entry GameEntry) {
	n.Notify(Frame{Games: []GameEntry{entry}}, nil, nil)
}

// SendGameUpdate broadcasts incremental state for gameID, delivered only to subscribers
// whose interest matches.
func (n *Notifier) SendGameUpdate(gameID int64, positions []PositionData, evaluations []EvaluationData, ply *int) {
	frame := Frame{Positions: positions}
	if len(positions) > 0 {
		n.Notify(frame, &gameID, nil)
	}
	if len(evaluations) > 0 {
		n.Notify(Frame{Evaluations: evaluations}, &gameID, ply)
	}
}

// SendStatus broadcasts the periodic status frame to every subscriber.
func (n *Notifier) SendStatus(status StatusData) {
	n.Notify(Frame{Status: &status}, nil, nil)
}
