// Package supervisor hands out games to analyzer workers and fans out the periodic
// viewer-count status broadcast. It is the single NextGameSource every Analyzer holds;
// nothing calls back the other way.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/lczero/broadcast-analyzer/pkg/catalog"
	"github.com/lczero/broadcast-analyzer/pkg/notify"
	"github.com/lczero/broadcast-analyzer/pkg/selector"
	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/seekerror/logw"
)

const (
	retryDelay   = 10 * time.Second
	statusPeriod = 33 * time.Second
)

// Holder is implemented by every Analyzer: it reports which game it currently holds, so
// the Supervisor never double-assigns a game already being worked.
type Holder interface {
	GetGame() *store.Game
}

// Supervisor assigns games to a fixed set of workers and keeps subscribers informed of
// viewer counts.
type Supervisor struct {
	st        *store.Store
	cat       *catalog.Client
	notifier  *notify.Notifier
	holders   []Holder
	assetHash string

	// assignMu serializes GetNextGame end to end, retry sleep included, so two idle
	// workers can never both observe the same unheld game or both materialize the same
	// new candidate.
	assignMu sync.Mutex
}

// New returns a Supervisor watching the given workers. holders is typically the same
// *analyzer.Analyzer slice passed to each worker's goroutine. assetHash identifies the
// served frontend build and is echoed in every status broadcast so clients can detect a
// stale bundle and reload.
func New(st *store.Store, cat *catalog.Client, notifier *notify.Notifier, holders []Holder, assetHash string) *Supervisor {
	return &Supervisor{st: st, cat: cat, notifier: notifier, holders: holders, assetHash: assetHash}
}

// GetNextGame implements analyzer.NextGameSource: return any unfinished game not
// already held by a worker; else pick and materialize the best new candidate; else
// sleep and retry. It never returns nil without an error.
//
// The whole loop, sleep included, runs under assignMu: GetNextGame is called
// concurrently by one goroutine per worker, and without this lock two idle workers
// could both miss each other's in-flight holder state and materialize duplicate Game
// rows for the same candidate.
func (sup *Supervisor) GetNextGame(ctx context.Context) (*store.Game, error) {
	sup.assignMu.Lock()
	defer sup.assignMu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		game, err := sup.nextUnheldGame(ctx)
		if err != nil {
			return nil, err
		}
		if game != nil {
			return game, nil
		}

		game, err = sup.assignNewCandidate(ctx)
		if err != nil {
			logw.Warningf(ctx, "Supervisor: candidate assignment failed: %v", err)
		} else if game != nil {
			return game, nil
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (sup *Supervisor) nextUnheldGame(ctx context.Context) (*store.Game, error) {
	games, err := sup.st.ListUnfinishedGames(ctx)
	if err != nil {
		return nil, err
	}
	return firstUnheld(games, sup.holders), nil
}

// firstUnheld returns the first of games not currently held by any holder, in list
// order, or nil if every game is held.
func firstUnheld(games []store.Game, holders []Holder) *store.Game {
	held := map[int64]bool{}
	for _, h := range holders {
		if g := h.GetGame(); g != nil {
			held[g.ID] = true
		}
	}

	for i := range games {
		if !held[games[i].ID] {
			return &games[i]
		}
	}
	return nil
}

func (sup *Supervisor) assignNewCandidate(ctx context.Context) (*store.Game, error) {
	candidates, err := selector.GetCandidates(ctx, sup.cat, sup.st)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := selector.PickBest(candidates)
	return selector.Materialize(ctx, sup.cat, sup.st, best)
}

// RunStatusLoop periodically broadcasts the current viewer count until ctx is done.
func (sup *Supervisor) RunStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sup.notifier.SendStatus(notify.StatusData{NumViewers: sup.notifier.NumSubscribers(), AssetHash: sup.assetHash})
		case <-ctx.Done():
			return
		}
	}
}
