package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/lczero/broadcast-analyzer/pkg/analyzer"
	"github.com/lczero/broadcast-analyzer/pkg/catalog"
	"github.com/lczero/broadcast-analyzer/pkg/config"
	"github.com/lczero/broadcast-analyzer/pkg/movetime"
	"github.com/lczero/broadcast-analyzer/pkg/notify"
	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/lczero/broadcast-analyzer/pkg/supervisor"
	"github.com/lczero/broadcast-analyzer/pkg/wsapi"
	"github.com/seekerror/logw"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the service config file")
	listenAddr = flag.String("listen", ":8080", "HTTP listen address")
	catalogURL = flag.String("catalog-url", "https://lichess.org/broadcast", "Base URL of the broadcast catalog")
	assetHash  = flag.String("asset-hash", "", "Frontend build identifier echoed in status broadcasts")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: broadcast-analyzer [options]

broadcast-analyzer follows a live chess broadcast round, analyzes every
position it reaches with one or more UCI engines, and serves the results over
a WebSocket API and static frontend assets.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logw.Exitf(ctx, "Load config: %v", err)
	}

	st, err := store.Open(ctx, cfg.DBURL)
	if err != nil {
		logw.Exitf(ctx, "Open store: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		logw.Exitf(ctx, "Migrate store: %v", err)
	}

	cat := catalog.New(*catalogURL, http.DefaultClient)
	notifier := notify.New()

	source := &lazySource{}
	analyzers := make([]*analyzer.Analyzer, len(cfg.Analyzers))
	holders := make([]supervisor.Holder, len(cfg.Analyzers))
	for i, ac := range cfg.Analyzers {
		dyn, err := resolveDynamicOptions(ac.DynamicOptions)
		if err != nil {
			logw.Exitf(ctx, "Analyzer %d: %v", i, err)
		}
		a, err := analyzer.New(ctx, ac, st, cat, notifier, source, dyn)
		if err != nil {
			logw.Exitf(ctx, "Analyzer %d: %v", i, err)
		}
		analyzers[i] = a
		holders[i] = a
	}

	sup := supervisor.New(st, cat, notifier, holders, *assetHash)
	source.sup = sup

	for _, a := range analyzers {
		go func(a *analyzer.Analyzer) {
			if err := a.Run(ctx); err != nil {
				logw.Errorf(ctx, "Analyzer exited: %v", err)
			}
		}(a)
	}
	go sup.RunStatusLoop(ctx)

	mux := http.NewServeMux()
	mux.Handle("/api/ws", wsapi.NewHandler(st, notifier, *assetHash))
	if cfg.AssetsDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.AssetsDir)))
	}

	logw.Infof(ctx, "Listening on %v", *listenAddr)
	if err := http.ListenAndServe(*listenAddr, mux); err != nil {
		logw.Exitf(ctx, "Serve: %v", err)
	}
}

// lazySource forwards to a *supervisor.Supervisor constructed only after every
// Analyzer (which the Supervisor needs to poll for held games) already exists.
type lazySource struct {
	sup *supervisor.Supervisor
}

func (l *lazySource) GetNextGame(ctx context.Context) (*store.Game, error) {
	return l.sup.GetNextGame(ctx)
}

// resolveDynamicOptions maps a config's named dynamic-option variant to the built-in
// OptionSource it identifies, since YAML cannot encode the callable directly. This is
// independent of the ratings-contempt block, which analyzer.Analyzer always applies on
// top of whatever this returns.
func resolveDynamicOptions(name string) (analyzer.OptionSource, error) {
	switch name {
	case "":
		return nil, nil
	case "movetime_elo":
		tc, err := movetime.Parse("40/7200:1800+30")
		if err != nil {
			return nil, err
		}
		return analyzer.MovetimeEloOptions(tc), nil
	default:
		return nil, fmt.Errorf("unknown dynamic_options variant %q", name)
	}
}
