package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lczero/broadcast-analyzer/pkg/catalog"
	"github.com/lczero/broadcast-analyzer/pkg/config"
	"github.com/lczero/broadcast-analyzer/pkg/store"
	"github.com/seekerror/logw"
)

func usage() {
	fmt.Fprint(os.Stderr, `usage: broadcast-admin <command> [options]

Commands:
  list-tournaments     List broadcast tournaments and their rounds, from the provider
  list-db-tournaments  List tournaments registered for automatic coverage
  list-boards          List live boards of a round (--round-id)
  add-tournament       Register a tournament for automatic coverage (--tour-id)

list-tournaments, list-boards and add-tournament accept --catalog-url;
add-tournament and list-db-tournaments accept --config.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx := context.Background()

	switch os.Args[1] {
	case "list-tournaments":
		runListTournaments(ctx, os.Args[2:])
	case "list-db-tournaments":
		runListDBTournaments(ctx, os.Args[2:])
	case "list-boards":
		runListBoards(ctx, os.Args[2:])
	case "add-tournament":
		runAddTournament(ctx, os.Args[2:])
	default:
		usage()
		logw.Exitf(ctx, "Unknown command %q", os.Args[1])
	}
}

func newCatalogFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, fs.String("catalog-url", "https://lichess.org/broadcast", "Base URL of the broadcast catalog")
}

func runListTournaments(ctx context.Context, args []string) {
	fs, catalogURL := newCatalogFlags("list-tournaments")
	fs.Parse(args)
	cat := catalog.New(*catalogURL, http.DefaultClient)

	tournaments, err := cat.ListTournaments(ctx)
	if err != nil {
		logw.Exitf(ctx, "List tournaments: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "ID\tNAME\tROUND ID\tROUND\tONGOING\tFINISHED\tSTARTS")
	for _, t := range tournaments {
		fmt.Fprintf(tw, "%v\t%v\t\t\t\t\t\n", t.Tour.ID, t.Tour.Name)
		for _, r := range t.Rounds {
			fmt.Fprintf(tw, "\t\t%v\t%v\t%v\t%v\t%v\n",
				r.ID, r.Name, r.Ongoing, r.Finished, time.UnixMilli(r.StartsAt).Format("2006-01-02 15:04:05"))
		}
	}
}

func runListDBTournaments(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("list-db-tournaments", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the service config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logw.Exitf(ctx, "Load config: %v", err)
	}
	st, err := store.Open(ctx, cfg.DBURL)
	if err != nil {
		logw.Exitf(ctx, "Open store: %v", err)
	}
	defer st.Close()

	tournaments, err := st.ListAllTournaments(ctx)
	if err != nil {
		logw.Exitf(ctx, "List tournaments: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "ID\tLICHESS ID\tNAME\tFINISHED\tHIDDEN")
	for _, t := range tournaments {
		fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\n", t.ID, t.LichessID, t.Name, t.IsFinished, t.IsHidden)
	}
}

func runListBoards(ctx context.Context, args []string) {
	fs, catalogURL := newCatalogFlags("list-boards")
	roundID := fs.String("round-id", "", "Round ID")
	fs.Parse(args)
	if *roundID == "" {
		logw.Exitf(ctx, "--round-id is required")
	}
	cat := catalog.New(*catalogURL, http.DefaultClient)

	rb, err := cat.GetRoundBoards(ctx, *roundID)
	if err != nil {
		logw.Exitf(ctx, "Get round boards: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "ID\tNAME\tPLAYER1\tPLAYER2\tSTATUS")
	for _, b := range rb.Games {
		p1, p2 := "", ""
		if len(b.Players) > 0 {
			p1 = b.Players[0].Name
		}
		if len(b.Players) > 1 {
			p2 = b.Players[1].Name
		}
		fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\n", b.ID, b.Name, p1, p2, b.Status)
	}
}

func runAddTournament(ctx context.Context, args []string) {
	fs, catalogURL := newCatalogFlags("add-tournament")
	tourID := fs.String("tour-id", "", "Lichess tournament ID")
	configPath := fs.String("config", "config.yaml", "Path to the service config file")
	fs.Parse(args)
	if *tourID == "" {
		logw.Exitf(ctx, "--tour-id is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logw.Exitf(ctx, "Load config: %v", err)
	}
	st, err := store.Open(ctx, cfg.DBURL)
	if err != nil {
		logw.Exitf(ctx, "Open store: %v", err)
	}
	defer st.Close()

	cat := catalog.New(*catalogURL, http.DefaultClient)
	t, err := cat.GetTournament(ctx, *tourID)
	if err != nil {
		logw.Exitf(ctx, "Get tournament: %v", err)
	}

	created, err := st.CreateTournament(ctx, t.Tour.ID, t.Tour.Name)
	if err != nil {
		logw.Exitf(ctx, "Create tournament: %v", err)
	}
	logw.Infof(ctx, "Added tournament %v (%v) as id %v", created.Name, created.LichessID, created.ID)
}
