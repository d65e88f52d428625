package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"city_router/pkg/catalog"
	"city_router/pkg/config"
	"city_router/pkg/logging"
	"city_router/pkg/routing"
)

func main() {
	network := flag.String("network", "", "Network file: snapshot, .hcl file or directory of .hcl files")
	from := flag.Int64("from", 0, "Source city id")
	to := flag.Int64("to", 0, "Destination city id (optional; prints the full table when unset)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	if *network == "" || !flagSet("from") {
		fmt.Fprintln(os.Stderr, "Usage: route --network <file|dir> --from <id> [--to <id>]")
		os.Exit(2)
	}

	ctx := context.Background()
	store := catalog.NewMemory()
	n, err := catalog.Seed(ctx, store, *network)
	if err != nil {
		logger.Error("failed to load network", "path", *network, "error", err)
		os.Exit(1)
	}
	logger.Debug("network loaded", "cities", n)

	engine := routing.NewEngine(store, logger)

	if flagSet("to") {
		dest, err := engine.Route(ctx, *from, *to)
		if errors.Is(err, routing.ErrNoRoute) {
			fmt.Printf("no route from %d to %d\n", *from, *to)
			os.Exit(1)
		}
		if err != nil {
			logger.Error("route failed", "error", err)
			os.Exit(1)
		}
		printTable(os.Stdout, []routing.Destination{*dest})
		return
	}

	table, err := engine.RoutesFrom(ctx, *from)
	if err != nil {
		logger.Error("route failed", "error", err)
		os.Exit(1)
	}
	printTable(os.Stdout, table.Destinations)
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printTable(w io.Writer, rows []routing.Destination) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDISTANCE\tPATH")
	for _, d := range rows {
		if !d.Reachable {
			fmt.Fprintf(tw, "%d\t%s\tunreachable\t-\n", d.ID, d.Name)
			continue
		}
		hops := make([]string, 0, len(d.Path)+1)
		for _, id := range d.Path {
			hops = append(hops, strconv.FormatInt(id, 10))
		}
		hops = append(hops, strconv.FormatInt(d.ID, 10))
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", d.ID, d.Name, d.Distance, strings.Join(hops, " > "))
	}
	tw.Flush()
}
