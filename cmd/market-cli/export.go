package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"marketledger/indexer"
)

// runExportEvents dumps the event journal to parquet straight from the
// indexer database, without going through the daemon.
func runExportEvents(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export-events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var dsn, out, eventType, subject string
	var after uint64
	fs.StringVar(&dsn, "dsn", "", "indexer database (sqlite path or postgres:// DSN)")
	fs.StringVar(&out, "out", "", "parquet file to write")
	fs.StringVar(&eventType, "type", "", "only export this event type")
	fs.StringVar(&subject, "subject", "", "only export events about this address")
	fs.Uint64Var(&after, "after", 0, "only export events with a larger journal id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(dsn) == "" || strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --dsn and --out are required")
		return 1
	}

	db, err := indexer.Open(dsn)
	if err != nil {
		fmt.Fprintf(stderr, "Error: open indexer: %v\n", err)
		return 1
	}
	ix, err := indexer.New(db, slog.New(slog.NewTextHandler(stderr, nil)))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer ix.Close()

	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(stderr, "Error: create %s: %v\n", out, err)
		return 1
	}
	n, err := ix.ExportParquet(context.Background(), f, indexer.Filter{Type: eventType, Subject: subject, AfterID: after})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: export: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Exported %d events to %s\n", n, out)
	return 0
}
