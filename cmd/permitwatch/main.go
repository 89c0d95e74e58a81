// CLAUDE:SUMMARY CLI entry point for permitwatch — W-1 permit ingestion daemon with one-shot pass, ingest, backfill and stats modes.
// Command permitwatch runs the W-1 permit ingestion pipeline.
//
// Usage:
//
//	permitwatch -config permitwatch.yaml            # run the daemon
//	permitwatch -ingest - -org org_a < payloads.ndjson
//	permitwatch -once -org org_a                    # one normalization pass
//	permitwatch -retry-errors -org org_a            # re-run rejected records
//	permitwatch -backfill -org org_a                # seed snapshot events
//	permitwatch -stats -org org_a                   # print org counters
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/permitwatch/audit"
	"github.com/hazyhaar/permitwatch/permits"
)

func main() {
	configPath := flag.String("config", "", "path to permitwatch.yaml config file")
	orgID := flag.String("org", "", "org to operate on (default: single-tenant org)")
	ingestPath := flag.String("ingest", "", "ingest NDJSON payloads from a file, '-' for stdin")
	once := flag.Bool("once", false, "run one normalization pass and exit")
	retryErrors := flag.Bool("retry-errors", false, "re-run records previously marked error and exit")
	backfill := flag.Bool("backfill", false, "emit snapshot events for permits without history and exit")
	stats := flag.Bool("stats", false, "print org counters and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *orgID, *ingestPath, *once, *retryErrors, *backfill, *stats); err != nil {
		logger.Error("permitwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, orgID, ingestPath string,
	once, retryErrors, backfill, stats bool) error {

	var cfg *permits.Config
	if configPath != "" {
		var err error
		cfg, err = permits.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}

	db, err := permits.OpenDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	auditor := audit.NewSQLiteLogger(db)
	if err := auditor.Init(); err != nil {
		return err
	}
	defer auditor.Close()

	svc, err := permits.New(db, cfg, logger, permits.WithAudit(auditor))
	if err != nil {
		return err
	}
	defer svc.Close()

	switch {
	case ingestPath != "":
		return runIngest(ctx, svc, orgID, ingestPath)
	case once:
		return printSummary(svc.ProcessNew(ctx, orgID, 0))
	case retryErrors:
		return printSummary(svc.ProcessErrored(ctx, orgID, 0))
	case backfill:
		n, err := svc.BackfillSnapshots(ctx, orgID)
		if err != nil {
			return err
		}
		fmt.Printf("backfilled %d snapshot events\n", n)
		return nil
	case stats:
		s, err := svc.Stats(ctx, orgID)
		if err != nil {
			return err
		}
		return printJSON(s)
	}

	// Daemon mode: background passes until signalled.
	svc.Start(ctx)
	logger.Info("permitwatch: running", "config", configPath)
	<-ctx.Done()
	return nil
}

// runIngest reads newline-delimited JSON payloads and stores each as a
// raw record. Duplicates are counted, not errors.
func runIngest(ctx context.Context, svc *permits.Service, orgID, path string) error {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var ingested, duplicates int
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var payload map[string]string
		if err := json.Unmarshal(line, &payload); err != nil {
			return fmt.Errorf("ingest line %d: %w", ingested+duplicates+1, err)
		}
		_, isNew, err := svc.IngestRaw(ctx, orgID, payload, "")
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		if isNew {
			ingested++
		} else {
			duplicates++
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Printf("ingested %d payloads, %d duplicates\n", ingested, duplicates)
	return nil
}

func printSummary(sum *permits.BatchSummary, err error) error {
	if err != nil {
		return err
	}
	return printJSON(sum)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))
	return nil
}
