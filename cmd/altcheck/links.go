package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ernie/altcheck/internal/alts"
	"github.com/ernie/altcheck/internal/collector"
	"github.com/ernie/altcheck/internal/domain"
	"github.com/ernie/altcheck/internal/logger"
	"github.com/ernie/altcheck/internal/storage"
	"github.com/klauspost/compress/zstd"
	flag "github.com/spf13/pflag"
)

// cmdAlts prints the full cluster around a seed
func cmdAlts(args []string) {
	cfg, remaining := loadConfig("alts", args, nil)
	seed, err := seedArg(remaining)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	cluster, err := alts.NewQueryService(store, logger.Nop()).Query(ctx, seed)
	if errors.Is(err, alts.ErrEmptySeed) {
		fatalf("seed must not be empty")
	}
	for _, line := range cluster.Lines() {
		fmt.Println(line)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: lookup incomplete, results above are partial: %v\n", err)
		os.Exit(1)
	}
}

// seedArg returns the single seed argument of alts
func seedArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: altcheck alts <account|ip>")
	}
	return args[0], nil
}

// connectArgs returns the account and address arguments of connect
func connectArgs(args []string) (account, address string, err error) {
	if len(args) != 2 {
		return "", "", errors.New("usage: altcheck connect [--source S] <account> <ip>")
	}
	return args[0], args[1], nil
}

// cmdConnect records one connection and reports the alts seen on its
// address, publishing an alert to any configured external notifier
func cmdConnect(args []string) {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	source := fs.String("source", "cli", "source name recorded on the alert")
	cfg, remaining := loadConfig("connect", args, fs)
	account, address, err := connectArgs(remaining)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	log := logger.Nop()
	notifier, closeNotifiers, err := buildNotifier(ctx, cfg, log, nil)
	if err != nil {
		fatalf("failed to initialize notifier: %v", err)
	}
	defer closeNotifiers()

	join := alts.NewJoinHandler(store, log, cfg.Notify.Prefix)
	alert, err := join.HandleConnect(ctx, *source, account, address)
	if err != nil {
		fatalf("%v", err)
	}
	if alert == nil {
		fmt.Printf("No other accounts seen on %s\n", address)
		return
	}

	fmt.Println(alert.Message())
	if err := notifier.Notify(ctx, *alert); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to publish alert: %v\n", err)
	}
}

// cmdBackfill records links from an existing proxy log without alerting
func cmdBackfill(args []string) {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	format := fs.String("format", collector.FormatAuto, "log format: auto, velocity, bungee or plain")
	cfg, remaining := loadConfig("backfill", args, fs)
	if len(remaining) < 1 {
		fatalf("usage: altcheck backfill [--format F] <logfile>")
	}
	if !collector.ValidFormat(*format) {
		fatalf("unknown log format %q", *format)
	}

	f, err := os.Open(remaining[0])
	if err != nil {
		fatalf("%v", err)
	}
	defer f.Close()

	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	stats, err := collector.Backfill(ctx, store, f, *format)
	fmt.Printf("Read %d lines, %d connections, %d new links, %d invalid\n", stats.Lines, stats.Events, stats.Inserted, stats.Invalid)
	if err != nil {
		fatalf("backfill stopped: %v", err)
	}
}

// cmdExport writes every link as zstd-compressed JSON lines
func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "-", "output file (- for stdout)")
	cfg, _ := loadConfig("export", args, fs)

	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	w := io.Writer(os.Stdout)
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		w = f
	}

	n, err := exportLinks(ctx, store, w)
	if err != nil {
		fatalf("export failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d links\n", n)
}

// cmdImport loads links written by export
func cmdImport(args []string) {
	cfg, remaining := loadConfig("import", args, nil)
	if len(remaining) < 1 {
		fatalf("usage: altcheck import <file|->")
	}

	r := io.Reader(os.Stdin)
	if remaining[0] != "-" {
		f, err := os.Open(remaining[0])
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		r = f
	}

	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	stats, err := importLinks(ctx, store, r)
	fmt.Printf("Read %d links, %d new, %d invalid\n", stats.Read, stats.Inserted, stats.Invalid)
	if err != nil {
		fatalf("import stopped: %v", err)
	}
}

type linkSource interface {
	EachLink(ctx context.Context, fn func(domain.Link) error) error
}

func exportLinks(ctx context.Context, store linkSource, w io.Writer) (int, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(zw)

	n := 0
	err = store.EachLink(ctx, func(l domain.Link) error {
		n++
		return enc.Encode(l)
	})
	if err != nil {
		zw.Close()
		return n, err
	}
	return n, zw.Close()
}

type importStats struct {
	Read     int
	Inserted int
	Invalid  int
}

func importLinks(ctx context.Context, store collector.LinkRecorder, r io.Reader) (importStats, error) {
	var stats importStats

	zr, err := zstd.NewReader(r)
	if err != nil {
		return stats, err
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	for {
		var l domain.Link
		if err := dec.Decode(&l); err == io.EOF {
			return stats, nil
		} else if err != nil {
			return stats, fmt.Errorf("link %d: %w", stats.Read+1, err)
		}
		stats.Read++

		inserted, err := store.RecordLink(ctx, l.Account, l.Address)
		switch {
		case errors.Is(err, storage.ErrInvalidLink):
			stats.Invalid++
		case err != nil:
			return stats, err
		case inserted:
			stats.Inserted++
		}
	}
}
