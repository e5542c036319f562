package collector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ernie/altcheck/internal/storage"
)

// LinkRecorder is the write side of the link store
type LinkRecorder interface {
	RecordLink(ctx context.Context, account, address string) (bool, error)
}

// BackfillStats summarises one backfill run
type BackfillStats struct {
	Lines    int
	Events   int
	Inserted int
	Invalid  int
}

// Backfill records every connection in r as a link without raising
// alerts. Invalid links are counted and skipped; any other store error
// aborts the run.
func Backfill(ctx context.Context, store LinkRecorder, r io.Reader, format string) (BackfillStats, error) {
	var stats BackfillStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		stats.Lines++
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		event := ParseLine(scanner.Text(), format)
		if event == nil {
			continue
		}
		stats.Events++

		inserted, err := store.RecordLink(ctx, event.Account, event.Address)
		switch {
		case errors.Is(err, storage.ErrInvalidLink):
			stats.Invalid++
		case err != nil:
			return stats, fmt.Errorf("line %d: %w", stats.Lines, err)
		case inserted:
			stats.Inserted++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading log: %w", err)
	}
	return stats, nil
}
