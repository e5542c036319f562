// Package collector turns proxy log files into connection events and
// feeds them through the alt check.
package collector

import (
	"context"
	"errors"
	"sync"

	"github.com/ernie/altcheck/internal/config"
	"github.com/ernie/altcheck/internal/domain"
	"github.com/ernie/altcheck/internal/logger"
	"github.com/ernie/altcheck/internal/notify"
	"github.com/ernie/altcheck/internal/storage"
)

// ErrNoSources is returned by Start when sources are configured but none
// of their logs could be opened
var ErrNoSources = errors.New("no proxy log could be opened")

// ConnectHandler runs the join path for one connection
type ConnectHandler interface {
	HandleConnect(ctx context.Context, source, account, address string) (*domain.Alert, error)
}

// Collector tails every configured source and alerts on shared addresses
type Collector struct {
	sources  []config.Source
	handler  ConnectHandler
	recorder LinkRecorder
	notifier notify.Notifier
	log      *logger.Logger

	mu      sync.Mutex
	tailers []*LogTailer
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a collector. recorder receives replayed history and may be
// nil when no source replays. notifier may be nil when alerts are only logged.
func New(sources []config.Source, handler ConnectHandler, recorder LinkRecorder, notifier notify.Notifier, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{
		sources:  sources,
		handler:  handler,
		recorder: recorder,
		notifier: notifier,
		log:      log.With("component", "collector"),
		done:     make(chan struct{}),
	}
}

// Start begins tailing each source from its current end, or from the
// start of the file for sources with Replay set. A source whose file
// cannot be opened is logged and skipped; ErrNoSources is returned when
// every configured source was skipped.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, src := range c.sources {
		tailer := NewLogTailer(src.LogPath, src.Format)
		if src.Replay {
			c.replay(ctx, src, tailer)
		}
		if err := tailer.Start(); err != nil {
			c.log.Warn("Failed to start log tailer", "source", src.Name, "path", src.LogPath, "error", err)
			continue
		}
		c.log.Info("Watching proxy log", "source", src.Name, "path", src.LogPath, "format", src.Format)
		c.tailers = append(c.tailers, tailer)
		c.wg.Add(1)
		go c.process(ctx, src.Name, tailer)
	}
	if len(c.sources) > 0 && len(c.tailers) == 0 {
		return ErrNoSources
	}
	return nil
}

// replay records the links already in a source's log without alerting.
// The tailer then continues from the last complete line.
func (c *Collector) replay(ctx context.Context, src config.Source, tailer *LogTailer) {
	if c.recorder == nil {
		c.log.Warn("Replay requested but no link store is attached", "source", src.Name)
		return
	}

	var events, inserted, invalid, failed int
	var lastErr error
	err := tailer.Replay(func(ev ConnectEvent) {
		events++
		ok, err := c.recorder.RecordLink(ctx, ev.Account, ev.Address)
		switch {
		case errors.Is(err, storage.ErrInvalidLink):
			invalid++
		case err != nil:
			failed++
			lastErr = err
		case ok:
			inserted++
		}
	})
	if err != nil {
		c.log.Warn("Failed to replay proxy log", "source", src.Name, "path", src.LogPath, "error", err)
		return
	}
	if failed > 0 {
		c.log.Error("Some replayed connections were not recorded", "source", src.Name, "failed", failed, "error", lastErr)
	}
	c.log.Info("Replayed proxy log", "source", src.Name, "events", events, "inserted", inserted, "invalid", invalid)
}

// Stop stops all tailers and waits for in-flight events to finish
func (c *Collector) Stop() {
	c.mu.Lock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	for _, t := range c.tailers {
		t.Stop()
	}
	c.mu.Unlock()
	c.wg.Wait()
	c.log.Info("Collector stopped")
}

// Watching returns the number of sources being tailed
func (c *Collector) Watching() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tailers)
}

func (c *Collector) process(ctx context.Context, source string, tailer *LogTailer) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case err := <-tailer.Errors:
			c.log.Warn("Log tailer error", "source", source, "error", err)
		case event := <-tailer.Events:
			c.Handle(ctx, source, event)
		}
	}
}

// Handle runs one connection event through the join path and delivers
// any resulting alert. Failures are logged, never returned.
func (c *Collector) Handle(ctx context.Context, source string, event ConnectEvent) {
	alert, err := c.handler.HandleConnect(ctx, source, event.Account, event.Address)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidLink) {
			c.log.Debug("Ignoring invalid connection", "source", source, "account", event.Account, "ip", event.Address)
			return
		}
		c.log.Error("Alt check failed", "source", source, "account", event.Account, "ip", event.Address, "error", err)
		return
	}
	if alert == nil || c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, *alert); err != nil {
		c.log.Warn("Failed to deliver alert", "alert", alert.ID, "account", alert.Account, "error", err)
	}
}
