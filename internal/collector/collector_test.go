package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ernie/altcheck/internal/alts"
	"github.com/ernie/altcheck/internal/config"
	"github.com/ernie/altcheck/internal/domain"
	"github.com/ernie/altcheck/internal/notify"
	"github.com/ernie/altcheck/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		format  string
		account string
		address string
		parsed  string
	}{
		{"velocity", "[12:00:00 INFO]: [connected player] Steve (/1.2.3.4:5678) has connected", FormatVelocity, "Steve", "1.2.3.4", FormatVelocity},
		{"velocity auto", "[12:00:00 INFO]: [connected player] Steve (/1.2.3.4:5678) has connected", FormatAuto, "Steve", "1.2.3.4", FormatVelocity},
		{"velocity bracketed v6", "[connected player] Alex (/[2001:db8::7]:40000) has connected", FormatAuto, "Alex", "2001:db8::7", FormatVelocity},
		{"velocity jvm v6", "[connected player] Alex (/0:0:0:0:0:0:0:1:40000) has connected", FormatAuto, "Alex", "0:0:0:0:0:0:0:1", FormatVelocity},
		{"bungee", "[12:00:00 INFO]: [Notch|/10.1.2.3:51234] <-> InitialHandler has connected", FormatBungee, "Notch", "10.1.2.3", FormatBungee},
		{"bungee auto", "[Notch|/10.1.2.3:51234] <-> InitialHandler has connected", "", "Notch", "10.1.2.3", FormatBungee},
		{"plain", "connect some.name 192.0.2.4", FormatPlain, "some.name", "192.0.2.4", FormatPlain},
		{"plain auto v6", "connect Ghost 2001:db8::1", FormatAuto, "Ghost", "2001:db8::1", FormatPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ParseLine(tt.line, tt.format)
			require.NotNil(t, ev)
			assert.Equal(t, tt.account, ev.Account)
			assert.Equal(t, tt.address, ev.Address)
			assert.Equal(t, tt.parsed, ev.Format)
			assert.False(t, ev.Timestamp.IsZero())
		})
	}
}

func TestParseLine_Ignored(t *testing.T) {
	lines := []struct {
		line   string
		format string
	}{
		{"", FormatAuto},
		{"[12:00:00 INFO]: [server connection] Steve -> lobby has connected", FormatAuto},
		{"[connected player] Steve (/not-an-ip:5678) has connected", FormatAuto},
		{"connect Steve", FormatAuto},
		{"[Notch|/10.1.2.3:51234] <-> InitialHandler has connected", FormatVelocity},
		{"connect Steve 10.0.0.1", "xml"},
	}
	for _, l := range lines {
		assert.Nil(t, ParseLine(l.line, l.format), "line %q", l.line)
	}
}

func TestParseLine_Timestamp(t *testing.T) {
	ev := ParseLine("2026-01-12T10:58:23Z connect Steve 10.0.0.1", FormatPlain)
	require.NotNil(t, ev)
	assert.Equal(t, time.Date(2026, 1, 12, 10, 58, 23, 0, time.UTC), ev.Timestamp.UTC())
	assert.Equal(t, "Steve", ev.Account)
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{FormatAuto, FormatVelocity, FormatBungee, FormatPlain} {
		assert.True(t, ValidFormat(f), f)
	}
	assert.False(t, ValidFormat("xml"))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func nextEvent(t *testing.T, tailer *LogTailer) ConnectEvent {
	t.Helper()
	select {
	case ev := <-tailer.Events:
		return ev
	case err := <-tailer.Errors:
		t.Fatalf("tailer error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ConnectEvent{}
}

func TestLogTailer_FollowsAppendsAndTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.log")
	require.NoError(t, os.WriteFile(path, []byte("connect Old 10.0.0.9\n"), 0644))

	tailer := NewLogTailer(path, FormatAuto)
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	appendFile(t, path, "noise line\nconnect New 10.0.0.1\n")
	ev := nextEvent(t, tailer)
	assert.Equal(t, "New", ev.Account)

	// A partial line is not consumed until it is complete
	appendFile(t, path, "connect Part")
	select {
	case ev := <-tailer.Events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(3 * pollInterval):
	}
	appendFile(t, path, " 10.0.0.2\n")
	ev = nextEvent(t, tailer)
	assert.Equal(t, "Part", ev.Account)
	assert.Equal(t, "10.0.0.2", ev.Address)

	// copytruncate
	require.NoError(t, os.WriteFile(path, []byte("connect T 10.0.0.3\n"), 0644))
	ev = nextEvent(t, tailer)
	assert.Equal(t, "T", ev.Account)
}

func TestLogTailer_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.log")
	content := "connect A 10.0.0.1\nconnect B 10.0.0.1\nconnect C 10.0"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tailer := NewLogTailer(path, FormatPlain)
	var got []string
	require.NoError(t, tailer.Replay(func(ev ConnectEvent) { got = append(got, ev.Account) }))
	assert.Equal(t, []string{"A", "B"}, got)

	require.NoError(t, tailer.Start())
	defer tailer.Stop()
	appendFile(t, path, ".0.2\n")
	ev := nextEvent(t, tailer)
	assert.Equal(t, "C", ev.Account)
	assert.Equal(t, "10.0.0.2", ev.Address)
}

func TestLogTailer_MissingFile(t *testing.T) {
	tailer := NewLogTailer(filepath.Join(t.TempDir(), "missing.log"), FormatAuto)
	assert.Error(t, tailer.Start())
}

type fakeHandler struct {
	alert *domain.Alert
	err   error
	calls []string
}

func (f *fakeHandler) HandleConnect(_ context.Context, source, account, address string) (*domain.Alert, error) {
	f.calls = append(f.calls, source+":"+account+"@"+address)
	return f.alert, f.err
}

func TestCollector_Handle(t *testing.T) {
	var delivered []domain.Alert
	sink := notify.Func(func(_ context.Context, a domain.Alert) error {
		delivered = append(delivered, a)
		return nil
	})
	ev := ConnectEvent{Account: "Alt", Address: "10.0.0.1"}

	quiet := &fakeHandler{}
	New(nil, quiet, nil, sink, nil).Handle(context.Background(), "lobby", ev)
	assert.Equal(t, []string{"lobby:Alt@10.0.0.1"}, quiet.calls)
	assert.Empty(t, delivered)

	failing := &fakeHandler{err: storage.ErrStorageUnavailable}
	New(nil, failing, nil, sink, nil).Handle(context.Background(), "lobby", ev)
	assert.Empty(t, delivered)

	loud := &fakeHandler{alert: &domain.Alert{ID: "x", Account: "Alt", Alts: []string{"Main"}}}
	New(nil, loud, nil, sink, nil).Handle(context.Background(), "lobby", ev)
	require.Len(t, delivered, 1)
	assert.Equal(t, "x", delivered[0].ID)

	// Delivery failure is logged, not fatal
	broken := notify.Func(func(context.Context, domain.Alert) error { return errors.New("down") })
	New(nil, loud, nil, broken, nil).Handle(context.Background(), "lobby", ev)
	New(nil, loud, nil, nil, nil).Handle(context.Background(), "lobby", ev)
}

func TestCollector_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "links.db"))
	require.NoError(t, err)
	defer store.Close()

	path := filepath.Join(dir, "velocity.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	var mu sync.Mutex
	var delivered []domain.Alert
	sink := notify.Func(func(_ context.Context, a domain.Alert) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, a)
		return nil
	})

	sources := []config.Source{
		{Name: "velocity", LogPath: path, Format: FormatVelocity},
		{Name: "gone", LogPath: filepath.Join(dir, "missing.log"), Format: FormatAuto},
	}
	c := New(sources, alts.NewJoinHandler(store, nil, ""), store, sink, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	assert.Equal(t, 1, c.Watching())

	appendFile(t, path, strings.Join([]string{
		"[12:00:00 INFO]: [connected player] Main (/10.0.0.1:5000) has connected",
		"[12:00:01 INFO]: [connected player] Alt (/10.0.0.1:5001) has connected",
		"",
	}, "\n"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	alert := delivered[0]
	mu.Unlock()
	assert.Equal(t, "velocity", alert.Source)
	assert.Equal(t, "Alt", alert.Account)
	assert.Equal(t, []string{"Main"}, alert.Alts)
}

func TestCollector_ReplaysHistoryOnStart(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "links.db"))
	require.NoError(t, err)
	defer store.Close()

	history := strings.Join([]string{
		"connect Main 10.0.0.1",
		"connect Alt 10.0.0.1",
		"connect Other 10.0.0.2",
		"connect " + strings.Repeat("x", 40) + " 10.0.0.1",
		"",
	}, "\n")
	replayed := filepath.Join(dir, "replayed.log")
	require.NoError(t, os.WriteFile(replayed, []byte(history), 0644))
	skipped := filepath.Join(dir, "skipped.log")
	require.NoError(t, os.WriteFile(skipped, []byte("connect Ghost 10.0.0.9\n"), 0644))

	var mu sync.Mutex
	var delivered []domain.Alert
	sink := notify.Func(func(_ context.Context, a domain.Alert) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, a)
		return nil
	})

	sources := []config.Source{
		{Name: "replayed", LogPath: replayed, Format: FormatPlain, Replay: true},
		{Name: "skipped", LogPath: skipped, Format: FormatPlain},
	}
	c := New(sources, alts.NewJoinHandler(store, nil, ""), store, sink, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	assert.Equal(t, 2, c.Watching())

	accounts, err := store.AccountsForAddress(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alt", "Main"}, accounts)
	accounts, err = store.AccountsForAddress(context.Background(), "10.0.0.9")
	require.NoError(t, err)
	assert.Empty(t, accounts, "sources without replay start at the end")

	mu.Lock()
	assert.Empty(t, delivered, "history is recorded without alerts")
	mu.Unlock()

	// tailing picks up right after the replayed lines
	appendFile(t, replayed, "connect Third 10.0.0.1\n")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Third", delivered[0].Account)
	assert.Equal(t, []string{"Alt", "Main"}, delivered[0].Alts)
}

func TestCollector_StartFailsWhenNoSourceOpens(t *testing.T) {
	dir := t.TempDir()
	sources := []config.Source{
		{Name: "a", LogPath: filepath.Join(dir, "a.log"), Format: FormatAuto, Replay: true},
		{Name: "b", LogPath: filepath.Join(dir, "b.log"), Format: FormatAuto},
	}
	c := New(sources, &fakeHandler{}, nil, nil, nil)
	assert.ErrorIs(t, c.Start(context.Background()), ErrNoSources)
	assert.Equal(t, 0, c.Watching())
	c.Stop()

	empty := New(nil, &fakeHandler{}, nil, nil, nil)
	assert.NoError(t, empty.Start(context.Background()))
	empty.Stop()
}

func TestBackfill(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "links.db"))
	require.NoError(t, err)
	defer store.Close()

	log := strings.Join([]string{
		"[12:00:00 INFO]: [connected player] A (/10.0.0.1:5000) has connected",
		"[12:00:01 INFO]: some other line",
		"[12:00:02 INFO]: [connected player] B (/10.0.0.1:5001) has connected",
		"[12:00:03 INFO]: [connected player] A (/10.0.0.1:5002) has connected",
		"[12:00:04 INFO]: [connected player] " + strings.Repeat("x", 40) + " (/10.0.0.1:5003) has connected",
	}, "\n")

	stats, err := Backfill(context.Background(), store, strings.NewReader(log), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, BackfillStats{Lines: 5, Events: 4, Inserted: 2, Invalid: 1}, stats)

	accounts, err := store.AccountsForAddress(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, accounts)
}

type failingRecorder struct{}

func (failingRecorder) RecordLink(context.Context, string, string) (bool, error) {
	return false, storage.ErrStorageUnavailable
}

func TestBackfill_StoreFailureAborts(t *testing.T) {
	stats, err := Backfill(context.Background(), failingRecorder{}, strings.NewReader("connect A 10.0.0.1\nconnect B 10.0.0.1\n"), FormatPlain)
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
	assert.Equal(t, 1, stats.Events)
}
