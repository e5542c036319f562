package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const pollInterval = 100 * time.Millisecond

// LogTailer watches a proxy log file and parses connection events
type LogTailer struct {
	path     string
	format   string
	file     *os.File
	position int64
	Events   chan ConnectEvent
	Errors   chan error
	done     chan struct{}
	stopOnce sync.Once
}

// NewLogTailer creates a new log tailer for a file in the given format
func NewLogTailer(path, format string) *LogTailer {
	return &LogTailer{
		path:   path,
		format: format,
		Events: make(chan ConnectEvent, 100),
		Errors: make(chan error, 10),
		done:   make(chan struct{}),
	}
}

// OpenFile opens the log file for reading from the start
func (t *LogTailer) OpenFile() error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	t.file = file
	return nil
}

// Start begins tailing the log file. Without a prior Replay it starts at
// the current end of the file.
func (t *LogTailer) Start() error {
	if t.file == nil {
		if err := t.OpenFile(); err != nil {
			return err
		}
		pos, err := t.file.Seek(0, io.SeekEnd)
		if err != nil {
			t.file.Close()
			return fmt.Errorf("seeking to end: %w", err)
		}
		t.position = pos
	}

	go t.tailLoop()
	return nil
}

// Replay reads the file from the current position to the last complete
// line and calls handler for each event, synchronously.
func (t *LogTailer) Replay(handler func(ConnectEvent)) error {
	if t.file == nil {
		if err := t.OpenFile(); err != nil {
			return err
		}
	}
	return t.readLines(handler)
}

// Stop stops the tailer; it is safe to call more than once
func (t *LogTailer) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *LogTailer) tailLoop() {
	ticker := time.NewTicker(pollInterval)
	defer func() {
		ticker.Stop()
		t.file.Close()
	}()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.readNewContent(); err != nil {
				select {
				case t.Errors <- err:
				default:
				}
			}
		}
	}
}

// readNewContent reads any new content since last read
func (t *LogTailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	// copytruncate: file shrank below our position
	if stat.Size() < t.position {
		t.position = 0
	}
	if stat.Size() == t.position {
		return nil
	}

	return t.readLines(func(event ConnectEvent) {
		select {
		case t.Events <- event:
		case <-t.done:
		}
	})
}

// readLines parses complete lines from t.position onwards. A trailing
// partial line is left for the next read.
func (t *LogTailer) readLines(handler func(ConnectEvent)) error {
	if _, err := t.file.Seek(t.position, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to %d: %w", t.position, err)
	}

	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}
		t.position += int64(len(line))

		if event := ParseLine(line, t.format); event != nil {
			handler(*event)
		}
	}
	return nil
}
