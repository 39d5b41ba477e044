package feed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ernie/arena/internal/domain"
)

// Tailer follows a live host log and parses new lines into events
type Tailer struct {
	path     string
	interval time.Duration
	file     *os.File
	position int64
	Events   chan domain.HostEvent
	Errors   chan error
	done     chan struct{}
	stop     sync.Once
}

// NewTailer creates a tailer polling path every interval
func NewTailer(path string, interval time.Duration) *Tailer {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Tailer{
		path:     path,
		interval: interval,
		Events:   make(chan domain.HostEvent, 100),
		Errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}
}

// Start begins tailing from the current end of the file
func (t *Tailer) Start() error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	t.file = file

	pos, err := t.file.Seek(0, io.SeekEnd)
	if err != nil {
		t.file.Close()
		return fmt.Errorf("seeking to end: %w", err)
	}
	t.position = pos

	go t.tailLoop()
	return nil
}

// Stop stops the tailer. Safe to call more than once.
func (t *Tailer) Stop() {
	t.stop.Do(func() { close(t.done) })
}

// report hands err to Errors without blocking the read loop
func (t *Tailer) report(err error) {
	select {
	case t.Errors <- err:
	default:
	}
}

func (t *Tailer) tailLoop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer t.file.Close()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.readNewContent(); err != nil {
				t.report(err)
			}
		}
	}
}

func (t *Tailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	// copytruncate
	if stat.Size() < t.position {
		t.position = 0
	}
	if stat.Size() == t.position {
		return nil
	}

	if _, err := t.file.Seek(t.position, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to %d: %w", t.position, err)
	}
	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// partial line, read it again next time
			break
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}
		t.position += int64(len(line))

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			t.report(fmt.Errorf("line %q: %w", line, err))
			continue
		}
		if ev == nil {
			continue
		}
		select {
		case t.Events <- *ev:
		case <-t.done:
			return nil
		}
	}
	return nil
}
