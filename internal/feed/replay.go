package feed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ernie/arena/internal/domain"
	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Open opens a host log for replay, decompressing rotated .gz files
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	br := bufio.NewReader(file)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("reading log header: %w", err)
	}
	if !bytes.Equal(head, gzipMagic) {
		return readCloser{Reader: br, closer: file}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	return readCloser{Reader: zr, closer: multiCloser{zr, file}}, nil
}

// Replay parses every event in r in order and hands it to handler. It
// returns the number of events delivered and skips malformed lines.
func Replay(r io.Reader, handler func(domain.HostEvent)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil || ev == nil {
			continue
		}
		handler(*ev)
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading log: %w", err)
	}
	return n, nil
}

// ReplayFile opens path with Open and replays it
func ReplayFile(path string, handler func(domain.HostEvent)) (int, error) {
	rc, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return Replay(rc, handler)
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
