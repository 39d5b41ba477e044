package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ernie/arena/internal/domain"
)

const maxDatagram = 65535

// Listener receives host event lines over UDP. Each datagram carries one
// or more lines in the host log format.
type Listener struct {
	conn *net.UDPConn
}

// ListenUDP binds a listener to addr ("host:port")
func ListenUDP(addr string) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &Listener{conn: conn}, nil
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve reads datagrams until ctx is done or the listener is closed.
// Unparseable lines go to onError when it is non-nil.
func (l *Listener) Serve(ctx context.Context, handler func(domain.HostEvent), onError func(error)) error {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading datagram: %w", err)
		}

		for _, line := range strings.Split(string(buf[:n]), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			ev, err := ParseLine(line)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if ev != nil {
				handler(*ev)
			}
		}
	}
}

// Close stops the listener
func (l *Listener) Close() error {
	return l.conn.Close()
}

// SendUDP writes events to addr as one datagram
func SendUDP(addr string, events ...domain.HostEvent) error {
	conn, err := net.DialTimeout("udp", addr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = FormatLine(ev)
	}
	if _, err := conn.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		return fmt.Errorf("sending events: %w", err)
	}
	return nil
}
