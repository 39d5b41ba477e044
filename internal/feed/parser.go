package feed

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
)

// Line formats written by the host plugin, each optionally prefixed by an
// ISO 8601 timestamp:
//
//	Join: <player>
//	Quit: <player>
//	Kill: <killer> <victim>: <message>
//	Death: <victim>: <message>
//	Kit: <player> <kit>
//	ShutdownGame:
var (
	timestampRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?)\s+`)

	joinRegex     = regexp.MustCompile(`^Join: ([0-9a-fA-F-]{36})$`)
	quitRegex     = regexp.MustCompile(`^Quit: ([0-9a-fA-F-]{36})$`)
	killRegex     = regexp.MustCompile(`^Kill: ([0-9a-fA-F-]{36}) ([0-9a-fA-F-]{36}): (.*)$`)
	deathRegex    = regexp.MustCompile(`^Death: ([0-9a-fA-F-]{36}): (.*)$`)
	kitRegex      = regexp.MustCompile(`^Kit: ([0-9a-fA-F-]{36}) (\S+)$`)
	shutdownRegex = regexp.MustCompile(`^ShutdownGame:`)
)

// ParseLine parses one log line. Lines that are not host events return
// nil without an error.
func ParseLine(line string) (*domain.HostEvent, error) {
	var timestamp time.Time
	content := strings.TrimSpace(line)

	if match := timestampRegex.FindStringSubmatch(content); match != nil {
		ts, err := time.Parse(time.RFC3339Nano, match[1])
		if err != nil {
			ts, err = time.ParseInLocation("2006-01-02T15:04:05", match[1], time.Local)
		}
		if err == nil {
			timestamp = ts.UTC()
			content = content[len(match[0]):]
		}
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	ev := &domain.HostEvent{Timestamp: timestamp}

	if match := joinRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.HostJoin
		return parsePlayer(ev, match[1])
	}

	if match := quitRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.HostQuit
		return parsePlayer(ev, match[1])
	}

	if match := killRegex.FindStringSubmatch(content); match != nil {
		killer, err := uuid.Parse(match[1])
		if err != nil {
			return nil, fmt.Errorf("parsing killer: %w", err)
		}
		ev.Type = domain.HostDeath
		ev.Killer = &killer
		ev.Message = match[3]
		return parsePlayer(ev, match[2])
	}

	if match := deathRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.HostDeath
		ev.Message = match[2]
		return parsePlayer(ev, match[1])
	}

	if match := kitRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.HostKit
		ev.Kit = match[2]
		return parsePlayer(ev, match[1])
	}

	if shutdownRegex.MatchString(content) {
		ev.Type = domain.HostShutdown
		return ev, nil
	}

	return nil, nil
}

func parsePlayer(ev *domain.HostEvent, s string) (*domain.HostEvent, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parsing player: %w", err)
	}
	ev.Player = id
	return ev, nil
}

// FormatLine renders an event in the log format ParseLine reads
func FormatLine(ev domain.HostEvent) string {
	ts := ev.Timestamp.UTC().Format(time.RFC3339)
	switch ev.Type {
	case domain.HostJoin:
		return fmt.Sprintf("%s Join: %s", ts, ev.Player)
	case domain.HostQuit:
		return fmt.Sprintf("%s Quit: %s", ts, ev.Player)
	case domain.HostDeath:
		if ev.Killer != nil {
			return fmt.Sprintf("%s Kill: %s %s: %s", ts, *ev.Killer, ev.Player, ev.Message)
		}
		return fmt.Sprintf("%s Death: %s: %s", ts, ev.Player, ev.Message)
	case domain.HostKit:
		return fmt.Sprintf("%s Kit: %s %s", ts, ev.Player, ev.Kit)
	case domain.HostShutdown:
		return fmt.Sprintf("%s ShutdownGame:", ts)
	}
	return ""
}
