// arena - elimination match orchestrator and tools
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ernie/arena/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

var version = "dev"

const defaultConfigPath = "/etc/arena/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "players":
		cmdPlayers(os.Args[2:])
	case "matches":
		cmdMatches(os.Args[2:])
	case "balance":
		cmdBalance(os.Args[2:])
	case "admin":
		cmdAdmin(os.Args[2:])
	case "replay":
		cmdReplay(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "version":
		fmt.Printf("arena %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: arena <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Run the match orchestrator")
	fmt.Println("  status                              Show the running match")
	fmt.Println("  players                             Show alive and eliminated players")
	fmt.Println("  matches [--recent N]                Show recent matches (default: 20)")
	fmt.Println("  balance <player-uuid>               Show a player's credits")
	fmt.Println("  admin [--user name] <action>        Run an operator override")
	fmt.Println("                                      actions: open, start, pvp, feast, border,")
	fmt.Println("                                      finalfight, end, next, cancel, state <phase>")
	fmt.Println("  replay [--events] <log>             Replay a host log (plain or .gz) offline")
	fmt.Println("  user add [--admin] [--player UUID] <username>")
	fmt.Println("                                      Add a user (prompts for password)")
	fmt.Println("  user remove <username>              Remove a user")
	fmt.Println("  user list                           List all users")
	fmt.Println("  user reset <username>               Reset a user's password")
	fmt.Println("  user admin <username>               Toggle admin status for a user")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/arena/config.yml)")
	fmt.Println("  --url <url>        Base URL of the arena server (default: derived from config)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  arena serve --config /etc/arena/config.yml")
	fmt.Println("  arena admin --user op feast")
	fmt.Println("  arena replay --events /var/log/arena/host.log.1.gz")
}

// newLogger builds the root logger. Console output on a terminal, JSON
// otherwise, unless the config names a format.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	console := term.IsTerminal(int(os.Stderr.Fd()))
	switch cfg.Format {
	case "console":
		console = true
	case "json":
		console = false
	}

	var logger zerolog.Logger
	if console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
