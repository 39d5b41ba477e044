package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ernie/arena/internal/config"
	"github.com/ernie/arena/internal/domain"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	baseURL = "http://127.0.0.1:8080"
	dbPath  = "/var/lib/arena/arena.db"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// cliFlags registers the flags every client command shares
func cliFlags(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the arena server")
	return fs, configPath, url
}

func loadCLIConfigFromFlags(configPath, url string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", configPath, err)
		if url != "" {
			baseURL = url
		}
		return nil
	}

	dbPath = cfg.Database.Path
	switch {
	case url != "":
		baseURL = url
	case cfg.Server.ListenAddr == "" || cfg.Server.ListenAddr == "0.0.0.0":
		baseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.HTTPPort)
	default:
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	return cfg
}

func cmdStatus(args []string) {
	fs, configPath, url := cliFlags("status")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *url)

	var st domain.MatchStatus
	if err := getJSON("/api/match", &st); err != nil {
		fatal("%v", err)
	}

	if !st.Running {
		fmt.Println("No match running")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if st.Session != nil {
		fmt.Fprintf(w, "Match:\t#%d\n", st.Session.ID)
		if st.Session.StartedAt != nil {
			fmt.Fprintf(w, "Started:\t%s\n", st.Session.StartedAt.Local().Format("15:04:05"))
		}
	}
	fmt.Fprintf(w, "Phase:\t%s\n", st.Phase.DisplayName())
	fmt.Fprintf(w, "Players:\t%d alive, %d eliminated, %d parties\n", len(st.Alive), len(st.Dead), len(st.Parties))
	if st.WaitRemaining > 0 {
		fmt.Fprintf(w, "Starts in:\t%ds\n", st.WaitRemaining)
	}
	fmt.Fprintf(w, "PvP:\t%s\n", onOff(st.PvpEnabled))
	feast := onOff(st.FeastSpawned)
	if st.FeastLocation != nil {
		feast = fmt.Sprintf("%s at %.0f, %.0f, %.0f", feast, st.FeastLocation.X, st.FeastLocation.Y, st.FeastLocation.Z)
	}
	fmt.Fprintf(w, "Feast:\t%s\n", feast)
	border := fmt.Sprintf("%.0f", st.BorderRadius)
	if st.BorderShrinking {
		border += " (shrinking)"
	}
	fmt.Fprintf(w, "Border:\t%s\n", border)
	if st.EscalationLevel > 0 {
		fmt.Fprintf(w, "Final fight:\tlevel %d\n", st.EscalationLevel)
	}
	w.Flush()
}

func cmdPlayers(args []string) {
	fs, configPath, url := cliFlags("players")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *url)

	var resp struct {
		Alive   []string       `json:"alive"`
		Dead    []string       `json:"dead"`
		Parties []domain.Party `json:"parties"`
	}
	if err := getJSON("/api/match/players", &resp); err != nil {
		fatal("%v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYER\tSTATE")
	fmt.Fprintln(w, "------\t-----")
	for _, id := range resp.Alive {
		fmt.Fprintf(w, "%s\talive\n", id)
	}
	for _, id := range resp.Dead {
		fmt.Fprintf(w, "%s\teliminated\n", id)
	}
	w.Flush()
}

func cmdMatches(args []string) {
	fs, configPath, url := cliFlags("matches")
	limit := fs.Int("recent", 20, "number of recent matches to show")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *url)

	var matches []domain.MatchRecord
	if err := getJSON(fmt.Sprintf("/api/matches?limit=%d", *limit), &matches); err != nil {
		fatal("%v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tENDED\tPARTIES\tELIMINATIONS\tWINNER")
	fmt.Fprintln(w, "--\t-------\t-----\t-------\t------------\t------")
	for _, m := range matches {
		started := "-"
		if m.StartedAt != nil {
			started = m.StartedAt.Local().Format("2006-01-02 15:04")
		}
		ended := "In Progress"
		if m.EndedAt != nil {
			ended = m.EndedAt.Local().Format("15:04")
		}
		winner := "-"
		if m.Winner != nil {
			winner = m.Winner.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n", m.ID, started, ended, m.Parties, m.Eliminations, winner)
	}
	w.Flush()
}

func cmdBalance(args []string) {
	fs, configPath, url := cliFlags("balance")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *url)

	if fs.NArg() < 1 {
		fatal("usage: arena balance <player-uuid>")
	}

	var resp struct {
		Balance int64 `json:"balance"`
		History []struct {
			Amount    int64     `json:"amount"`
			Balance   int64     `json:"balance"`
			Reason    string    `json:"reason"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"history"`
	}
	if err := getJSON("/api/players/"+fs.Arg(0)+"/credits", &resp); err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Balance: %d credits\n", resp.Balance)
	if len(resp.History) == 0 {
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tAMOUNT\tBALANCE\tREASON")
	fmt.Fprintln(w, "----\t------\t-------\t------")
	for _, tx := range resp.History {
		fmt.Fprintf(w, "%s\t%+d\t%d\t%s\n", tx.CreatedAt.Local().Format("01-02 15:04"), tx.Amount, tx.Balance, tx.Reason)
	}
	w.Flush()
}

// cmdAdmin logs in as an admin and runs an operator override
func cmdAdmin(args []string) {
	fs, configPath, url := cliFlags("admin")
	username := fs.String("user", "", "admin username (prompts for password)")
	token := fs.String("token", os.Getenv("ARENA_TOKEN"), "bearer token instead of logging in")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *url)

	if fs.NArg() < 1 {
		fatal("usage: arena admin [--user name] <action>")
	}
	action := fs.Arg(0)

	bearer := *token
	if bearer == "" {
		if *username == "" {
			fatal("--user or --token required")
		}
		t, err := login(*username)
		if err != nil {
			fatal("%v", err)
		}
		bearer = t
	}

	path := "/api/admin/match/" + action
	var body interface{}
	if action == "state" {
		if fs.NArg() < 2 {
			fatal("usage: arena admin state <phase>")
		}
		path = "/api/admin/match/state"
		body = map[string]string{"phase": fs.Arg(1)}
	}

	var st domain.MatchStatus
	if err := postJSON(path, bearer, body, &st); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("OK, phase is now %s\n", st.Phase.DisplayName())
}

func login(username string) (string, error) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]string{"username": username, "password": string(password)}
	if err := postJSON("/api/auth/login", "", req, &resp); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	return resp.Token, nil
}

func getJSON(path string, target interface{}) error {
	resp, err := httpClient.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, target)
}

func postJSON(path, token string, body, target interface{}) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, target)
}

func decodeResponse(resp *http.Response, target interface{}) error {
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
