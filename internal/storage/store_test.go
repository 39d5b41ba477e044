package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMatchLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	id, err := s.CreateMatch(ctx, "arena-1")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if err := s.MarkMatchStarted(ctx, id, start); err != nil {
		t.Fatalf("MarkMatchStarted: %v", err)
	}

	red := domain.Party{ID: uuid.New(), Name: "The Iron Creepers", CreatedAt: start}
	blue := domain.Party{ID: uuid.New(), Name: "The Gold Pigs", CreatedAt: start}
	for _, p := range []domain.Party{red, blue} {
		if _, err := s.CreateParty(ctx, id, p); err != nil {
			t.Fatalf("CreateParty: %v", err)
		}
	}

	winner, loser := uuid.New(), uuid.New()
	elims := []domain.Elimination{
		{MatchID: id, Player: loser, Party: blue.ID, Killer: &winner, Reason: domain.DeathPlayer, Message: "slain", At: start.Add(time.Minute)},
		{MatchID: id, Player: winner, Party: red.ID, Reason: domain.DeathWinner, At: start.Add(time.Minute)},
	}
	for _, e := range elims {
		if err := s.RecordElimination(ctx, e); err != nil {
			t.Fatalf("RecordElimination: %v", err)
		}
	}

	end := start.Add(2 * time.Minute)
	if err := s.MarkMatchEnded(ctx, id, end); err != nil {
		t.Fatalf("MarkMatchEnded: %v", err)
	}
	if err := s.MarkMatchEnded(ctx, id, end.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkMatchEnded: %v", err)
	}

	m, err := s.GetMatch(ctx, id)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if m.Parties != 2 || m.Eliminations != 1 {
		t.Errorf("parties %d eliminations %d, want 2 and 1", m.Parties, m.Eliminations)
	}
	if m.Winner == nil || *m.Winner != winner {
		t.Errorf("winner = %v, want %s", m.Winner, winner)
	}
	if m.StartedAt == nil || !m.StartedAt.Equal(start) {
		t.Errorf("started = %v", m.StartedAt)
	}
	if m.EndedAt == nil || !m.EndedAt.Equal(end) {
		t.Errorf("ended = %v, want first end time", m.EndedAt)
	}

	got, err := s.MatchEliminations(ctx, id)
	if err != nil {
		t.Fatalf("MatchEliminations: %v", err)
	}
	if len(got) != 2 || got[0].Killer == nil || *got[0].Killer != winner || got[0].Party != blue.ID {
		t.Fatalf("eliminations = %+v", got)
	}
	if got[1].Killer != nil || got[1].Reason != domain.DeathWinner {
		t.Fatalf("winner entry = %+v", got[1])
	}

	parties, err := s.MatchParties(ctx, id)
	if err != nil || len(parties) != 2 || parties[0].Name != red.Name {
		t.Fatalf("parties = %+v, err %v", parties, err)
	}
}

func TestMissingMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.MarkMatchStarted(ctx, 42, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkMatchStarted: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetMatch(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMatch: err = %v, want ErrNotFound", err)
	}
}

func TestRecentMatchesAndEndOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.CreateMatch(ctx, "arena-1"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateMatch(ctx, "arena-2"); err != nil {
		t.Fatal(err)
	}

	n, err := s.EndOpenMatches(ctx, "arena-1", time.Now())
	if err != nil || n != 3 {
		t.Fatalf("EndOpenMatches = %d, %v", n, err)
	}

	tests := []struct {
		server string
		limit  int
		want   int
	}{
		{"", 10, 4},
		{"arena-1", 10, 3},
		{"arena-1", 2, 2},
		{"arena-3", 10, 0},
	}
	for _, tt := range tests {
		got, err := s.RecentMatches(ctx, tt.server, tt.limit)
		if err != nil {
			t.Fatalf("RecentMatches(%q): %v", tt.server, err)
		}
		if len(got) != tt.want {
			t.Errorf("RecentMatches(%q, %d) = %d, want %d", tt.server, tt.limit, len(got), tt.want)
		}
		for i := 1; i < len(got); i++ {
			if got[i].ID > got[i-1].ID {
				t.Errorf("matches not newest first")
			}
		}
	}
}

func TestAdjustCredits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := uuid.New()

	if bal, err := s.Balance(ctx, p); err != nil || bal != 0 {
		t.Fatalf("unknown balance = %d, %v", bal, err)
	}

	tests := []struct {
		name         string
		delta        int64
		requireFunds bool
		wantBalance  int64
		wantOK       bool
	}{
		{"award", 100, false, 100, true},
		{"deduct", -30, true, 70, true},
		{"overdraw refused", -80, true, 70, false},
		{"penalty floors at zero", -500, false, 0, true},
	}
	for _, tt := range tests {
		bal, ok, err := s.AdjustCredits(ctx, p, tt.delta, tt.name, tt.requireFunds)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if bal != tt.wantBalance || ok != tt.wantOK {
			t.Errorf("%s: balance %d ok %v, want %d %v", tt.name, bal, ok, tt.wantBalance, tt.wantOK)
		}
	}

	history, err := s.CreditHistory(ctx, p, 10)
	if err != nil {
		t.Fatalf("CreditHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d entries, want 3", len(history))
	}
	if history[0].Amount != -70 || history[0].Balance != 0 {
		t.Errorf("newest entry = %+v", history[0])
	}
}

func TestKitSelection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := uuid.New()

	if kit, err := s.LastKit(ctx, p); err != nil || kit != "" {
		t.Fatalf("LastKit = %q, %v", kit, err)
	}
	s.AdjustCredits(ctx, p, 10, "seed", false)
	if err := s.RecordKitSelection(ctx, p, "archer"); err != nil {
		t.Fatalf("RecordKitSelection: %v", err)
	}
	if kit, _ := s.LastKit(ctx, p); kit != "archer" {
		t.Fatalf("kit = %q", kit)
	}
	if bal, _ := s.Balance(ctx, p); bal != 10 {
		t.Fatalf("kit selection changed balance to %d", bal)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	player := uuid.New()

	if err := s.CreateUser(ctx, "ops", "hash", true, nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser(ctx, "alice", "hash", false, &player); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser(ctx, "ops", "hash", false, nil); err == nil {
		t.Fatal("duplicate username accepted")
	}

	alice, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if alice.PlayerID == nil || *alice.PlayerID != player || !alice.PasswordChangeRequired {
		t.Fatalf("alice = %+v", alice)
	}

	if err := s.UpdateUserPassword(ctx, alice.ID, "new"); err != nil {
		t.Fatal(err)
	}
	s.UpdateUserAdmin(ctx, alice.ID, true)
	s.UpdateUserLastLogin(ctx, alice.ID)
	alice, _ = s.GetUserByID(ctx, alice.ID)
	if alice.PasswordHash != "new" || alice.PasswordChangeRequired || !alice.IsAdmin || alice.LastLogin == nil {
		t.Fatalf("after updates: %+v", alice)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 2 || users[0].Username != "alice" {
		t.Fatalf("ListUsers = %+v, %v", users, err)
	}

	if err := s.DeleteUser(ctx, "ops"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(ctx, "ops"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "ops"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted user lookup: err = %v", err)
	}
}
