package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
)

// --- Match methods ---

// CreateMatch inserts a new match record and returns its ID
func (s *Store) CreateMatch(ctx context.Context, serverID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (server_id, created_at) VALUES (?, ?)
	`, serverID, formatTimestamp(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("inserting match: %w", err)
	}
	return result.LastInsertId()
}

// MarkMatchStarted records when the countdown began
func (s *Store) MarkMatchStarted(ctx context.Context, matchID int64, at time.Time) error {
	return s.updateMatch(ctx, `UPDATE matches SET started_at = ? WHERE id = ?`, matchID, at)
}

// MarkMatchEnded records when the match ended. An existing end time is kept.
func (s *Store) MarkMatchEnded(ctx context.Context, matchID int64, at time.Time) error {
	return s.updateMatch(ctx, `UPDATE matches SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`, matchID, at)
}

func (s *Store) updateMatch(ctx context.Context, query string, matchID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, query, formatTimestamp(at), matchID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("match %d: %w", matchID, ErrNotFound)
	}
	return nil
}

// EndOpenMatches closes matches on serverID left open by an unclean
// shutdown. Returns the number of matches closed.
func (s *Store) EndOpenMatches(ctx context.Context, serverID string, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE matches SET ended_at = ? WHERE server_id = ? AND ended_at IS NULL
	`, formatTimestamp(at), serverID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const matchRecordColumns = `
	m.id, m.server_id, m.created_at, m.started_at, m.ended_at,
	(SELECT COUNT(*) FROM parties p WHERE p.match_id = m.id),
	(SELECT COUNT(*) FROM eliminations e WHERE e.match_id = m.id AND e.reason != 'winner'),
	(SELECT e.player_uuid FROM eliminations e WHERE e.match_id = m.id AND e.reason = 'winner' LIMIT 1)
`

// GetMatch returns one match with its outcome
func (s *Store) GetMatch(ctx context.Context, matchID int64) (*domain.MatchRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchRecordColumns+` FROM matches m WHERE m.id = ?`, matchID)
	m, err := scanMatchRecord(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("match %d", matchID))
	}
	return m, nil
}

// RecentMatches returns the newest matches first. An empty serverID
// lists every server.
func (s *Store) RecentMatches(ctx context.Context, serverID string, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + matchRecordColumns + ` FROM matches m`
	args := []any{}
	if serverID != "" {
		query += ` WHERE m.server_id = ?`
		args = append(args, serverID)
	}
	query += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.MatchRecord
	for rows.Next() {
		m, err := scanMatchRecord(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// --- Party methods ---

// CreateParty stores a party of matchID and returns its row ID
func (s *Store) CreateParty(ctx context.Context, matchID int64, party domain.Party) (int64, error) {
	created := party.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO parties (uuid, match_id, name, created_at) VALUES (?, ?, ?, ?)
	`, party.ID.String(), matchID, party.Name, formatTimestamp(created))
	if err != nil {
		return 0, fmt.Errorf("inserting party %s: %w", party.Name, err)
	}
	return result.LastInsertId()
}

// MatchParties returns the parties of a match in creation order
func (s *Store) MatchParties(ctx context.Context, matchID int64) ([]domain.Party, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, match_id, name, created_at FROM parties WHERE match_id = ? ORDER BY id
	`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []domain.Party
	for rows.Next() {
		var p domain.Party
		var id string
		if err := rows.Scan(&id, &p.MatchID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("party uuid %q: %w", id, err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

// --- Elimination methods ---

// RecordElimination appends an elimination to the match journal
func (s *Store) RecordElimination(ctx context.Context, e domain.Elimination) error {
	var party *uuid.UUID
	if e.Party != uuid.Nil {
		party = &e.Party
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eliminations (match_id, player_uuid, party_uuid, killer_uuid, reason, message, eliminated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.MatchID, e.Player.String(), nullUUID(party), nullUUID(e.Killer), string(e.Reason), e.Message, formatTimestamp(at))
	if err != nil {
		return fmt.Errorf("inserting elimination of %s: %w", e.Player, err)
	}
	return nil
}

// MatchEliminations returns the eliminations of a match in order
func (s *Store) MatchEliminations(ctx context.Context, matchID int64) ([]domain.Elimination, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT match_id, player_uuid, party_uuid, killer_uuid, reason, message, eliminated_at
		FROM eliminations WHERE match_id = ? ORDER BY id
	`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elims []domain.Elimination
	for rows.Next() {
		e, err := scanElimination(rows)
		if err != nil {
			return nil, err
		}
		elims = append(elims, *e)
	}
	return elims, rows.Err()
}
