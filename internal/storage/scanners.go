package storage

import (
	"database/sql"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
)

// Null scanner helpers - reduce repetitive nil-checking code

func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time.UTC()
		return &t
	}
	return nil
}

// scanNullUUID parses an optional uuid column. Malformed values read as nil.
func scanNullUUID(ns sql.NullString) *uuid.UUID {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil
	}
	return &id
}

// nullUUID converts an optional uuid for insertion
func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil || *id == uuid.Nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanUser scans a user row from the database
func scanUser(s scanner) (*User, error) {
	var user User
	var lastLogin sql.NullTime
	var player sql.NullString
	err := s.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
		&player, &user.PasswordChangeRequired, &user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	user.LastLogin = scanNullTime(lastLogin)
	user.PlayerID = scanNullUUID(player)
	return &user, nil
}

// scanMatchRecord scans a match row with its aggregate columns
func scanMatchRecord(s scanner) (*domain.MatchRecord, error) {
	var m domain.MatchRecord
	var startedAt, endedAt sql.NullTime
	var winner sql.NullString
	err := s.Scan(&m.ID, &m.ServerID, &m.CreatedAt, &startedAt, &endedAt,
		&m.Parties, &m.Eliminations, &winner)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.StartedAt = scanNullTime(startedAt)
	m.EndedAt = scanNullTime(endedAt)
	m.Winner = scanNullUUID(winner)
	return &m, nil
}

// scanElimination scans an elimination row
func scanElimination(s scanner) (*domain.Elimination, error) {
	var e domain.Elimination
	var player string
	var party, killer, message sql.NullString
	var reason string
	err := s.Scan(&e.MatchID, &player, &party, &killer, &reason, &message, &e.At)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(player)
	if err != nil {
		return nil, err
	}
	e.Player = id
	if p := scanNullUUID(party); p != nil {
		e.Party = *p
	}
	e.Killer = scanNullUUID(killer)
	e.Reason = domain.DeathReason(reason)
	e.Message = scanNullString(message)
	e.At = e.At.UTC()
	return &e, nil
}
