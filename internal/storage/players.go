package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreditTransaction is one change to a player's balance
type CreditTransaction struct {
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance returns a player's credits. Unknown players have zero.
func (s *Store) Balance(ctx context.Context, player uuid.UUID) (int64, error) {
	var credits int64
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM players WHERE uuid = ?`, player.String()).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return credits, err
}

// AdjustCredits adds delta to a player's balance in one transaction.
// With requireFunds a change that would go negative is refused and ok is
// false; otherwise the balance is floored at zero.
func (s *Store) AdjustCredits(ctx context.Context, player uuid.UUID, delta int64, reason string, requireFunds bool) (balance int64, ok bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTimestamp(time.Now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO players (uuid, credits, updated_at) VALUES (?, 0, ?)
		ON CONFLICT(uuid) DO NOTHING
	`, player.String(), now); err != nil {
		return 0, false, fmt.Errorf("creating player: %w", err)
	}

	var current int64
	if err := tx.QueryRowContext(ctx, `SELECT credits FROM players WHERE uuid = ?`, player.String()).Scan(&current); err != nil {
		return 0, false, fmt.Errorf("reading balance: %w", err)
	}

	next := current + delta
	if next < 0 {
		if requireFunds {
			return current, false, nil
		}
		next = 0
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE players SET credits = ?, updated_at = ? WHERE uuid = ?
	`, next, now, player.String()); err != nil {
		return 0, false, fmt.Errorf("updating balance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (player_uuid, amount, balance, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, player.String(), next-current, next, reason, now); err != nil {
		return 0, false, fmt.Errorf("recording transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing: %w", err)
	}
	return next, true, nil
}

// CreditHistory returns a player's most recent balance changes, newest first
func (s *Store) CreditHistory(ctx context.Context, player uuid.UUID, limit int) ([]CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount, balance, reason, created_at FROM credit_transactions
		WHERE player_uuid = ? ORDER BY id DESC LIMIT ?
	`, player.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []CreditTransaction
	for rows.Next() {
		var tx CreditTransaction
		if err := rows.Scan(&tx.Amount, &tx.Balance, &tx.Reason, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		history = append(history, tx)
	}
	return history, rows.Err()
}

// RecordKitSelection remembers the last kit a player picked
func (s *Store) RecordKitSelection(ctx context.Context, player uuid.UUID, kit string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (uuid, credits, last_kit, updated_at) VALUES (?, 0, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET last_kit = excluded.last_kit, updated_at = excluded.updated_at
	`, player.String(), kit, formatTimestamp(time.Now()))
	return err
}

// LastKit returns the last kit a player picked, or "" if none
func (s *Store) LastKit(ctx context.Context, player uuid.UUID) (string, error) {
	var kit sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT last_kit FROM players WHERE uuid = ?`, player.String()).Scan(&kit)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return scanNullString(kit), err
}
