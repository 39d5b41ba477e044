package credits

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/api"
)

// WalletModule is the part of the Nakama runtime the wallet store uses.
// runtime.NakamaModule satisfies it.
type WalletModule interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
	WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error)
}

// WalletStore keeps balances in Nakama account wallets under one key
type WalletStore struct {
	nk  WalletModule
	key string
}

// NewWalletStore creates a store writing to wallet key
func NewWalletStore(nk WalletModule, key string) *WalletStore {
	if key == "" {
		key = "credits"
	}
	return &WalletStore{nk: nk, key: key}
}

// Balance reads the wallet balance
func (w *WalletStore) Balance(ctx context.Context, player uuid.UUID) (int64, error) {
	account, err := w.nk.AccountGetId(ctx, player.String())
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	if account.Wallet == "" {
		return 0, nil
	}

	var wallet map[string]int64
	if err := json.Unmarshal([]byte(account.Wallet), &wallet); err != nil {
		return 0, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	return wallet[w.key], nil
}

// AdjustCredits applies delta through the wallet ledger. Nakama rejects
// negative balances, so the balance is checked first.
func (w *WalletStore) AdjustCredits(ctx context.Context, player uuid.UUID, delta int64, reason string, requireFunds bool) (int64, bool, error) {
	current, err := w.Balance(ctx, player)
	if err != nil {
		return 0, false, err
	}
	if current+delta < 0 {
		if requireFunds {
			return current, false, nil
		}
		delta = -current
	}
	if delta == 0 {
		return current, true, nil
	}

	metadata := map[string]interface{}{"reason": reason}
	updated, _, err := w.nk.WalletUpdate(ctx, player.String(), map[string]int64{w.key: delta}, metadata, true)
	if err != nil {
		return 0, false, fmt.Errorf("failed to update wallet for user %s: %w", player, err)
	}
	return updated[w.key], true, nil
}
