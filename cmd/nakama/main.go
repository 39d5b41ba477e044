// Nakama runtime module exposing arena credit balances to game clients
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	"github.com/ernie/arena/internal/credits"
	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// RpcBalance returns the caller's credit balance
const RpcBalance = "arena_balance"

const (
	codeInvalidArgument = 3
	codeInternal        = 13
	codeUnauthenticated = 16
)

// BalanceResponse is the arena_balance payload
type BalanceResponse struct {
	Player  string `json:"player"`
	Balance int64  `json:"balance"`
}

// InitModule registers the arena RPCs with Nakama
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	key := os.Getenv("ARENA_WALLET_KEY")
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok && env["arena_wallet_key"] != "" {
		key = env["arena_wallet_key"]
	}

	if err := initializer.RegisterRpc(RpcBalance, balanceRPC(key)); err != nil {
		return err
	}
	logger.Info("Arena module loaded (wallet key %q).", key)
	return nil
}

func balanceRPC(key string) func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		return lookupBalance(ctx, credits.NewWalletStore(nk, key), userID, logger)
	}
}

func lookupBalance(ctx context.Context, wallets credits.Store, userID string, logger runtime.Logger) (string, error) {
	if userID == "" {
		return "", runtime.NewError("authentication required", codeUnauthenticated)
	}
	player, err := uuid.Parse(userID)
	if err != nil {
		return "", runtime.NewError("invalid user id", codeInvalidArgument)
	}

	balance, err := wallets.Balance(ctx, player)
	if err != nil {
		logger.Error("balance lookup for %s failed: %v", userID, err)
		return "", runtime.NewError("internal error", codeInternal)
	}

	out, err := json.Marshal(BalanceResponse{Player: userID, Balance: balance})
	if err != nil {
		return "", runtime.NewError("internal error", codeInternal)
	}
	return string(out), nil
}
