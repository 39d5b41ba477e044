package credits

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/api"
)

type fakeWallets struct {
	wallets  map[string]map[string]int64
	metadata []map[string]interface{}
	fail     bool
}

func (f *fakeWallets) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	if f.fail {
		return nil, errors.New("account not found")
	}
	data, err := json.Marshal(f.wallets[userID])
	if err != nil {
		return nil, err
	}
	return &api.Account{Wallet: string(data)}, nil
}

func (f *fakeWallets) WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error) {
	w := f.wallets[userID]
	if w == nil {
		w = make(map[string]int64)
		f.wallets[userID] = w
	}
	previous := make(map[string]int64, len(w))
	for k, v := range w {
		previous[k] = v
	}
	for k, v := range changeset {
		if w[k]+v < 0 {
			return nil, nil, errors.New("wallet update rejected negative value")
		}
		w[k] += v
	}
	f.metadata = append(f.metadata, metadata)
	updated := make(map[string]int64, len(w))
	for k, v := range w {
		updated[k] = v
	}
	return updated, previous, nil
}

func TestWalletStore(t *testing.T) {
	p := uuid.New()
	nk := &fakeWallets{wallets: map[string]map[string]int64{
		p.String(): {"credits": 50, "gems": 7},
	}}
	store := NewWalletStore(nk, "credits")
	ctx := context.Background()

	bal, err := store.Balance(ctx, p)
	if err != nil || bal != 50 {
		t.Fatalf("Balance = %d, %v", bal, err)
	}

	tests := []struct {
		name         string
		delta        int64
		requireFunds bool
		wantBalance  int64
		wantOK       bool
	}{
		{"award", 25, false, 75, true},
		{"deduct", -70, true, 5, true},
		{"refused deduct", -10, true, 5, false},
		{"penalty floors", -30, false, 0, true},
	}
	for _, tt := range tests {
		bal, ok, err := store.AdjustCredits(ctx, p, tt.delta, tt.name, tt.requireFunds)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if bal != tt.wantBalance || ok != tt.wantOK {
			t.Fatalf("%s: got (%d, %v), want (%d, %v)", tt.name, bal, ok, tt.wantBalance, tt.wantOK)
		}
	}

	if nk.wallets[p.String()]["gems"] != 7 {
		t.Fatal("other wallet keys must be untouched")
	}
	if len(nk.metadata) != 3 || nk.metadata[0]["reason"] != "award" {
		t.Fatalf("metadata = %v", nk.metadata)
	}
}

func TestWalletStoreNewAccount(t *testing.T) {
	nk := &fakeWallets{wallets: map[string]map[string]int64{}}
	store := NewWalletStore(nk, "")
	p := uuid.New()

	bal, ok, err := store.AdjustCredits(context.Background(), p, 3, "Joined a match", false)
	if err != nil || !ok || bal != 3 {
		t.Fatalf("AdjustCredits = %d, %v, %v", bal, ok, err)
	}
}

func TestWalletStoreAccountError(t *testing.T) {
	store := NewWalletStore(&fakeWallets{fail: true}, "credits")
	if _, _, err := store.AdjustCredits(context.Background(), uuid.New(), 5, "x", false); err == nil {
		t.Fatal("expected an error")
	}
}
