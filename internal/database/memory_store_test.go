package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-bot/internal/models"
)

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, &models.Account{UserID: 1}, nil, nil))

	acc, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	acc.Balance = 1_000_000

	again, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Balance)
}

func TestMemoryStore_CreateAccountTwiceFails(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, &models.Account{UserID: 1}, nil, nil))
	assert.Error(t, store.CreateAccount(ctx, &models.Account{UserID: 1}, nil, nil))
}

func TestMemoryStore_RejectsDuplicateReferral(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, &models.Account{UserID: 1}, nil, nil))

	referrer := &models.Account{UserID: 1, SpinCredits: 1}
	require.NoError(t, store.CreateAccount(ctx, &models.Account{UserID: 2}, referrer,
		&models.ReferralTransaction{ReferrerID: 1, InvitedUserID: 2, Spins: 1}))

	referrer.SpinCredits = 2
	err := store.CreateAccount(ctx, &models.Account{UserID: 3}, referrer,
		&models.ReferralTransaction{ReferrerID: 1, InvitedUserID: 2, Spins: 1})
	assert.Error(t, err)

	acc, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.SpinCredits)
}

func TestMemoryStore_PendingWithdrawalsSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, &models.Account{UserID: 1}, nil, nil))
	acc := &models.Account{UserID: 1}

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateWithdrawal(ctx, acc, &models.Withdrawal{ID: "b", UserID: 1, Amount: 2, Status: models.WithdrawalPending, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.CreateWithdrawal(ctx, acc, &models.Withdrawal{ID: "a", UserID: 1, Amount: 1, Status: models.WithdrawalPending, CreatedAt: base}))

	pending, err := store.ListPendingWithdrawals(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "b", pending[1].ID)
}
