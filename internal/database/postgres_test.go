package database

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"spin-bot/internal/ledger"
	"spin-bot/internal/models"
)

// newPostgresStore starts a throwaway postgres container. Skipped in -short
// mode and when no container runtime is available.
func newPostgresStore(t *testing.T) *GormStore {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("spin_bot_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		tcpostgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"test": "spin-bot-store", "test-name": t.Name()}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormStore(db)
}

type nopNotifier struct{}

func (nopNotifier) ReferralCredited(context.Context, *models.Account, *models.Account, int64) error {
	return nil
}
func (nopNotifier) WithdrawalRequested(context.Context, *models.Account, *models.Withdrawal) error {
	return nil
}
func (nopNotifier) WithdrawalResolved(context.Context, *models.Withdrawal) error { return nil }

type constReward int64

func (r constReward) Draw() int64 { return int64(r) }

func TestPostgresStore_LedgerFlow(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	l := ledger.New(store, constReward(150000), nopNotifier{}, ledger.DefaultOptions())
	require.NoError(t, l.LoadChannels(ctx))

	_, created, err := l.FirstContact(ctx, 1, "alice", "")
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = l.FirstContact(ctx, 2, "bob", "ref_1")
	require.NoError(t, err)
	assert.True(t, created)

	invited, spins, err := l.ReferralInfo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), invited)
	assert.Equal(t, int64(1), spins)

	// One credit, two concurrent spins: exactly one succeeds.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = l.Spin(ctx, 1)
		}()
	}
	wg.Wait()
	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	w, err := l.Withdraw(ctx, 1, "120000")
	require.NoError(t, err)

	resolved, err := l.ResolveWithdrawal(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, resolved.Status)

	_, err = l.ResolveWithdrawal(ctx, w.ID, true)
	assert.ErrorIs(t, err, ledger.ErrWithdrawalResolved)

	acc, err := l.Account(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), acc.Balance)
	assert.Equal(t, int64(0), acc.SpinCredits)
}

func TestPostgresStore_Channels(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	require.NoError(t, store.SaveChannels(ctx, []string{"@b", "@a"}))
	require.NoError(t, store.SaveChannels(ctx, []string{"@b", "@a", "@c"}))

	channels, err := store.ListChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"@b", "@a", "@c"}, channels)
}
