package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spin-bot/internal/database"
	"spin-bot/internal/models"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) ReferralCredited(ctx context.Context, referrer, invited *models.Account, spins int64) error {
	args := m.Called(ctx, referrer, invited, spins)
	return args.Error(0)
}

func (m *MockNotifier) WithdrawalRequested(ctx context.Context, acc *models.Account, w *models.Withdrawal) error {
	args := m.Called(ctx, acc, w)
	return args.Error(0)
}

func (m *MockNotifier) WithdrawalResolved(ctx context.Context, w *models.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

type fixedReward int64

func (f fixedReward) Draw() int64 { return int64(f) }

// failingStore rejects every write that follows a read-modify-write.
type failingStore struct {
	*database.MemoryStore
	err error
}

func (f *failingStore) SaveAccount(context.Context, *models.Account) error { return f.err }
func (f *failingStore) SaveChannels(context.Context, []string) error       { return f.err }
func (f *failingStore) CreateWithdrawal(context.Context, *models.Account, *models.Withdrawal) error {
	return f.err
}

func newTestLedger(t *testing.T, store Store, notifier Notifier) *Ledger {
	t.Helper()
	opts := DefaultOptions()
	l := New(store, fixedReward(2500), notifier, opts)
	l.now = func() time.Time { return time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC) }
	return l
}

func seedAccount(t *testing.T, store *database.MemoryStore, acc *models.Account) {
	t.Helper()
	require.NoError(t, store.CreateAccount(context.Background(), acc, nil, nil))
}

func TestFirstContact_CreatesAccountWithDefaults(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	l := newTestLedger(t, store, new(MockNotifier))

	acc, created, err := l.FirstContact(ctx, 10, "alice", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(10), acc.UserID)
	assert.Equal(t, int64(0), acc.Balance)
	assert.Equal(t, int64(0), acc.SpinCredits)
	assert.Nil(t, acc.LastBonusDate)
	assert.Nil(t, acc.ReferredBy)

	_, created, err = l.FirstContact(ctx, 10, "alice", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestFirstContact_ReferralCreditedOnce(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1})

	notifier := new(MockNotifier)
	notifier.On("ReferralCredited", ctx, mock.MatchedBy(func(a *models.Account) bool {
		return a.UserID == 1 && a.SpinCredits == 1
	}), mock.MatchedBy(func(a *models.Account) bool {
		return a.UserID == 2
	}), int64(1)).Return(nil).Once()

	l := newTestLedger(t, store, notifier)

	acc, created, err := l.FirstContact(ctx, 2, "bob", "1")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, acc.ReferredBy)
	assert.Equal(t, int64(1), *acc.ReferredBy)

	// Later contacts, even with another token, never credit again.
	for i := 0; i < 3; i++ {
		_, created, err = l.FirstContact(ctx, 2, "bob", "ref_1")
		require.NoError(t, err)
		assert.False(t, created)
	}

	referrer, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), referrer.SpinCredits)

	invited, spins, err := l.ReferralInfo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), invited)
	assert.Equal(t, int64(1), spins)

	notifier.AssertExpectations(t)
}

func TestFirstContact_InvalidReferralTokens(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	notifier := new(MockNotifier)
	l := newTestLedger(t, store, notifier)

	cases := []struct {
		userID int64
		token  string
	}{
		{userID: 5, token: "5"},       // self
		{userID: 6, token: "999"},     // unknown referrer
		{userID: 7, token: "garbage"}, // not a user id
		{userID: 8, token: "-3"},
	}
	for _, tc := range cases {
		acc, created, err := l.FirstContact(ctx, tc.userID, "", tc.token)
		require.NoError(t, err, tc.token)
		assert.True(t, created, tc.token)
		assert.Nil(t, acc.ReferredBy, tc.token)
	}

	notifier.AssertNotCalled(t, "ReferralCredited", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFirstContact_NotifierFailureKeepsAccount(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1})

	notifier := new(MockNotifier)
	notifier.On("ReferralCredited", ctx, mock.Anything, mock.Anything, int64(1)).Return(errors.New("blocked by user"))
	l := newTestLedger(t, store, notifier)

	_, created, err := l.FirstContact(ctx, 2, "", "1")
	require.NoError(t, err)
	assert.True(t, created)

	referrer, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), referrer.SpinCredits)
}

func TestFirstContact_ConcurrentCallsCreditOnce(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1})

	notifier := new(MockNotifier)
	notifier.On("ReferralCredited", ctx, mock.Anything, mock.Anything, int64(1)).Return(nil)
	l := newTestLedger(t, store, notifier)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.FirstContact(ctx, 2, "", "1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	referrer, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), referrer.SpinCredits)
	notifier.AssertNumberOfCalls(t, "ReferralCredited", 1)
}

func TestSpin(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1, SpinCredits: 1, Balance: 100})
	seedAccount(t, store, &models.Account{UserID: 2})
	l := newTestLedger(t, store, new(MockNotifier))

	res, err := l.Spin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), res.Reward)
	assert.Equal(t, int64(2600), res.Balance)
	assert.Equal(t, int64(0), res.SpinCredits)

	_, err = l.Spin(ctx, 1)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	acc, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2600), acc.Balance)
	assert.Equal(t, int64(0), acc.SpinCredits)

	_, err = l.Spin(ctx, 2)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	_, err = l.Spin(ctx, 404)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSpin_PersistFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	mem := database.NewMemoryStore()
	seedAccount(t, mem, &models.Account{UserID: 1, SpinCredits: 3, Balance: 10})
	l := newTestLedger(t, &failingStore{MemoryStore: mem, err: errors.New("disk full")}, new(MockNotifier))

	_, err := l.Spin(ctx, 1)
	require.Error(t, err)

	acc, err := mem.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), acc.SpinCredits)
	assert.Equal(t, int64(10), acc.Balance)
}

func TestSpin_ConcurrentSpinsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1, SpinCredits: 25})
	l := newTestLedger(t, store, new(MockNotifier))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Spin(ctx, 1)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientCredits)
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, successes)
	acc, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.SpinCredits)
	assert.Equal(t, int64(25*2500), acc.Balance)
	assert.Equal(t, 0, l.locks.size())
}

func TestClaimDailyBonus_OncePerDay(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1})
	l := newTestLedger(t, store, new(MockNotifier))

	res, err := l.ClaimDailyBonus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Amount)
	assert.Equal(t, int64(5000), res.Balance)
	assert.Equal(t, "2026-10-15", res.Date)

	_, err = l.ClaimDailyBonus(ctx, 1)
	assert.ErrorIs(t, err, ErrAlreadyClaimedToday)

	acc, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), acc.Balance)

	l.now = func() time.Time { return time.Date(2026, 10, 16, 0, 30, 0, 0, time.UTC) }
	res, err = l.ClaimDailyBonus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.Balance)
}

func TestClaimDailyBonus_UsesReferenceZone(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1})

	tashkent := time.FixedZone("UZT", 5*60*60)
	opts := DefaultOptions()
	opts.Location = tashkent
	l := New(store, fixedReward(0), new(MockNotifier), opts)

	// 20:00 UTC is already the next day at UTC+5.
	l.now = func() time.Time { return time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC) }
	res, err := l.ClaimDailyBonus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", res.Date)

	l.now = func() time.Time { return time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC) }
	res, err = l.ClaimDailyBonus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", res.Date)

	l.now = func() time.Time { return time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC) }
	_, err = l.ClaimDailyBonus(ctx, 1)
	assert.ErrorIs(t, err, ErrAlreadyClaimedToday)
}

func TestWithdraw(t *testing.T) {
	cases := []struct {
		name        string
		balance     int64
		amount      string
		wantErr     error
		wantBalance int64
	}{
		{name: "below minimum despite balance", balance: 1_000_000, amount: "50000", wantErr: ErrBelowMinimum, wantBalance: 1_000_000},
		{name: "insufficient balance", balance: 100000, amount: "150000", wantErr: ErrInsufficientBalance, wantBalance: 100000},
		{name: "not a number", balance: 200000, amount: "lots", wantErr: ErrInvalidAmount, wantBalance: 200000},
		{name: "negative", balance: 200000, amount: "-150000", wantErr: ErrInvalidAmount, wantBalance: 200000},
		{name: "zero", balance: 200000, amount: "0", wantErr: ErrInvalidAmount, wantBalance: 200000},
		{name: "fraction", balance: 200000, amount: "150000.5", wantErr: ErrInvalidAmount, wantBalance: 200000},
		{name: "success", balance: 200000, amount: "150000", wantBalance: 50000},
		{name: "success with spaces", balance: 200000, amount: " 150 000 ", wantBalance: 50000},
		{name: "exact balance", balance: 100000, amount: "100000", wantBalance: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := database.NewMemoryStore()
			seedAccount(t, store, &models.Account{UserID: 7, Balance: tc.balance})

			notifier := new(MockNotifier)
			if tc.wantErr == nil {
				notifier.On("WithdrawalRequested", ctx, mock.MatchedBy(func(a *models.Account) bool {
					return a.UserID == 7 && a.Balance == tc.wantBalance
				}), mock.MatchedBy(func(w *models.Withdrawal) bool {
					return w.UserID == 7 && w.Status == models.WithdrawalPending && w.Amount == tc.balance-tc.wantBalance
				})).Return(nil).Once()
			}
			l := newTestLedger(t, store, notifier)

			w, err := l.Withdraw(ctx, 7, tc.amount)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, w)
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.WithdrawalPending, w.Status)
				assert.Equal(t, tc.balance-tc.wantBalance, w.Amount)
				assert.NotEmpty(t, w.ID)
			}

			acc, err := store.GetAccount(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, tc.wantBalance, acc.Balance)
			assert.GreaterOrEqual(t, acc.Balance, int64(0))
			notifier.AssertExpectations(t)
		})
	}
}

func TestWithdraw_PersistFailureKeepsBalance(t *testing.T) {
	ctx := context.Background()
	mem := database.NewMemoryStore()
	seedAccount(t, mem, &models.Account{UserID: 1, Balance: 200000})
	notifier := new(MockNotifier)
	l := newTestLedger(t, &failingStore{MemoryStore: mem, err: errors.New("conn reset")}, notifier)

	_, err := l.Withdraw(ctx, 1, "150000")
	require.Error(t, err)

	acc, err := mem.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), acc.Balance)
	notifier.AssertNotCalled(t, "WithdrawalRequested", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveWithdrawal(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1, Balance: 400000})

	notifier := new(MockNotifier)
	notifier.On("WithdrawalRequested", ctx, mock.Anything, mock.Anything).Return(nil)
	notifier.On("WithdrawalResolved", ctx, mock.Anything).Return(nil)
	l := newTestLedger(t, store, notifier)

	approved, err := l.Withdraw(ctx, 1, "150000")
	require.NoError(t, err)
	rejected, err := l.Withdraw(ctx, 1, "200000")
	require.NoError(t, err)

	acc, err := store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), acc.Balance)

	w, err := l.ResolveWithdrawal(ctx, approved.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, w.Status)
	assert.NotNil(t, w.ResolvedAt)

	w, err = l.ResolveWithdrawal(ctx, rejected.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, w.Status)

	acc, err = store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(250000), acc.Balance)

	_, err = l.ResolveWithdrawal(ctx, rejected.ID, false)
	assert.ErrorIs(t, err, ErrWithdrawalResolved)
	_, err = l.ResolveWithdrawal(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)

	acc, err = store.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(250000), acc.Balance)
}

func TestPendingWithdrawalsAndStats(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	seedAccount(t, store, &models.Account{UserID: 1, Balance: 300000})
	seedAccount(t, store, &models.Account{UserID: 2, Balance: 1000})

	notifier := new(MockNotifier)
	notifier.On("WithdrawalRequested", ctx, mock.Anything, mock.Anything).Return(nil)
	l := newTestLedger(t, store, notifier)
	require.NoError(t, l.AddChannel(ctx, "@news"))

	_, err := l.Withdraw(ctx, 1, "100000")
	require.NoError(t, err)

	pending, err := l.PendingWithdrawals(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, pending)

	l.now = func() time.Time { return time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC) }
	pending, err = l.PendingWithdrawals(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Accounts)
	assert.Equal(t, int64(201000), stats.TotalBalance)
	assert.Equal(t, int64(1), stats.PendingWithdrawals)
	assert.Equal(t, []string{"@news"}, stats.Channels)
}

func TestParseReferralToken(t *testing.T) {
	id, ok := ParseReferralToken("ref_123")
	assert.True(t, ok)
	assert.Equal(t, int64(123), id)

	id, ok = ParseReferralToken(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "ref_", "abc", "0", "-1"} {
		_, ok = ParseReferralToken(bad)
		assert.False(t, ok, bad)
	}
}
