package session

import (
	"context"
	"time"
)

// State is the pending step of a two-step prompt.
type State string

const (
	StateNone                   State = ""
	StateAwaitingWithdrawAmount State = "awaiting_withdraw_amount"
	StateAwaitingChannel        State = "awaiting_channel"
)

// DefaultTTL bounds how long the bot waits for the answer to a prompt.
const DefaultTTL = 10 * time.Minute

type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, state State) error
	Clear(ctx context.Context, userID int64) error
	// MarkOnce reports true only for the first call with key within ttl.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unmark releases key so the next MarkOnce succeeds again.
	Unmark(ctx context.Context, key string) error
}
