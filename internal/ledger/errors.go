package ledger

import "errors"

var (
	ErrInsufficientCredits  = errors.New("no spins left")
	ErrAlreadyClaimedToday  = errors.New("daily bonus already claimed today")
	ErrInvalidAmount        = errors.New("amount must be a positive whole number")
	ErrBelowMinimum         = errors.New("amount is below the minimum withdrawal")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrEmptyList            = errors.New("channel list is empty")
	ErrDuplicateChannel     = errors.New("channel already added")
	ErrInvalidChannelFormat = errors.New("channel must start with @")
	ErrGatewayUnavailable   = errors.New("messaging gateway unavailable")

	ErrAccountNotFound    = errors.New("account not found")
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")
	ErrWithdrawalResolved = errors.New("withdrawal request already resolved")
)
