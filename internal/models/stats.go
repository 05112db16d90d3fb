package models

// Stats is the admin overview.
type Stats struct {
	Accounts           int64
	TotalBalance       int64
	PendingWithdrawals int64
	PendingAmount      int64
	Channels           []string
}
