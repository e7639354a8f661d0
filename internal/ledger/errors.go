package ledger

import "errors"

var (
	ErrInvalidAmount     = errors.New("ledger: amount must be positive")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrNotFound          = errors.New("ledger: not found")
	ErrInvalidState      = errors.New("ledger: invalid state")
	ErrAccountSuspended  = errors.New("ledger: account suspended")
)
