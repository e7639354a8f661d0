package store

import (
	"context"
	"errors"
	"time"

	"mms-goldcore/internal/model"
	"mms-goldcore/internal/types"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("store: not found")
	ErrInsufficientBalance = errors.New("store: insufficient balance")
	ErrInvalidState        = errors.New("store: invalid state")
	ErrDuplicate           = errors.New("store: duplicate")
)

// Store is the persistence boundary. Methods that move money take the
// ledger entry alongside the state change and apply both atomically:
// the balance delta, the appended entry and the record mutation either
// all land or none do. Balance checks (>= 0 after the delta) happen
// inside the same atomic step.
type Store interface {
	CreateAccount(ctx context.Context, acc *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error)
	ListAccountsByReferrer(ctx context.Context, referrerID string) ([]model.Account, error)
	SetAccountStatus(ctx context.Context, id string, status types.AccountStatus) error

	// ApplyEntry adds entry.Amount to the account balance and appends the
	// entry. Fails with ErrInsufficientBalance when the delta would drive
	// the balance negative, without writing anything.
	ApplyEntry(ctx context.Context, entry *model.LedgerEntry) error
	ListEntries(ctx context.Context, accountID string, limit int) ([]model.LedgerEntry, error)

	// OpenPosition persists the position and applies the margin debit in
	// one step.
	OpenPosition(ctx context.Context, p *model.Position, margin *model.LedgerEntry) error
	GetPosition(ctx context.Context, id string) (*model.Position, error)
	ListOpenPositions(ctx context.Context) ([]model.Position, error)
	ListPositionsByAccount(ctx context.Context, accountID string) ([]model.Position, error)
	UpdatePositionMark(ctx context.Context, id string, mark, profit decimal.Decimal) error
	// SettlePosition transitions open -> closed and applies the optional
	// settlement credit. A position not in the open state fails with
	// ErrInvalidState.
	SettlePosition(ctx context.Context, id string, closePrice, profit decimal.Decimal, closedAt time.Time, settlement *model.LedgerEntry) error

	// CreateInvestment persists the investment and applies the principal
	// debit in one step.
	CreateInvestment(ctx context.Context, inv *model.Investment, debit *model.LedgerEntry) error
	GetInvestment(ctx context.Context, id string) (*model.Investment, error)
	ListInvestmentsByAccount(ctx context.Context, accountID string) ([]model.Investment, error)
	ListActiveInvestments(ctx context.Context) ([]model.Investment, error)
	// RecordInterest stamps the investment's last payout time and applies
	// the interest credit in one step.
	RecordInterest(ctx context.Context, investmentID string, payoutAt time.Time, credit *model.LedgerEntry) error
	// FinishInvestment transitions from -> to and applies the optional
	// credit. A mismatched current status fails with ErrInvalidState.
	FinishInvestment(ctx context.Context, id string, from, to types.InvestmentStatus, credit *model.LedgerEntry) error

	CreateCommission(ctx context.Context, c *model.Commission) error
	GetCommission(ctx context.Context, id string) (*model.Commission, error)
	ListPendingCommissions(ctx context.Context, limit int) ([]model.Commission, error)
	ListCommissionsByBeneficiary(ctx context.Context, beneficiaryID string) ([]model.Commission, error)
	// PayCommission transitions pending -> paid and applies the credit.
	// A commission already paid or cancelled fails with ErrInvalidState.
	PayCommission(ctx context.Context, id string, paidAt time.Time, credit *model.LedgerEntry) error
	// SumPaidCommissions groups commissions paid in [from, to) by
	// beneficiary.
	SumPaidCommissions(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
}
