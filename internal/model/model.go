package model

import (
	"time"

	"mms-goldcore/internal/types"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	PasswordHash string              `json:"-"`
	Name         string              `json:"name"`
	ReferralCode string              `json:"referral_code"`
	ReferrerID   *string             `json:"referrer_id,omitempty"`
	Status       types.AccountStatus `json:"status"`
	Balance      decimal.Decimal     `json:"balance"`
	CreatedAt    time.Time           `json:"created_at"`
}

// LedgerEntry amounts are signed: credits positive, debits negative,
// so an account balance is always the sum of its completed entries.
type LedgerEntry struct {
	ID        string            `json:"id"`
	AccountID string            `json:"account_id"`
	Kind      types.EntryKind   `json:"kind"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    types.EntryStatus `json:"status"`
	Reference string            `json:"reference,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Position struct {
	ID         string               `json:"id"`
	AccountID  string               `json:"account_id"`
	Instrument string               `json:"instrument"`
	Side       types.PositionSide   `json:"side"`
	Amount     decimal.Decimal      `json:"amount"`
	Leverage   decimal.Decimal      `json:"leverage"`
	Margin     decimal.Decimal      `json:"margin"`
	OpenPrice  decimal.Decimal      `json:"open_price"`
	MarkPrice  decimal.Decimal      `json:"mark_price"`
	Profit     decimal.Decimal      `json:"profit"`
	StopLoss   *decimal.Decimal     `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal     `json:"take_profit,omitempty"`
	Status     types.PositionStatus `json:"status"`
	ClosePrice *decimal.Decimal     `json:"close_price,omitempty"`
	OpenedAt   time.Time            `json:"opened_at"`
	ClosedAt   *time.Time           `json:"closed_at,omitempty"`
}

type Investment struct {
	ID          string                 `json:"id"`
	AccountID   string                 `json:"account_id"`
	PlanID      string                 `json:"plan_id"`
	Amount      decimal.Decimal        `json:"amount"`
	DailyRate   decimal.Decimal        `json:"daily_rate"`
	TotalReturn decimal.Decimal        `json:"total_return"`
	Status      types.InvestmentStatus `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	MaturesAt   time.Time              `json:"matures_at"`
	LastPayout  *time.Time             `json:"last_payout,omitempty"`
}

type Plan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	DurationDay int             `json:"duration_days"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	MaxAmount   decimal.Decimal `json:"max_amount"`
	TotalRate   decimal.Decimal `json:"total_rate"`
}

type Commission struct {
	ID            string                 `json:"id"`
	BeneficiaryID string                 `json:"beneficiary_id"`
	SourceID      string                 `json:"source_id"`
	Level         int                    `json:"level"`
	ActivityType  types.ActivityType     `json:"activity_type"`
	BaseAmount    decimal.Decimal        `json:"base_amount"`
	Amount        decimal.Decimal        `json:"amount"`
	Status        types.CommissionStatus `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
	PaidAt        *time.Time             `json:"paid_at,omitempty"`
}
