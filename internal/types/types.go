package types

type AccountStatus string

type EntryKind string

type EntryStatus string

type PositionSide string

type PositionStatus string

type InvestmentStatus string

type CommissionStatus string

type ActivityType string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
)

const (
	EntryKindDeposit         EntryKind = "deposit"
	EntryKindWithdrawal      EntryKind = "withdrawal"
	EntryKindTradeMargin     EntryKind = "trade_margin"
	EntryKindTradeSettlement EntryKind = "trade_settlement"
	EntryKindInterest        EntryKind = "interest"
	EntryKindCommission      EntryKind = "commission"
	EntryKindBonus           EntryKind = "bonus"
)

const (
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
)

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
	InvestmentStatusRenewed   InvestmentStatus = "renewed"
)

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

const (
	ActivityTypeTrading ActivityType = "trading"
	ActivityTypeDeposit ActivityType = "deposit"
	ActivityTypeBonus   ActivityType = "bonus"
)
