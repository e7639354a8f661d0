package referrals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"mms-goldcore/internal/ledger"
	"mms-goldcore/internal/metrics"
	"mms-goldcore/internal/model"
	"mms-goldcore/internal/store"
	"mms-goldcore/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxChainDepth = 3

var (
	levelRates = []decimal.Decimal{
		decimal.RequireFromString("0.15"),
		decimal.RequireFromString("0.10"),
		decimal.RequireFromString("0.05"),
	}
	depositMultiplier = decimal.RequireFromString("1.5")
	bonusRate         = decimal.RequireFromString("0.02")

	monthlyBonusRate  = decimal.RequireFromString("0.02")
	monthlyBonusShare = 0.10
)

// Rate is the commission rate for a referral level and activity type.
// Levels outside 1..3 earn nothing.
func Rate(level int, activity types.ActivityType) decimal.Decimal {
	if level < 1 || level > maxChainDepth {
		return decimal.Zero
	}
	switch activity {
	case types.ActivityTypeTrading:
		return levelRates[level-1]
	case types.ActivityTypeDeposit:
		return levelRates[level-1].Mul(depositMultiplier)
	case types.ActivityTypeBonus:
		return bonusRate
	default:
		return decimal.Zero
	}
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// RecordActivity walks up to three referrer hops from the source
// account and creates a pending commission for each active ancestor.
// No balances move here; disbursement is a separate cycle.
func (s *Service) RecordActivity(ctx context.Context, sourceID string, activity types.ActivityType, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ledger.ErrInvalidAmount
	}
	current, err := s.store.GetAccount(ctx, sourceID)
	if err != nil {
		return ledger.MapStoreError(err)
	}
	now := time.Now().UTC()
	for level := 1; level <= maxChainDepth; level++ {
		if current.ReferrerID == nil {
			return nil
		}
		ancestor, err := s.store.GetAccount(ctx, *current.ReferrerID)
		if err != nil {
			// broken link ends the walk
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return ledger.MapStoreError(err)
		}
		current = ancestor

		if ancestor.Status != types.AccountStatusActive {
			continue
		}
		rate := Rate(level, activity)
		if rate.IsZero() {
			continue
		}
		c := &model.Commission{
			ID:            uuid.NewString(),
			BeneficiaryID: ancestor.ID,
			SourceID:      sourceID,
			Level:         level,
			ActivityType:  activity,
			BaseAmount:    amount,
			Amount:        amount.Mul(rate),
			Status:        types.CommissionStatusPending,
			CreatedAt:     now,
		}
		if err := s.store.CreateCommission(ctx, c); err != nil {
			return fmt.Errorf("create commission: %w", err)
		}
	}
	return nil
}

// DisbursePending pays out up to limit pending commissions in creation
// order. Suspended beneficiaries are skipped and retried next cycle;
// one unit's failure does not stop the batch.
func (s *Service) DisbursePending(ctx context.Context, limit int) (int, error) {
	pending, err := s.store.ListPendingCommissions(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending commissions: %w", err)
	}
	now := time.Now().UTC()
	paid := 0
	for i := range pending {
		c := &pending[i]
		beneficiary, err := s.store.GetAccount(ctx, c.BeneficiaryID)
		if err != nil {
			zap.L().Error("disburse beneficiary lookup failed",
				zap.String("commission_id", c.ID), zap.Error(err))
			continue
		}
		if beneficiary.Status == types.AccountStatusSuspended {
			continue
		}
		credit := &model.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: c.BeneficiaryID,
			Kind:      types.EntryKindCommission,
			Amount:    c.Amount,
			Status:    types.EntryStatusCompleted,
			Reference: c.ID,
			CreatedAt: now,
		}
		if err := s.store.PayCommission(ctx, c.ID, now, credit); err != nil {
			// already paid by a concurrent run
			if !errors.Is(err, store.ErrInvalidState) {
				zap.L().Error("commission payout failed",
					zap.String("commission_id", c.ID), zap.Error(err))
			}
			continue
		}
		metrics.CommissionsPaidTotal.Inc()
		metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindCommission)).Inc()
		paid++
	}
	return paid, nil
}

// AwardMonthlyBonus ranks beneficiaries by commissions paid during the
// given month and credits the top 10% (at least one, when anyone
// earned) a 2% bonus on their month's total. The bonus is a plain
// ledger credit; it never feeds back into the next ranking.
func (s *Service) AwardMonthlyBonus(ctx context.Context, year int, month time.Month) (int, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	totals, err := s.store.SumPaidCommissions(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("sum paid commissions: %w", err)
	}
	if len(totals) == 0 {
		return 0, nil
	}

	type ranked struct {
		id    string
		total decimal.Decimal
	}
	board := make([]ranked, 0, len(totals))
	for id, total := range totals {
		board = append(board, ranked{id: id, total: total})
	}
	sort.Slice(board, func(i, j int) bool {
		if !board[i].total.Equal(board[j].total) {
			return board[i].total.GreaterThan(board[j].total)
		}
		return board[i].id < board[j].id
	})

	winners := int(float64(len(board)) * monthlyBonusShare)
	if winners < 1 {
		winners = 1
	}
	now := time.Now().UTC()
	awarded := 0
	for _, entry := range board[:winners] {
		bonus := entry.total.Mul(monthlyBonusRate)
		if !bonus.IsPositive() {
			continue
		}
		credit := &model.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: entry.id,
			Kind:      types.EntryKindBonus,
			Amount:    bonus,
			Status:    types.EntryStatusCompleted,
			Reference: fmt.Sprintf("monthly-bonus-%04d-%02d", year, month),
			CreatedAt: now,
		}
		if err := s.store.ApplyEntry(ctx, credit); err != nil {
			zap.L().Error("monthly bonus credit failed",
				zap.String("account_id", entry.id), zap.Error(err))
			continue
		}
		metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindBonus)).Inc()
		zap.L().Info("monthly bonus awarded",
			zap.String("account_id", entry.id),
			zap.String("bonus", bonus.String()))
		awarded++
	}
	return awarded, nil
}

type LevelStats struct {
	Level   int             `json:"level"`
	Count   int             `json:"count"`
	Pending decimal.Decimal `json:"pending"`
	Paid    decimal.Decimal `json:"paid"`
}

type Stats struct {
	ReferralCode    string          `json:"referral_code"`
	DirectReferrals int             `json:"direct_referrals"`
	ActiveReferrals int             `json:"active_referrals"`
	TotalPending    decimal.Decimal `json:"total_pending"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	Levels          []LevelStats    `json:"levels"`
}

// StatsFor summarizes an account's referral standing: direct referral
// counts and commission totals broken down by level.
func (s *Service) StatsFor(ctx context.Context, accountID string) (*Stats, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	direct, err := s.store.ListAccountsByReferrer(ctx, accountID)
	if err != nil {
		return nil, err
	}
	commissions, err := s.store.ListCommissionsByBeneficiary(ctx, accountID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ReferralCode:    acc.ReferralCode,
		DirectReferrals: len(direct),
		TotalPending:    decimal.Zero,
		TotalPaid:       decimal.Zero,
		Levels:          make([]LevelStats, maxChainDepth),
	}
	for _, ref := range direct {
		if ref.Status == types.AccountStatusActive {
			stats.ActiveReferrals++
		}
	}
	for i := range stats.Levels {
		stats.Levels[i] = LevelStats{Level: i + 1, Pending: decimal.Zero, Paid: decimal.Zero}
	}
	for _, c := range commissions {
		if c.Level < 1 || c.Level > maxChainDepth {
			continue
		}
		lvl := &stats.Levels[c.Level-1]
		lvl.Count++
		switch c.Status {
		case types.CommissionStatusPending:
			lvl.Pending = lvl.Pending.Add(c.Amount)
			stats.TotalPending = stats.TotalPending.Add(c.Amount)
		case types.CommissionStatusPaid:
			lvl.Paid = lvl.Paid.Add(c.Amount)
			stats.TotalPaid = stats.TotalPaid.Add(c.Amount)
		}
	}
	return stats, nil
}

func (s *Service) Commissions(ctx context.Context, accountID string) ([]model.Commission, error) {
	return s.store.ListCommissionsByBeneficiary(ctx, accountID)
}
