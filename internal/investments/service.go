package investments

import (
	"context"
	"errors"
	"fmt"
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

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the service clock. Tests use this to move time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create locks amount into a new fixed-term investment. The principal
// leaves the balance immediately.
func (s *Service) Create(ctx context.Context, accountID, planID string, amount decimal.Decimal) (*model.Investment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ledger.ErrInvalidAmount
	}
	plan, err := PlanByID(planID)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(plan.MinAmount) || amount.GreaterThan(plan.MaxAmount) {
		return nil, ErrAmountOutOfRange
	}
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if acc.Status == types.AccountStatusSuspended {
		return nil, ledger.ErrAccountSuspended
	}

	now := s.now()
	inv := &model.Investment{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		PlanID:      plan.ID,
		Amount:      amount,
		DailyRate:   plan.DailyRate,
		TotalReturn: amount.Add(amount.Mul(plan.TotalRate)),
		Status:      types.InvestmentStatusActive,
		StartedAt:   now,
		MaturesAt:   now.AddDate(0, 0, plan.DurationDay),
	}
	debit := &model.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      types.EntryKindDeposit,
		Amount:    amount.Neg(),
		Status:    types.EntryStatusCompleted,
		Reference: inv.ID,
		CreatedAt: now,
	}
	if err := s.store.CreateInvestment(ctx, inv, debit); err != nil {
		return nil, ledger.MapStoreError(err)
	}
	metrics.InvestmentsCreatedTotal.WithLabelValues(plan.ID).Inc()
	metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindDeposit)).Inc()
	zap.L().Info("investment created",
		zap.String("investment_id", inv.ID),
		zap.String("account_id", accountID),
		zap.String("plan", plan.ID),
		zap.String("amount", amount.String()))
	return inv, nil
}

// Sell exits an active investment early: the holder gets the principal
// back plus 80% of the interest accrued over whole elapsed days.
func (s *Service) Sell(ctx context.Context, accountID, investmentID string) (decimal.Decimal, error) {
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return decimal.Zero, ledger.MapStoreError(err)
	}
	if inv.AccountID != accountID {
		return decimal.Zero, ledger.ErrNotFound
	}
	if inv.Status != types.InvestmentStatusActive {
		return decimal.Zero, ledger.ErrInvalidState
	}

	now := s.now()
	days := wholeDays(inv.StartedAt, now)
	accrued := inv.Amount.Mul(inv.DailyRate).Mul(decimal.NewFromInt(days))
	payout := inv.Amount.Add(accrued.Mul(earlyExitFactor))
	credit := &model.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      types.EntryKindWithdrawal,
		Amount:    payout,
		Status:    types.EntryStatusCompleted,
		Reference: inv.ID,
		CreatedAt: now,
	}
	if err := s.store.FinishInvestment(ctx, inv.ID, types.InvestmentStatusActive, types.InvestmentStatusCancelled, credit); err != nil {
		return decimal.Zero, ledger.MapStoreError(err)
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindWithdrawal)).Inc()
	zap.L().Info("investment sold early",
		zap.String("investment_id", inv.ID),
		zap.String("account_id", accountID),
		zap.Int64("days_elapsed", days),
		zap.String("payout", payout.String()))
	return payout, nil
}

// Renew rolls a completed investment into a fresh term of the same
// plan, with the old total return as the new principal. The new
// principal must still fit the plan's range.
func (s *Service) Renew(ctx context.Context, accountID, investmentID string) (*model.Investment, error) {
	old, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if old.AccountID != accountID {
		return nil, ledger.ErrNotFound
	}
	if old.Status != types.InvestmentStatusCompleted {
		return nil, ledger.ErrInvalidState
	}
	plan, err := PlanByID(old.PlanID)
	if err != nil {
		return nil, err
	}
	principal := old.TotalReturn
	if principal.LessThan(plan.MinAmount) || principal.GreaterThan(plan.MaxAmount) {
		return nil, ErrAmountOutOfRange
	}

	if err := s.store.FinishInvestment(ctx, old.ID, types.InvestmentStatusCompleted, types.InvestmentStatusRenewed, nil); err != nil {
		return nil, ledger.MapStoreError(err)
	}
	now := s.now()
	inv := &model.Investment{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		PlanID:      plan.ID,
		Amount:      principal,
		DailyRate:   plan.DailyRate,
		TotalReturn: principal.Add(principal.Mul(plan.TotalRate)),
		Status:      types.InvestmentStatusActive,
		StartedAt:   now,
		MaturesAt:   now.AddDate(0, 0, plan.DurationDay),
	}
	debit := &model.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      types.EntryKindDeposit,
		Amount:    principal.Neg(),
		Status:    types.EntryStatusCompleted,
		Reference: inv.ID,
		CreatedAt: now,
	}
	if err := s.store.CreateInvestment(ctx, inv, debit); err != nil {
		// put the old investment back so the renewal can be retried
		if revertErr := s.store.FinishInvestment(ctx, old.ID, types.InvestmentStatusRenewed, types.InvestmentStatusCompleted, nil); revertErr != nil {
			zap.L().Error("renew revert failed",
				zap.String("investment_id", old.ID), zap.Error(revertErr))
		}
		return nil, ledger.MapStoreError(err)
	}
	metrics.InvestmentsCreatedTotal.WithLabelValues(plan.ID).Inc()
	zap.L().Info("investment renewed",
		zap.String("old_investment_id", old.ID),
		zap.String("investment_id", inv.ID),
		zap.String("amount", principal.String()))
	return inv, nil
}

// AccrueDaily credits one day of interest to every active investment
// that has not been paid today. One failure does not stop the batch.
func (s *Service) AccrueDaily(ctx context.Context) (int, error) {
	active, err := s.store.ListActiveInvestments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active investments: %w", err)
	}
	now := s.now()
	paid := 0
	for i := range active {
		inv := &active[i]
		if !now.Before(inv.MaturesAt) {
			continue
		}
		if sameDay(inv.StartedAt, now) {
			continue
		}
		if inv.LastPayout != nil && sameDay(*inv.LastPayout, now) {
			continue
		}
		interest := inv.Amount.Mul(inv.DailyRate)
		credit := &model.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: inv.AccountID,
			Kind:      types.EntryKindInterest,
			Amount:    interest,
			Status:    types.EntryStatusCompleted,
			Reference: inv.ID,
			CreatedAt: now,
		}
		if err := s.store.RecordInterest(ctx, inv.ID, now, credit); err != nil {
			if !errors.Is(err, store.ErrInvalidState) {
				zap.L().Error("interest accrual failed",
					zap.String("investment_id", inv.ID), zap.Error(err))
			}
			continue
		}
		metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindInterest)).Inc()
		paid++
	}
	return paid, nil
}

// MatureDue completes every active investment past its maturity date,
// crediting the full precomputed total return. Re-running is a no-op:
// the active -> completed transition only fires once.
func (s *Service) MatureDue(ctx context.Context) (int, error) {
	active, err := s.store.ListActiveInvestments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active investments: %w", err)
	}
	now := s.now()
	matured := 0
	for i := range active {
		inv := &active[i]
		if now.Before(inv.MaturesAt) {
			continue
		}
		credit := &model.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: inv.AccountID,
			Kind:      types.EntryKindBonus,
			Amount:    inv.TotalReturn,
			Status:    types.EntryStatusCompleted,
			Reference: inv.ID,
			CreatedAt: now,
		}
		if err := s.store.FinishInvestment(ctx, inv.ID, types.InvestmentStatusActive, types.InvestmentStatusCompleted, credit); err != nil {
			if !errors.Is(err, store.ErrInvalidState) {
				zap.L().Error("maturation failed",
					zap.String("investment_id", inv.ID), zap.Error(err))
			}
			continue
		}
		metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindBonus)).Inc()
		zap.L().Info("investment matured",
			zap.String("investment_id", inv.ID),
			zap.String("account_id", inv.AccountID),
			zap.String("total_return", inv.TotalReturn.String()))
		matured++
	}
	return matured, nil
}

func (s *Service) Get(ctx context.Context, accountID, investmentID string) (*model.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if inv.AccountID != accountID {
		return nil, ledger.ErrNotFound
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, accountID string) ([]model.Investment, error) {
	return s.store.ListInvestmentsByAccount(ctx, accountID)
}

func wholeDays(from, to time.Time) int64 {
	if to.Before(from) {
		return 0
	}
	return int64(to.Sub(from).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
