package accounts

import (
	"context"

	"mms-goldcore/internal/ledger"
	"mms-goldcore/internal/model"
	"mms-goldcore/internal/store"
	"mms-goldcore/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActivityRecorder matches the referral engine's fan-out entry point.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, sourceID string, activity types.ActivityType, amount decimal.Decimal) error
}

type Service struct {
	store     store.Store
	ledger    *ledger.Service
	referrals ActivityRecorder
}

func NewService(st store.Store, lg *ledger.Service, referrals ActivityRecorder) *Service {
	return &Service{store: st, ledger: lg, referrals: referrals}
}

func (s *Service) Get(ctx context.Context, accountID string) (*model.Account, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	return acc, nil
}

// Deposit credits external funds and fans the completed deposit out to
// the referral chain.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*model.LedgerEntry, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if acc.Status == types.AccountStatusSuspended {
		return nil, ledger.ErrAccountSuspended
	}
	entry, err := s.ledger.Credit(ctx, accountID, types.EntryKindDeposit, amount, reference)
	if err != nil {
		return nil, err
	}
	if s.referrals != nil {
		if err := s.referrals.RecordActivity(ctx, accountID, types.ActivityTypeDeposit, amount); err != nil {
			zap.L().Error("deposit referral fan-out failed",
				zap.String("account_id", accountID), zap.Error(err))
		}
	}
	return entry, nil
}

// Withdraw debits funds for an external payout.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*model.LedgerEntry, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if acc.Status == types.AccountStatusSuspended {
		return nil, ledger.ErrAccountSuspended
	}
	return s.ledger.Debit(ctx, accountID, types.EntryKindWithdrawal, amount, reference)
}

func (s *Service) SetStatus(ctx context.Context, accountID string, status types.AccountStatus) error {
	return ledger.MapStoreError(s.store.SetAccountStatus(ctx, accountID, status))
}
