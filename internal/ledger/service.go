package ledger

import (
	"context"
	"errors"
	"time"

	"mms-goldcore/internal/metrics"
	"mms-goldcore/internal/model"
	"mms-goldcore/internal/store"
	"mms-goldcore/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service owns the two money-movement primitives every engine settles
// through. Amounts are strictly positive; the direction is the method.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Credit adds amount to the account and records a completed entry.
func (s *Service) Credit(ctx context.Context, accountID string, kind types.EntryKind, amount decimal.Decimal, reference string) (*model.LedgerEntry, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	return s.apply(ctx, accountID, kind, amount, reference)
}

// Debit removes amount from the account and records a completed entry.
// Fails with ErrInsufficientFunds when the balance cannot cover it;
// nothing is written in that case.
func (s *Service) Debit(ctx context.Context, accountID string, kind types.EntryKind, amount decimal.Decimal, reference string) (*model.LedgerEntry, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	return s.apply(ctx, accountID, kind, amount.Neg(), reference)
}

func (s *Service) apply(ctx context.Context, accountID string, kind types.EntryKind, signed decimal.Decimal, reference string) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Amount:    signed,
		Status:    types.EntryStatusCompleted,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.ApplyEntry(ctx, entry); err != nil {
		return nil, MapStoreError(err)
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(kind)).Inc()
	zap.L().Debug("ledger entry applied",
		zap.String("account_id", accountID),
		zap.String("kind", string(kind)),
		zap.String("amount", signed.String()))
	return entry, nil
}

func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, MapStoreError(err)
	}
	return acc.Balance, nil
}

func (s *Service) Entries(ctx context.Context, accountID string, limit int) ([]model.LedgerEntry, error) {
	entries, err := s.store.ListEntries(ctx, accountID, limit)
	if err != nil {
		return nil, MapStoreError(err)
	}
	return entries, nil
}

// MapStoreError lifts store sentinels into the errors engines and
// handlers branch on.
func MapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrInvalidState):
		return ErrInvalidState
	default:
		return err
	}
}
