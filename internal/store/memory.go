package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mms-goldcore/internal/model"
	"mms-goldcore/internal/types"

	"github.com/shopspring/decimal"
)

// MemoryStore is the in-memory Store used by tests and local runs.
// A single mutex makes every method atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*model.Account
	entries     map[string][]model.LedgerEntry
	positions   map[string]*model.Position
	investments map[string]*model.Investment
	commissions map[string]*model.Commission
	commOrder   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*model.Account),
		entries:     make(map[string][]model.LedgerEntry),
		positions:   make(map[string]*model.Position),
		investments: make(map[string]*model.Investment),
		commissions: make(map[string]*model.Commission),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acc.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, acc.Email) {
			return ErrDuplicate
		}
	}
	cp := *acc
	s.accounts[acc.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.Email, email) {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetAccountByReferralCode(_ context.Context, code string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if acc.ReferralCode == code {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAccountsByReferrer(_ context.Context, referrerID string) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Account, 0)
	for _, acc := range s.accounts {
		if acc.ReferrerID != nil && *acc.ReferrerID == referrerID {
			out = append(out, *acc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetAccountStatus(_ context.Context, id string, status types.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.Status = status
	return nil
}

// applyEntryLocked mutates the balance and appends the entry. Callers
// hold the write lock.
func (s *MemoryStore) applyEntryLocked(entry *model.LedgerEntry) error {
	acc, ok := s.accounts[entry.AccountID]
	if !ok {
		return ErrNotFound
	}
	next := acc.Balance.Add(entry.Amount)
	if next.IsNegative() {
		return ErrInsufficientBalance
	}
	acc.Balance = next
	cp := *entry
	s.entries[entry.AccountID] = append(s.entries[entry.AccountID], cp)
	return nil
}

func (s *MemoryStore) ApplyEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyEntryLocked(entry)
}

func (s *MemoryStore) ListEntries(_ context.Context, accountID string, limit int) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, ErrNotFound
	}
	all := s.entries[accountID]
	out := make([]model.LedgerEntry, len(all))
	copy(out, all)
	// newest first
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) OpenPosition(_ context.Context, p *model.Position, margin *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[p.ID]; ok {
		return ErrDuplicate
	}
	if err := s.applyEntryLocked(margin); err != nil {
		return err
	}
	cp := clonePosition(p)
	s.positions[p.ID] = cp
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePosition(p), nil
}

func (s *MemoryStore) ListOpenPositions(_ context.Context) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0)
	for _, p := range s.positions {
		if p.Status == types.PositionStatusOpen {
			out = append(out, *clonePosition(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *MemoryStore) ListPositionsByAccount(_ context.Context, accountID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0)
	for _, p := range s.positions {
		if p.AccountID == accountID {
			out = append(out, *clonePosition(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *MemoryStore) UpdatePositionMark(_ context.Context, id string, mark, profit decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != types.PositionStatusOpen {
		return ErrInvalidState
	}
	p.MarkPrice = mark
	p.Profit = profit
	return nil
}

func (s *MemoryStore) SettlePosition(_ context.Context, id string, closePrice, profit decimal.Decimal, closedAt time.Time, settlement *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != types.PositionStatusOpen {
		return ErrInvalidState
	}
	if settlement != nil {
		if err := s.applyEntryLocked(settlement); err != nil {
			return err
		}
	}
	p.Status = types.PositionStatusClosed
	p.MarkPrice = closePrice
	p.Profit = profit
	cpPrice := closePrice
	p.ClosePrice = &cpPrice
	at := closedAt
	p.ClosedAt = &at
	return nil
}

func (s *MemoryStore) CreateInvestment(_ context.Context, inv *model.Investment, debit *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investments[inv.ID]; ok {
		return ErrDuplicate
	}
	if debit != nil {
		if err := s.applyEntryLocked(debit); err != nil {
			return err
		}
	}
	cp := cloneInvestment(inv)
	s.investments[inv.ID] = cp
	return nil
}

func (s *MemoryStore) GetInvestment(_ context.Context, id string) (*model.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneInvestment(inv), nil
}

func (s *MemoryStore) ListInvestmentsByAccount(_ context.Context, accountID string) ([]model.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Investment, 0)
	for _, inv := range s.investments {
		if inv.AccountID == accountID {
			out = append(out, *cloneInvestment(inv))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) ListActiveInvestments(_ context.Context) ([]model.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Investment, 0)
	for _, inv := range s.investments {
		if inv.Status == types.InvestmentStatusActive {
			out = append(out, *cloneInvestment(inv))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) RecordInterest(_ context.Context, investmentID string, payoutAt time.Time, credit *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[investmentID]
	if !ok {
		return ErrNotFound
	}
	if inv.Status != types.InvestmentStatusActive {
		return ErrInvalidState
	}
	if err := s.applyEntryLocked(credit); err != nil {
		return err
	}
	at := payoutAt
	inv.LastPayout = &at
	return nil
}

func (s *MemoryStore) FinishInvestment(_ context.Context, id string, from, to types.InvestmentStatus, credit *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[id]
	if !ok {
		return ErrNotFound
	}
	if inv.Status != from {
		return ErrInvalidState
	}
	if credit != nil {
		if err := s.applyEntryLocked(credit); err != nil {
			return err
		}
	}
	inv.Status = to
	return nil
}

func (s *MemoryStore) CreateCommission(_ context.Context, c *model.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commissions[c.ID]; ok {
		return ErrDuplicate
	}
	cp := cloneCommission(c)
	s.commissions[c.ID] = cp
	s.commOrder = append(s.commOrder, c.ID)
	return nil
}

func (s *MemoryStore) GetCommission(_ context.Context, id string) (*model.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCommission(c), nil
}

func (s *MemoryStore) ListPendingCommissions(_ context.Context, limit int) ([]model.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Commission, 0)
	for _, id := range s.commOrder {
		c := s.commissions[id]
		if c.Status != types.CommissionStatusPending {
			continue
		}
		out = append(out, *cloneCommission(c))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListCommissionsByBeneficiary(_ context.Context, beneficiaryID string) ([]model.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Commission, 0)
	for _, id := range s.commOrder {
		c := s.commissions[id]
		if c.BeneficiaryID == beneficiaryID {
			out = append(out, *cloneCommission(c))
		}
	}
	return out, nil
}

func (s *MemoryStore) PayCommission(_ context.Context, id string, paidAt time.Time, credit *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commissions[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != types.CommissionStatusPending {
		return ErrInvalidState
	}
	if err := s.applyEntryLocked(credit); err != nil {
		return err
	}
	c.Status = types.CommissionStatusPaid
	at := paidAt
	c.PaidAt = &at
	return nil
}

func (s *MemoryStore) SumPaidCommissions(_ context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal)
	for _, c := range s.commissions {
		if c.Status != types.CommissionStatusPaid || c.PaidAt == nil {
			continue
		}
		if c.PaidAt.Before(from) || !c.PaidAt.Before(to) {
			continue
		}
		out[c.BeneficiaryID] = out[c.BeneficiaryID].Add(c.Amount)
	}
	return out, nil
}

func clonePosition(p *model.Position) *model.Position {
	cp := *p
	if p.StopLoss != nil {
		v := *p.StopLoss
		cp.StopLoss = &v
	}
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		cp.TakeProfit = &v
	}
	if p.ClosePrice != nil {
		v := *p.ClosePrice
		cp.ClosePrice = &v
	}
	if p.ClosedAt != nil {
		v := *p.ClosedAt
		cp.ClosedAt = &v
	}
	return &cp
}

func cloneInvestment(inv *model.Investment) *model.Investment {
	cp := *inv
	if inv.LastPayout != nil {
		v := *inv.LastPayout
		cp.LastPayout = &v
	}
	return &cp
}

func cloneCommission(c *model.Commission) *model.Commission {
	cp := *c
	if c.PaidAt != nil {
		v := *c.PaidAt
		cp.PaidAt = &v
	}
	return &cp
}
