package positions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mms-goldcore/internal/ledger"
	"mms-goldcore/internal/metrics"
	"mms-goldcore/internal/model"
	"mms-goldcore/internal/pricefeed"
	"mms-goldcore/internal/store"
	"mms-goldcore/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	minTradeAmount  = decimal.NewFromInt(10)
	defaultLeverage = decimal.NewFromInt(100)
	minLeverage     = decimal.NewFromInt(1)
	maxLeverage     = decimal.NewFromInt(500)
)

// ActivityRecorder receives referral-relevant activity. Failures here
// never abort the trade that produced them.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, sourceID string, activity types.ActivityType, amount decimal.Decimal) error
}

type Service struct {
	store     store.Store
	feed      pricefeed.Source
	referrals ActivityRecorder
}

func NewService(st store.Store, feed pricefeed.Source, referrals ActivityRecorder) *Service {
	return &Service{store: st, feed: feed, referrals: referrals}
}

type OpenRequest struct {
	AccountID  string
	Instrument string
	Side       types.PositionSide
	Amount     decimal.Decimal
	Leverage   decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}

// Open reserves margin (amount/leverage) and opens the position at the
// side of the quote unfavorable to the trader: longs fill at the ask,
// shorts at the bid.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*model.Position, error) {
	if req.Side != types.PositionSideLong && req.Side != types.PositionSideShort {
		return nil, ErrInvalidSide
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ledger.ErrInvalidAmount
	}
	if req.Amount.LessThan(minTradeAmount) {
		return nil, ErrBelowMinimumTrade
	}
	leverage := req.Leverage
	if leverage.IsZero() {
		leverage = defaultLeverage
	}
	// leverage is a whole multiplier: 1x up to 500x
	if leverage.LessThan(minLeverage) || !leverage.IsInteger() || leverage.GreaterThan(maxLeverage) {
		return nil, ErrInvalidLeverage
	}

	acc, err := s.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if acc.Status == types.AccountStatusSuspended {
		return nil, ledger.ErrAccountSuspended
	}

	quote, err := s.feed.Quote(req.Instrument)
	if err != nil {
		return nil, err
	}
	openPrice := quote.Ask
	if req.Side == types.PositionSideShort {
		openPrice = quote.Bid
	}

	margin := req.Amount.Div(leverage)
	now := time.Now().UTC()
	p := &model.Position{
		ID:         uuid.NewString(),
		AccountID:  req.AccountID,
		Instrument: req.Instrument,
		Side:       req.Side,
		Amount:     req.Amount,
		Leverage:   leverage,
		Margin:     margin,
		OpenPrice:  openPrice,
		MarkPrice:  openPrice,
		Profit:     decimal.Zero,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Status:     types.PositionStatusOpen,
		OpenedAt:   now,
	}
	entry := &model.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		Kind:      types.EntryKindTradeMargin,
		Amount:    margin.Neg(),
		Status:    types.EntryStatusCompleted,
		Reference: p.ID,
		CreatedAt: now,
	}
	if err := s.store.OpenPosition(ctx, p, entry); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, ErrInsufficientMargin
		}
		return nil, ledger.MapStoreError(err)
	}
	metrics.PositionsOpenedTotal.Inc()
	metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindTradeMargin)).Inc()
	zap.L().Info("position opened",
		zap.String("position_id", p.ID),
		zap.String("account_id", p.AccountID),
		zap.String("instrument", p.Instrument),
		zap.String("side", string(p.Side)),
		zap.String("amount", p.Amount.String()),
		zap.String("open_price", p.OpenPrice.String()))

	if s.referrals != nil {
		if err := s.referrals.RecordActivity(ctx, req.AccountID, types.ActivityTypeTrading, req.Amount); err != nil {
			zap.L().Error("referral fan-out failed", zap.String("position_id", p.ID), zap.Error(err))
		}
	}
	return p, nil
}

// Close settles the position at the current quote: longs exit at the
// bid, shorts at the ask. Only the owner may close; anyone else sees
// not-found.
func (s *Service) Close(ctx context.Context, accountID, positionID string) (*model.Position, error) {
	p, err := s.store.GetPosition(ctx, positionID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if p.AccountID != accountID {
		return nil, ledger.ErrNotFound
	}
	if p.Status != types.PositionStatusOpen {
		return nil, ledger.ErrInvalidState
	}
	quote, err := s.feed.Quote(p.Instrument)
	if err != nil {
		return nil, err
	}
	closePrice := quote.Bid
	if p.Side == types.PositionSideShort {
		closePrice = quote.Ask
	}
	return s.settle(ctx, p, closePrice, "manual")
}

// Profit computes the unrealized profit of a position marked at price.
func Profit(p *model.Position, price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.OpenPrice)
	if p.Side == types.PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(p.Leverage).Mul(p.Amount).Div(p.OpenPrice)
}

// settle closes p at closePrice and credits margin plus profit back to
// the account. A settlement of zero or less credits nothing; losses
// past the margin are logged for reconciliation.
func (s *Service) settle(ctx context.Context, p *model.Position, closePrice decimal.Decimal, reason string) (*model.Position, error) {
	profit := Profit(p, closePrice)
	settlement := p.Margin.Add(profit)
	now := time.Now().UTC()

	var entry *model.LedgerEntry
	if settlement.IsPositive() {
		entry = &model.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: p.AccountID,
			Kind:      types.EntryKindTradeSettlement,
			Amount:    settlement,
			Status:    types.EntryStatusCompleted,
			Reference: p.ID,
			CreatedAt: now,
		}
	}
	if err := s.store.SettlePosition(ctx, p.ID, closePrice, profit, now, entry); err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if entry != nil {
		metrics.LedgerEntriesTotal.WithLabelValues(string(types.EntryKindTradeSettlement)).Inc()
	}
	metrics.PositionsClosedTotal.WithLabelValues(reason).Inc()
	zap.L().Info("position closed",
		zap.String("position_id", p.ID),
		zap.String("account_id", p.AccountID),
		zap.String("reason", reason),
		zap.String("close_price", closePrice.String()),
		zap.String("profit", profit.String()))
	if settlement.IsNegative() {
		zap.L().Warn("loss exceeded margin",
			zap.String("position_id", p.ID),
			zap.String("shortfall", settlement.Neg().String()))
	}

	p.Status = types.PositionStatusClosed
	p.MarkPrice = closePrice
	p.Profit = profit
	p.ClosePrice = &closePrice
	p.ClosedAt = &now
	return p, nil
}

// Reprice marks every open position to the current quote and fires
// stop-loss / take-profit triggers. Stop-loss wins when both would
// fire on the same mark; at most one trigger closes a position per
// cycle. One position's failure does not stop the sweep.
func (s *Service) Reprice(ctx context.Context) (int, error) {
	open, err := s.store.ListOpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open positions: %w", err)
	}
	processed := 0
	for i := range open {
		p := &open[i]
		quote, err := s.feed.Quote(p.Instrument)
		if err != nil {
			zap.L().Error("reprice quote failed", zap.String("position_id", p.ID), zap.Error(err))
			continue
		}
		mark := quote.Bid
		if p.Side == types.PositionSideShort {
			mark = quote.Ask
		}
		profit := Profit(p, mark)
		if err := s.store.UpdatePositionMark(ctx, p.ID, mark, profit); err != nil {
			// closed concurrently: nothing to do here
			if !errors.Is(err, store.ErrInvalidState) {
				zap.L().Error("reprice mark failed", zap.String("position_id", p.ID), zap.Error(err))
			}
			continue
		}
		processed++

		switch {
		case stopLossHit(p, mark):
			if _, err := s.settle(ctx, p, mark, "stop_loss"); err != nil && !errors.Is(err, ledger.ErrInvalidState) {
				zap.L().Error("stop-loss close failed", zap.String("position_id", p.ID), zap.Error(err))
			}
		case takeProfitHit(p, mark):
			if _, err := s.settle(ctx, p, mark, "take_profit"); err != nil && !errors.Is(err, ledger.ErrInvalidState) {
				zap.L().Error("take-profit close failed", zap.String("position_id", p.ID), zap.Error(err))
			}
		}
	}
	return processed, nil
}

func stopLossHit(p *model.Position, mark decimal.Decimal) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Side == types.PositionSideLong {
		return mark.LessThanOrEqual(*p.StopLoss)
	}
	return mark.GreaterThanOrEqual(*p.StopLoss)
}

func takeProfitHit(p *model.Position, mark decimal.Decimal) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Side == types.PositionSideLong {
		return mark.GreaterThanOrEqual(*p.TakeProfit)
	}
	return mark.LessThanOrEqual(*p.TakeProfit)
}

func (s *Service) Get(ctx context.Context, accountID, positionID string) (*model.Position, error) {
	p, err := s.store.GetPosition(ctx, positionID)
	if err != nil {
		return nil, ledger.MapStoreError(err)
	}
	if p.AccountID != accountID {
		return nil, ledger.ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, accountID string) ([]model.Position, error) {
	return s.store.ListPositionsByAccount(ctx, accountID)
}
