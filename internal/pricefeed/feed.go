package pricefeed

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownInstrument = errors.New("pricefeed: unknown instrument")

type Quote struct {
	Instrument string          `json:"instrument"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	At         time.Time       `json:"at"`
}

// Source supplies two-sided quotes. Implementations must return
// strictly positive bid and ask.
type Source interface {
	Quote(instrument string) (Quote, error)
	Instruments() []string
}

var (
	volatility = decimal.RequireFromString("0.001")
	floorRatio = decimal.RequireFromString("0.95")
)

// DefaultBasePrices seeds the simulated feed with the instruments the
// platform trades.
func DefaultBasePrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"XAUUSD": decimal.RequireFromString("2385.50"),
		"XAGUSD": decimal.RequireFromString("31.25"),
		"BTCUSD": decimal.RequireFromString("67500.00"),
		"ETHUSD": decimal.RequireFromString("3850.00"),
	}
}

// Simulated is a bounded random walk around per-instrument base
// prices. Each Quote moves the mid by up to ±0.1% and never lets it
// fall below 95% of the base.
type Simulated struct {
	mu         sync.Mutex
	rng        *rand.Rand
	halfSpread decimal.Decimal
	base       map[string]decimal.Decimal
	last       map[string]decimal.Decimal
}

func NewSimulated(base map[string]decimal.Decimal, halfSpread decimal.Decimal) *Simulated {
	last := make(map[string]decimal.Decimal, len(base))
	bases := make(map[string]decimal.Decimal, len(base))
	for instrument, price := range base {
		bases[instrument] = price
		last[instrument] = price
	}
	return &Simulated{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		halfSpread: halfSpread,
		base:       bases,
		last:       last,
	}
}

func (s *Simulated) Quote(instrument string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mid, ok := s.last[instrument]
	if !ok {
		return Quote{}, ErrUnknownInstrument
	}
	swing := decimal.NewFromFloat(s.rng.Float64()*2 - 1)
	mid = mid.Add(mid.Mul(volatility).Mul(swing))
	if floor := s.base[instrument].Mul(floorRatio); mid.LessThan(floor) {
		mid = floor
	}
	s.last[instrument] = mid

	bid := mid.Sub(s.halfSpread)
	if !bid.IsPositive() {
		bid = mid
	}
	return Quote{
		Instrument: instrument,
		Bid:        bid,
		Ask:        mid.Add(s.halfSpread),
		At:         time.Now().UTC(),
	}, nil
}

func (s *Simulated) Instruments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.base))
	for instrument := range s.base {
		out = append(out, instrument)
	}
	sort.Strings(out)
	return out
}

// Static serves fixed quotes, for tests and as the seam for plugging in
// a real upstream feed.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStatic() *Static {
	return &Static{quotes: make(map[string]Quote)}
}

// Set pins the instrument to a fixed bid/ask.
func (s *Static) Set(instrument string, bid, ask decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[instrument] = Quote{Instrument: instrument, Bid: bid, Ask: ask}
}

// SetMid pins the instrument to a zero-spread quote.
func (s *Static) SetMid(instrument string, mid decimal.Decimal) {
	s.Set(instrument, mid, mid)
}

func (s *Static) Quote(instrument string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[instrument]
	if !ok {
		return Quote{}, ErrUnknownInstrument
	}
	q.At = time.Now().UTC()
	return q, nil
}

func (s *Static) Instruments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.quotes))
	for instrument := range s.quotes {
		out = append(out, instrument)
	}
	sort.Strings(out)
	return out
}
