package pricefeed

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSimulatedStaysAboveFloor(t *testing.T) {
	base := map[string]decimal.Decimal{"XAUUSD": decimal.RequireFromString("2385.50")}
	feed := NewSimulated(base, decimal.RequireFromString("0.5"))
	floor := base["XAUUSD"].Mul(decimal.RequireFromString("0.95"))
	for i := 0; i < 1000; i++ {
		q, err := feed.Quote("XAUUSD")
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if !q.Bid.IsPositive() || !q.Ask.IsPositive() {
			t.Fatalf("non-positive quote: bid=%s ask=%s", q.Bid, q.Ask)
		}
		if q.Ask.LessThan(q.Bid) {
			t.Fatalf("crossed quote: bid=%s ask=%s", q.Bid, q.Ask)
		}
		mid := q.Ask.Sub(decimal.RequireFromString("0.5"))
		if mid.LessThan(floor) {
			t.Fatalf("mid %s below floor %s", mid, floor)
		}
	}
}

func TestSimulatedSpread(t *testing.T) {
	feed := NewSimulated(DefaultBasePrices(), decimal.RequireFromString("0.5"))
	q, err := feed.Quote("XAUUSD")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.Ask.Sub(q.Bid).Equal(decimal.NewFromInt(1)) {
		t.Fatalf("spread = %s, want 1", q.Ask.Sub(q.Bid))
	}
}

func TestSimulatedUnknownInstrument(t *testing.T) {
	feed := NewSimulated(DefaultBasePrices(), decimal.Zero)
	if _, err := feed.Quote("GBPUSD"); !errors.Is(err, ErrUnknownInstrument) {
		t.Fatalf("err = %v, want ErrUnknownInstrument", err)
	}
}

func TestStatic(t *testing.T) {
	feed := NewStatic()
	feed.Set("XAUUSD", decimal.NewFromInt(2000), decimal.NewFromInt(2001))
	q, err := feed.Quote("XAUUSD")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.Bid.Equal(decimal.NewFromInt(2000)) || !q.Ask.Equal(decimal.NewFromInt(2001)) {
		t.Fatalf("quote = %s/%s", q.Bid, q.Ask)
	}
	if _, err := feed.Quote("XAGUSD"); !errors.Is(err, ErrUnknownInstrument) {
		t.Fatalf("err = %v, want ErrUnknownInstrument", err)
	}
}
