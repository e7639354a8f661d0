package investments

import (
	"errors"

	"mms-goldcore/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownPlan      = errors.New("investments: unknown plan")
	ErrAmountOutOfRange = errors.New("investments: amount outside plan range")
)

// earlyExitFactor is the share of accrued interest paid out when an
// investment is sold before maturity.
var earlyExitFactor = decimal.RequireFromString("0.8")

var plans = []model.Plan{
	{
		ID:          "3days",
		Name:        "3 Days Plan",
		DurationDay: 3,
		DailyRate:   decimal.RequireFromString("0.055"),
		MinAmount:   decimal.NewFromInt(2000),
		MaxAmount:   decimal.NewFromInt(5000),
		TotalRate:   decimal.RequireFromString("0.165"),
	},
	{
		ID:          "6days",
		Name:        "6 Days Plan",
		DurationDay: 6,
		DailyRate:   decimal.RequireFromString("0.075"),
		MinAmount:   decimal.NewFromInt(5000),
		MaxAmount:   decimal.NewFromInt(15000),
		TotalRate:   decimal.RequireFromString("0.45"),
	},
	{
		ID:          "12days",
		Name:        "12 Days Plan",
		DurationDay: 12,
		DailyRate:   decimal.RequireFromString("0.095"),
		MinAmount:   decimal.NewFromInt(15000),
		MaxAmount:   decimal.NewFromInt(50000),
		TotalRate:   decimal.RequireFromString("1.14"),
	},
}

// Plans returns the fixed plan catalogue.
func Plans() []model.Plan {
	out := make([]model.Plan, len(plans))
	copy(out, plans)
	return out
}

func PlanByID(id string) (model.Plan, error) {
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Plan{}, ErrUnknownPlan
}
