package referrals

import (
	"context"
	"testing"
	"time"

	"mms-goldcore/internal/model"
	"mms-goldcore/internal/store"
	"mms-goldcore/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newAccount(t *testing.T, st *store.MemoryStore, referrerID *string) string {
	t.Helper()
	id := uuid.NewString()
	err := st.CreateAccount(context.Background(), &model.Account{
		ID:           id,
		Email:        id + "@example.com",
		ReferralCode: "MMS-" + id[:8],
		ReferrerID:   referrerID,
		Status:       types.AccountStatusActive,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return id
}

// chain builds root <- a <- b <- c <- source and returns them
// root-first.
func chain(t *testing.T, st *store.MemoryStore, depth int) []string {
	t.Helper()
	ids := make([]string, 0, depth)
	var parent *string
	for i := 0; i < depth; i++ {
		id := newAccount(t, st, parent)
		ids = append(ids, id)
		parent = &ids[len(ids)-1]
	}
	return ids
}

func pendingFor(t *testing.T, st *store.MemoryStore, beneficiaryID string) []model.Commission {
	t.Helper()
	all, err := st.ListCommissionsByBeneficiary(context.Background(), beneficiaryID)
	if err != nil {
		t.Fatalf("list commissions: %v", err)
	}
	return all
}

func balanceOf(t *testing.T, st *store.MemoryStore, id string) decimal.Decimal {
	t.Helper()
	acc, err := st.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acc.Balance
}

func TestRates(t *testing.T) {
	cases := []struct {
		level    int
		activity types.ActivityType
		want     string
	}{
		{1, types.ActivityTypeTrading, "0.15"},
		{2, types.ActivityTypeTrading, "0.1"},
		{3, types.ActivityTypeTrading, "0.05"},
		{1, types.ActivityTypeDeposit, "0.225"},
		{2, types.ActivityTypeDeposit, "0.15"},
		{3, types.ActivityTypeDeposit, "0.075"},
		{1, types.ActivityTypeBonus, "0.02"},
		{3, types.ActivityTypeBonus, "0.02"},
		{0, types.ActivityTypeTrading, "0"},
		{4, types.ActivityTypeTrading, "0"},
		{4, types.ActivityTypeDeposit, "0"},
	}
	for _, tc := range cases {
		got := Rate(tc.level, tc.activity)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Rate(%d, %s) = %s, want %s", tc.level, tc.activity, got, tc.want)
		}
	}
}

func TestTradingFanOutThreeLevels(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	// five deep: the fourth ancestor must get nothing
	ids := chain(t, st, 5)
	source := ids[4]
	if err := svc.RecordActivity(ctx, source, types.ActivityTypeTrading, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("record: %v", err)
	}

	wants := []struct {
		beneficiary string
		amount      string
	}{
		{ids[3], "150"}, // level 1: 15%
		{ids[2], "100"}, // level 2: 10%
		{ids[1], "50"},  // level 3: 5%
	}
	for _, w := range wants {
		got := pendingFor(t, st, w.beneficiary)
		if len(got) != 1 {
			t.Fatalf("commissions for %s = %d, want 1", w.beneficiary, len(got))
		}
		if !got[0].Amount.Equal(decimal.RequireFromString(w.amount)) {
			t.Fatalf("amount = %s, want %s", got[0].Amount, w.amount)
		}
		if got[0].Status != types.CommissionStatusPending {
			t.Fatalf("status = %s, want pending", got[0].Status)
		}
	}
	if got := pendingFor(t, st, ids[0]); len(got) != 0 {
		t.Fatalf("level-4 ancestor has %d commissions, want 0", len(got))
	}
}

func TestDepositMultiplier(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	ids := chain(t, st, 3)
	source := ids[2]
	if err := svc.RecordActivity(ctx, source, types.ActivityTypeDeposit, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("record: %v", err)
	}
	// level 2 deposit: 10% * 1.5 = 150
	got := pendingFor(t, st, ids[0])
	if len(got) != 1 || !got[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("level-2 deposit commission = %+v, want one of 150", got)
	}
}

func TestInactiveAncestorEarnsNothing(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	ids := chain(t, st, 4)
	if err := st.SetAccountStatus(ctx, ids[2], types.AccountStatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if err := svc.RecordActivity(ctx, ids[3], types.ActivityTypeTrading, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := pendingFor(t, st, ids[2]); len(got) != 0 {
		t.Fatalf("suspended ancestor has %d commissions, want 0", len(got))
	}
	// the walk continues past the suspended link
	if got := pendingFor(t, st, ids[1]); len(got) != 1 || !got[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("level-2 commission = %+v, want one of 100", got)
	}
}

func TestDisbursePending(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	ids := chain(t, st, 2)
	if err := svc.RecordActivity(ctx, ids[1], types.ActivityTypeTrading, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("record: %v", err)
	}

	paid, err := svc.DisbursePending(ctx, 100)
	if err != nil || paid != 1 {
		t.Fatalf("disburse = (%d, %v), want (1, nil)", paid, err)
	}
	if !balanceOf(t, st, ids[0]).Equal(decimal.NewFromInt(150)) {
		t.Fatalf("balance = %s, want 150", balanceOf(t, st, ids[0]))
	}

	// disbursement is idempotent: a second run pays nothing
	paid, err = svc.DisbursePending(ctx, 100)
	if err != nil || paid != 0 {
		t.Fatalf("repeat disburse = (%d, %v), want (0, nil)", paid, err)
	}
	if !balanceOf(t, st, ids[0]).Equal(decimal.NewFromInt(150)) {
		t.Fatalf("balance after repeat = %s, want 150", balanceOf(t, st, ids[0]))
	}
}

func TestDisburseSkipsSuspendedBeneficiary(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	ids := chain(t, st, 2)
	if err := svc.RecordActivity(ctx, ids[1], types.ActivityTypeTrading, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("record: %v", err)
	}
	// suspended between earning and payout: stays pending
	if err := st.SetAccountStatus(ctx, ids[0], types.AccountStatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	paid, err := svc.DisbursePending(ctx, 100)
	if err != nil || paid != 0 {
		t.Fatalf("disburse = (%d, %v), want (0, nil)", paid, err)
	}
	got := pendingFor(t, st, ids[0])
	if len(got) != 1 || got[0].Status != types.CommissionStatusPending {
		t.Fatalf("commission = %+v, want still pending", got)
	}

	// reinstated beneficiaries get paid on the next cycle
	if err := st.SetAccountStatus(ctx, ids[0], types.AccountStatusActive); err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	paid, err = svc.DisbursePending(ctx, 100)
	if err != nil || paid != 1 {
		t.Fatalf("retry disburse = (%d, %v), want (1, nil)", paid, err)
	}
}

func TestDisburseRespectsLimit(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	ids := chain(t, st, 2)
	for i := 0; i < 5; i++ {
		if err := svc.RecordActivity(ctx, ids[1], types.ActivityTypeTrading, decimal.NewFromInt(100)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	paid, err := svc.DisbursePending(ctx, 3)
	if err != nil || paid != 3 {
		t.Fatalf("disburse = (%d, %v), want (3, nil)", paid, err)
	}
	paid, err = svc.DisbursePending(ctx, 3)
	if err != nil || paid != 2 {
		t.Fatalf("second disburse = (%d, %v), want (2, nil)", paid, err)
	}
}

func TestMonthlyBonusTopEarner(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	// three independent referrers with different earnings
	top := chain(t, st, 2)
	mid := chain(t, st, 2)
	low := chain(t, st, 2)
	if err := svc.RecordActivity(ctx, top[1], types.ActivityTypeTrading, decimal.NewFromInt(10000)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordActivity(ctx, mid[1], types.ActivityTypeTrading, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordActivity(ctx, low[1], types.ActivityTypeTrading, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.DisbursePending(ctx, 100); err != nil {
		t.Fatalf("disburse: %v", err)
	}

	now := time.Now().UTC()
	awarded, err := svc.AwardMonthlyBonus(ctx, now.Year(), now.Month())
	if err != nil {
		t.Fatalf("bonus: %v", err)
	}
	// 10% of three earners rounds down to zero, floor is one winner
	if awarded != 1 {
		t.Fatalf("awarded = %d, want 1", awarded)
	}
	// top earned 1500 paid commission; bonus is 2% of that
	if !balanceOf(t, st, top[0]).Equal(decimal.NewFromInt(1530)) {
		t.Fatalf("top balance = %s, want 1530", balanceOf(t, st, top[0]))
	}
	if !balanceOf(t, st, mid[0]).Equal(decimal.NewFromInt(150)) {
		t.Fatalf("mid balance = %s, want 150", balanceOf(t, st, mid[0]))
	}
}

func TestMonthlyBonusEmptyMonth(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	awarded, err := svc.AwardMonthlyBonus(context.Background(), 2026, time.January)
	if err != nil || awarded != 0 {
		t.Fatalf("bonus = (%d, %v), want (0, nil)", awarded, err)
	}
}

func TestStats(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	ids := chain(t, st, 2)
	extra := newAccount(t, st, &ids[0])
	if err := st.SetAccountStatus(ctx, extra, types.AccountStatusInactive); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := svc.RecordActivity(ctx, ids[1], types.ActivityTypeTrading, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("record: %v", err)
	}

	stats, err := svc.StatsFor(ctx, ids[0])
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.DirectReferrals != 2 || stats.ActiveReferrals != 1 {
		t.Fatalf("referrals = %d/%d, want 2/1", stats.DirectReferrals, stats.ActiveReferrals)
	}
	if !stats.TotalPending.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("pending = %s, want 150", stats.TotalPending)
	}
	if stats.Levels[0].Count != 1 {
		t.Fatalf("level-1 count = %d, want 1", stats.Levels[0].Count)
	}
}
