package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCycles struct {
	reprice  atomic.Int32
	accrue   atomic.Int32
	mature   atomic.Int32
	disburse atomic.Int32
	bonus    atomic.Int32
	fail     bool
}

func (f *fakeCycles) Reprice(context.Context) (int, error) {
	f.reprice.Add(1)
	if f.fail {
		return 0, errors.New("boom")
	}
	return 1, nil
}

func (f *fakeCycles) AccrueDaily(context.Context) (int, error) {
	f.accrue.Add(1)
	return 1, nil
}

func (f *fakeCycles) MatureDue(context.Context) (int, error) {
	f.mature.Add(1)
	return 1, nil
}

func (f *fakeCycles) DisbursePending(_ context.Context, limit int) (int, error) {
	f.disburse.Add(1)
	if limit != disburseBatchSize {
		return 0, errors.New("unexpected batch size")
	}
	return 1, nil
}

func (f *fakeCycles) AwardMonthlyBonus(context.Context, int, time.Month) (int, error) {
	f.bonus.Add(1)
	return 0, nil
}

func TestStartIsExclusive(t *testing.T) {
	fake := &fakeCycles{}
	s, err := New(fake, fake, fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start: err = %v, want ErrAlreadyRunning", err)
	}
	if !s.Running() {
		t.Fatal("scheduler should be running")
	}
}

func TestStopRequiresRunning(t *testing.T) {
	fake := &fakeCycles{}
	s, err := New(fake, fake, fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("stop: err = %v, want ErrNotRunning", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Running() {
		t.Fatal("scheduler should be stopped")
	}
	// a stopped scheduler can start again
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}

func TestRunAllExecutesEveryCycle(t *testing.T) {
	fake := &fakeCycles{}
	s, err := New(fake, fake, fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunAll(context.Background()); err != nil {
		t.Fatalf("run all: %v", err)
	}
	if fake.reprice.Load() != 1 || fake.accrue.Load() != 1 || fake.mature.Load() != 1 ||
		fake.disburse.Load() != 1 || fake.bonus.Load() != 1 {
		t.Fatalf("cycle counts = %d/%d/%d/%d/%d, want 1 each",
			fake.reprice.Load(), fake.accrue.Load(), fake.mature.Load(),
			fake.disburse.Load(), fake.bonus.Load())
	}
}

func TestRunAllContinuesPastFailure(t *testing.T) {
	fake := &fakeCycles{fail: true}
	s, err := New(fake, fake, fake)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunAll(context.Background()); err == nil {
		t.Fatal("run all should surface the failure")
	}
	// later cycles still ran
	if fake.accrue.Load() != 1 || fake.disburse.Load() != 1 || fake.bonus.Load() != 1 {
		t.Fatalf("cycle counts = %d/%d/%d, want 1 each",
			fake.accrue.Load(), fake.disburse.Load(), fake.bonus.Load())
	}
}
