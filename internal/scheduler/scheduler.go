package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"mms-goldcore/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning = errors.New("scheduler: already running")
	ErrNotRunning     = errors.New("scheduler: not running")
)

// disburseBatchSize caps how many pending commissions one cycle pays.
const disburseBatchSize = 100

type Repricer interface {
	Reprice(ctx context.Context) (int, error)
}

type InvestmentCycles interface {
	AccrueDaily(ctx context.Context) (int, error)
	MatureDue(ctx context.Context) (int, error)
}

type Disburser interface {
	DisbursePending(ctx context.Context, limit int) (int, error)
	AwardMonthlyBonus(ctx context.Context, year int, month time.Month) (int, error)
}

const (
	specReprice      = "*/30 * * * * *" // every 30 seconds
	specDailyAccrual = "0 0 0 * * *"    // midnight UTC
	specMaturation   = "0 0 * * * *"    // hourly
	specDisburse     = "0 30 * * * *"   // hourly, offset from maturation
	specMonthlyBonus = "0 0 1 1 * *"    // first of month, 01:00 UTC
)

// Scheduler drives the periodic cycles. Start and Stop are guarded by
// an atomic flag, so a second Start is refused instead of doubling
// every cadence. Jobs are wrapped with skip-if-still-running: a slow
// cycle delays its next run rather than overlapping it.
type Scheduler struct {
	cron        *cron.Cron
	running     atomic.Bool
	positions   Repricer
	investments InvestmentCycles
	referrals   Disburser
}

func New(positions Repricer, investments InvestmentCycles, referrals Disburser) (*Scheduler, error) {
	s := &Scheduler{
		positions:   positions,
		investments: investments,
		referrals:   referrals,
	}
	logger := &cronLogger{log: zap.L()}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)

	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context) (int, error)
	}{
		{specReprice, "reprice", s.positions.Reprice},
		{specDailyAccrual, "daily_interest", s.investments.AccrueDaily},
		{specMaturation, "maturation", s.investments.MatureDue},
		{specDisburse, "disbursement", func(ctx context.Context) (int, error) {
			return s.referrals.DisbursePending(ctx, disburseBatchSize)
		}},
		{specMonthlyBonus, "monthly_bonus", func(ctx context.Context) (int, error) {
			prev := time.Now().UTC().AddDate(0, -1, 0)
			return s.referrals.AwardMonthlyBonus(ctx, prev.Year(), prev.Month())
		}},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { runCycle(job.name, job.run) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runCycle(name string, run func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()
	n, err := run(ctx)
	if err != nil {
		metrics.SchedulerCycleRuns.WithLabelValues(name, "error").Inc()
		zap.L().Error("cycle failed", zap.String("cycle", name), zap.Error(err))
		return
	}
	metrics.SchedulerCycleRuns.WithLabelValues(name, "ok").Inc()
	if n > 0 {
		zap.L().Info("cycle completed",
			zap.String("cycle", name),
			zap.Int("processed", n),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Scheduler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.cron.Start()
	zap.L().Info("scheduler started")
	return nil
}

// Stop halts scheduling and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	<-s.cron.Stop().Done()
	zap.L().Info("scheduler stopped")
	return nil
}

func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// RunAll executes every cycle once, in order. It exists for manual
// triggering and tests; it works whether or not the scheduler runs.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var errs []error
	if _, err := s.positions.Reprice(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.investments.AccrueDaily(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.investments.MatureDue(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.referrals.DisbursePending(ctx, disburseBatchSize); err != nil {
		errs = append(errs, err)
	}
	prev := time.Now().UTC().AddDate(0, -1, 0)
	if _, err := s.referrals.AwardMonthlyBonus(ctx, prev.Year(), prev.Month()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type cronLogger struct {
	log *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
