package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_ledger_entries_total",
		Help: "Completed ledger entries by kind.",
	}, []string{"kind"})

	PositionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mms_positions_opened_total",
		Help: "Positions opened.",
	})

	PositionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_positions_closed_total",
		Help: "Positions closed by reason.",
	}, []string{"reason"})

	InvestmentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_investments_created_total",
		Help: "Investments created by plan.",
	}, []string{"plan"})

	CommissionsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mms_commissions_paid_total",
		Help: "Referral commissions disbursed.",
	})

	SchedulerCycleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_scheduler_cycle_runs_total",
		Help: "Scheduler cycle executions by cycle and outcome.",
	}, []string{"cycle", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mms_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		HTTPRequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
