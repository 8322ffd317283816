package session

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the session counters exported on /metrics. A nil *Metrics is a no-op.
type Metrics struct {
	logins      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	validations *prometheus.CounterVec
	logouts     *prometheus.CounterVec
	sweeps      *prometheus.CounterVec
	swept       prometheus.Counter
	storeOps    *prometheus.HistogramVec
}

// NewMetrics registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse", Subsystem: "session", Name: "logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse", Subsystem: "session", Name: "refreshes_total",
			Help: "Refresh attempts by result.",
		}, []string{"result"}),
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse", Subsystem: "session", Name: "validations_total",
			Help: "Access token validations by result.",
		}, []string{"result"}),
		logouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse", Subsystem: "session", Name: "logouts_total",
			Help: "Logouts by scope (device or all).",
		}, []string{"scope"}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse", Subsystem: "session", Name: "sweeps_total",
			Help: "Expired-session sweeps by result.",
		}, []string{"result"}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gatehouse", Subsystem: "session", Name: "swept_rows_total",
			Help: "Expired session rows deleted by the sweeper.",
		}),
		storeOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatehouse", Subsystem: "session", Name: "store_op_duration_seconds",
			Help:    "Session store call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// resultLabel collapses err into a small label set.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrSessionCapReached):
		return "cap_reached"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrSessionExpired):
		return "expired"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func (m *Metrics) login(err error) {
	if m != nil {
		m.logins.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) refresh(err error) {
	if m != nil {
		m.refreshes.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) validation(err error) {
	if m != nil {
		m.validations.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) logout(scope string) {
	if m != nil {
		m.logouts.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) sweep(n int64, err error) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(resultLabel(err)).Inc()
	if err == nil && n > 0 {
		m.swept.Add(float64(n))
	}
}

func (m *Metrics) observeStore(op string, start time.Time) {
	if m != nil {
		m.storeOps.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
