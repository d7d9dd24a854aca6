package kernel

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quillkernel/quill/wire"
)

// Metrics observes the message loop for a Prometheus registry.
type Metrics struct {
	requests       *prometheus.CounterVec
	executions     *prometheus.CounterVec
	execDuration   prometheus.Histogram
	completionHits *prometheus.CounterVec
}

// NewMetrics builds the kernel's collectors and registers them with reg.
// Collectors already present in the registry are adopted instead of
// re-registered, so two kernels in one process can share a registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "requests_total",
			Help:      "Count of dispatched requests by message kind.",
		}, []string{"kind"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "executions_total",
			Help:      "Count of execute requests by reply status.",
		}, []string{"status"}),
		execDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quill",
			Name:      "execution_seconds",
			Help:      "Wall time of one execute request, busy to idle.",
			Buckets:   prometheus.DefBuckets,
		}),
		completionHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "completion_lookups_total",
			Help:      "Count of completion lookups by cache outcome.",
		}, []string{"outcome"}),
	}

	if err := reg.Register(m.requests); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				m.requests = existing
			} else {
				return nil, fmt.Errorf("register requests counter: %w", err)
			}
		} else {
			return nil, fmt.Errorf("register requests counter: %w", err)
		}
	}
	if err := reg.Register(m.executions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				m.executions = existing
			} else {
				return nil, fmt.Errorf("register executions counter: %w", err)
			}
		} else {
			return nil, fmt.Errorf("register executions counter: %w", err)
		}
	}
	if err := reg.Register(m.execDuration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				m.execDuration = existing
			} else {
				return nil, fmt.Errorf("register execution histogram: %w", err)
			}
		} else {
			return nil, fmt.Errorf("register execution histogram: %w", err)
		}
	}
	if err := reg.Register(m.completionHits); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				m.completionHits = existing
			} else {
				return nil, fmt.Errorf("register completion counter: %w", err)
			}
		} else {
			return nil, fmt.Errorf("register completion counter: %w", err)
		}
	}
	return m, nil
}

func (k *Kernel) observeRequest(kind wire.Kind) {
	if k.cfg.Metrics == nil {
		return
	}
	k.cfg.Metrics.requests.WithLabelValues(string(kind)).Inc()
}

func (k *Kernel) observeExecution(ok bool, d time.Duration) {
	if k.cfg.Metrics == nil {
		return
	}
	status := wire.StatusOK
	if !ok {
		status = wire.StatusAbort
	}
	k.cfg.Metrics.executions.WithLabelValues(status).Inc()
	k.cfg.Metrics.execDuration.Observe(d.Seconds())
}

func (k *Kernel) observeCompletion(hit bool) {
	if k.cfg.Metrics == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	k.cfg.Metrics.completionHits.WithLabelValues(outcome).Inc()
}
