package observers

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anggasct/tickfsm"
)

// MetricsObserver exports machine activity as Prometheus metrics
type MetricsObserver struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	entries     *prometheus.CounterVec
	dwell       *prometheus.HistogramVec

	mutex          sync.Mutex
	lastStateEntry map[string]time.Time
}

type metricsConfig struct {
	namespace string
	buckets   []float64
}

// MetricsOption configures a MetricsObserver
type MetricsOption func(*metricsConfig)

// WithNamespace replaces the default "tickfsm" metric prefix
func WithNamespace(namespace string) MetricsOption {
	return func(c *metricsConfig) {
		c.namespace = namespace
	}
}

// WithDwellBuckets sets the histogram buckets, in seconds, for time spent in a state
func WithDwellBuckets(buckets []float64) MetricsOption {
	return func(c *metricsConfig) {
		c.buckets = buckets
	}
}

// NewMetricsObserver creates the collectors and registers them with reg, or
// with prometheus.DefaultRegisterer when reg is nil. Collectors that are
// already registered under the same names are reused.
func NewMetricsObserver(reg prometheus.Registerer, opts ...MetricsOption) (*MetricsObserver, error) {
	cfg := metricsConfig{
		namespace: "tickfsm",
		buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &MetricsObserver{lastStateEntry: make(map[string]time.Time)}

	var err error
	if o.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Name:      "transitions_total",
		Help:      "Total number of completed transitions by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})); err != nil {
		return nil, err
	}

	if o.failures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Name:      "transition_failures_total",
		Help:      "Total number of rejected or failed transitions by machine, from_state, to_state and reason",
	}, []string{"machine", "from_state", "to_state", "reason"})); err != nil {
		return nil, err
	}

	if o.entries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Name:      "state_entries_total",
		Help:      "Total number of successful state entries by machine and state",
	}, []string{"machine", "state"})); err != nil {
		return nil, err
	}

	if o.dwell, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Name:      "state_dwell_seconds",
		Help:      "Time spent in a state between entry and exit by machine and state",
		Buckets:   cfg.buckets,
	}, []string{"machine", "state"})); err != nil {
		return nil, err
	}

	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Log implements tickfsm.Logger
func (o *MetricsObserver) Log(event tickfsm.LifecycleEvent) {
	switch event.Kind {
	case tickfsm.EventStateEntered:
		o.entries.WithLabelValues(event.Machine, event.State).Inc()
		o.mutex.Lock()
		o.lastStateEntry[entryKey(event)] = event.Time
		o.mutex.Unlock()

	case tickfsm.EventStateExited, tickfsm.EventShutdown:
		o.mutex.Lock()
		entered, ok := o.lastStateEntry[entryKey(event)]
		delete(o.lastStateEntry, entryKey(event))
		o.mutex.Unlock()
		if ok && event.Kind == tickfsm.EventStateExited {
			o.dwell.WithLabelValues(event.Machine, event.State).Observe(event.Time.Sub(entered).Seconds())
		}

	case tickfsm.EventActivated:
		o.transitions.WithLabelValues(event.Machine, "none", event.To).Inc()

	case tickfsm.EventTransitioned:
		o.transitions.WithLabelValues(event.Machine, event.From, event.To).Inc()

	case tickfsm.EventTransitionRejected, tickfsm.EventTransitionFailed:
		from := event.From
		if from == "" {
			from = "none"
		}
		o.failures.WithLabelValues(event.Machine, from, event.To, failureReason(event.Err)).Inc()
	}
}

func entryKey(event tickfsm.LifecycleEvent) string {
	return event.MachineID + "/" + event.State
}

func failureReason(err error) string {
	code := tickfsm.GetErrorCode(err)
	if code == tickfsm.ErrCodeNone {
		return "unknown"
	}
	return strings.ReplaceAll(code.String(), " ", "_")
}
