package metrics

import (
	"context"
	"fmt"

	credentials "github.com/goliatone/go-credentials"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "credentials"

// Sink counts lifecycle activity events into prometheus counters
type Sink struct {
	events        *prometheus.CounterVec
	loginFailures *prometheus.CounterVec
}

var _ credentials.ActivitySink = (*Sink)(nil)

// NewSink registers the activity counters on reg
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Count of account lifecycle events by type",
		}, []string{"event"}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Count of failed logins by reason",
		}, []string{"reason"}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	for _, c := range []prometheus.Collector{s.events, s.loginFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Record implements credentials.ActivitySink
func (s *Sink) Record(_ context.Context, event credentials.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType)).Inc()

	if event.EventType == credentials.ActivityEventLoginFailure {
		s.loginFailures.WithLabelValues(reason(event.Metadata)).Inc()
	}
	return nil
}

func reason(meta map[string]any) string {
	if v, ok := meta["reason"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return "unknown"
}
