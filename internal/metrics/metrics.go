// Package metrics exposes Prometheus instruments for item decisions,
// reminders and subscription sweeps.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cooloff"

// Metrics groups every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	itemsRegistered  prometheus.Counter
	decisions        *prometheus.CounterVec
	extensions       prometheus.Counter
	remindersSent    prometheus.Counter
	remindersFailed  prometheus.Counter
	subscriptionsOff prometheus.Counter
	freeTierRejected prometheus.Counter
	decidedAmount    *prometheus.CounterVec
}

// New registers all instruments on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		itemsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_registered_total",
			Help:      "Wish items registered for a cooling-off period.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_decisions_total",
			Help:      "Decisions taken on waiting items, by outcome.",
		}, []string{"outcome"}),
		extensions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_extensions_total",
			Help:      "Waiting period extensions.",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Reminders delivered to users.",
		}),
		remindersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Reminder deliveries that failed and will be retried.",
		}),
		subscriptionsOff: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Premium subscriptions deactivated by the expiry sweep.",
		}),
		freeTierRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "free_tier_rejections_total",
			Help:      "Item registrations refused because the free tier limit was reached.",
		}),
		decidedAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decided_amount_won_total",
			Help:      "Summed price of decided items in won, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.itemsRegistered,
		m.decisions,
		m.extensions,
		m.remindersSent,
		m.remindersFailed,
		m.subscriptionsOff,
		m.freeTierRejected,
		m.decidedAmount,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ItemRegistered() {
	if m != nil {
		m.itemsRegistered.Inc()
	}
}

// Decision counts a purchase or abandonment and its price, labelled by the
// resulting status
func (m *Metrics) Decision(outcome string, price int64) {
	if m != nil {
		m.decisions.WithLabelValues(outcome).Inc()
		m.decidedAmount.WithLabelValues(outcome).Add(float64(price))
	}
}

func (m *Metrics) Extension() {
	if m != nil {
		m.extensions.Inc()
	}
}

func (m *Metrics) ReminderSent() {
	if m != nil {
		m.remindersSent.Inc()
	}
}

func (m *Metrics) ReminderFailed() {
	if m != nil {
		m.remindersFailed.Inc()
	}
}

func (m *Metrics) SubscriptionExpired() {
	if m != nil {
		m.subscriptionsOff.Inc()
	}
}

func (m *Metrics) FreeTierRejected() {
	if m != nil {
		m.freeTierRejected.Inc()
	}
}
