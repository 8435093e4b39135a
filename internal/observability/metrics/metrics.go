package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics holds the counters exported by the workflow engine.
type Metrics struct {
	Registry *prometheus.Registry

	transitionsTotal     *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	notificationFailures prometheus.Counter
	integrityIssuesTotal *prometheus.CounterVec
	integrityRepairs     prometheus.Counter
	orphansRemoved       prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subvisor_subscription_transitions_total",
			Help: "Subscription lifecycle transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subvisor_notifications_dispatched_total",
			Help: "Notification records created per lifecycle event.",
		}, []string{"event"}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subvisor_notification_dispatch_failures_total",
			Help: "Notification dispatch attempts that failed and were swallowed.",
		}),
		integrityIssuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subvisor_integrity_issues_total",
			Help: "Integrity violations detected per category.",
		}, []string{"category"}),
		integrityRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subvisor_integrity_repairs_total",
			Help: "Integrity issues auto-repaired.",
		}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subvisor_integrity_orphans_removed_total",
			Help: "Orphaned history and notification rows removed.",
		}),
	}

	registry.MustRegister(
		m.transitionsTotal,
		m.notificationsTotal,
		m.notificationFailures,
		m.integrityIssuesTotal,
		m.integrityRepairs,
		m.orphansRemoved,
	)

	return m
}

func (m *Metrics) IncTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) AddNotifications(event string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.notificationsTotal.WithLabelValues(event).Add(float64(count))
}

func (m *Metrics) IncNotificationFailure() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

func (m *Metrics) AddIntegrityIssues(category string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.integrityIssuesTotal.WithLabelValues(category).Add(float64(count))
}

func (m *Metrics) AddIntegrityRepairs(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.integrityRepairs.Add(float64(count))
}

func (m *Metrics) AddOrphansRemoved(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.orphansRemoved.Add(float64(count))
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
