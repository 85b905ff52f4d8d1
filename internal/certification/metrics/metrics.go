// Package metrics exposes the workflow's Prometheus counters. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "certify"

// Notification delivery outcomes.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

type Metrics struct {
	submissions   prometheus.Counter
	edits         prometheus.Counter
	decisions     *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New registers the workflow counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certifications_submitted_total",
			Help:      "number of certification requests submitted",
		}),
		edits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certifications_edited_total",
			Help:      "number of certification requests edited",
		}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_decisions_total",
			Help:      "approval decisions recorded, by stage and action",
		}, []string{"stage", "action"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "notification deliveries, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *Metrics) Edited() {
	if m == nil {
		return
	}
	m.edits.Inc()
}

func (m *Metrics) Decided(stage, action string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(stage, action).Inc()
}

// Notification counts one delivery attempt with the given outcome.
func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
