package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Submitted()
	m.Submitted()
	m.Edited()
	m.Decided("COO", "Approved")
	m.Notification(NotificationDropped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.edits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("COO", "Approved")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.decisions.WithLabelValues("COO", "Rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(NotificationDropped)))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submitted()
		m.Edited()
		m.Decided("Director", "Rejected")
		m.Notification(NotificationSent)
	})
}
