package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncrementRecordsCreated("case_file")
	m.ObserveReconcile("case_file_officers", 1, 1)
	m.ObserveRequest("GET", "/api/case-files", 200, time.Millisecond)
}

func TestObserveReconcile(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.ObserveReconcile("inspection_agencies", 2, 1)
	m.ObserveReconcile("inspection_agencies", 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AssociationsChanged.WithLabelValues("inspection_agencies", "added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssociationsChanged.WithLabelValues("inspection_agencies", "removed")))
}
