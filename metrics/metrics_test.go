package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOperation(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.RecordOperation("get", OutcomeOK, time.Now())
	m.RecordOperation("get", OutcomeOK, time.Now())
	m.RecordOperation("get", OutcomeNotFound, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SceneOperationsTotal.WithLabelValues("get", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SceneOperationsTotal.WithLabelValues("get", OutcomeNotFound)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SceneOperationDuration))
}

func TestRecordRenewal(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.RecordRenewal(OutcomeRenewed)
	m.RecordRenewal(OutcomeFailed)
	m.RecordRenewal(OutcomeRenewed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.URLRenewalsTotal.WithLabelValues(OutcomeRenewed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.URLRenewalsTotal.WithLabelValues(OutcomeFailed)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperation("get", OutcomeOK, time.Now())
		m.RecordRenewal(OutcomeRenewed)
	})
}

func TestNew_DefaultNamespaceRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("", reg)
	m.RecordRenewal(OutcomeRenewed)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.Equal(t, "gamemaker_scene_url_renewals_total", families[0].GetName())
}
