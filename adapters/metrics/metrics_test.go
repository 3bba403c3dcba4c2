package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/artpar/conftree/adapters/metrics"
)

func TestNew_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	c.ObserveLoad("file:app.yaml", 20*time.Millisecond)
	c.ObserveLoad("file:app.yaml", 30*time.Millisecond)
	c.IncLoadError("file:app.yaml")
	c.SetSnapshotAge(12)
	c.IncDecryptFailure()

	if got := testutil.ToFloat64(c.LoadsTotal.WithLabelValues("file:app.yaml")); got != 2 {
		t.Errorf("loads_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.LoadErrors.WithLabelValues("file:app.yaml")); got != 1 {
		t.Errorf("load_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.SnapshotAge); got != 12 {
		t.Errorf("snapshot_age_seconds = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.DecryptFailures); got != 1 {
		t.Errorf("decrypt_failures_total = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"conftree_loads_total",
		"conftree_load_errors_total",
		"conftree_load_duration_seconds",
		"conftree_snapshot_age_seconds",
		"conftree_decrypt_failures_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
