package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestNewCollector_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// 全メトリクスに1回ずつ記録してからgatherする
	c.RecordCallSuccess("login")
	c.RecordCallFailure("getRecipes", "timeout")
	c.RecordFallback("getCheckState")
	c.RecordCallLatency("login", 120*time.Millisecond)
	c.RecordRowEmitted("parallel")
	c.RecordRowDegraded()

	names := gatherNames(t, reg)
	want := []string{
		"kondate_call_success_total",
		"kondate_call_fail_total",
		"kondate_call_fallback_total",
		"kondate_call_latency_seconds",
		"kondate_rows_emitted_total",
		"kondate_rows_degraded_total",
	}
	for _, n := range want {
		if !names[n] {
			t.Errorf("metric %q should be registered", n)
		}
	}
}

func TestCollector_FailureReasonLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCallFailure("login", "timeout")
	c.RecordCallFailure("login", "network")
	c.RecordCallFailure("login", "timeout")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "kondate_call_fail_total" {
			continue
		}
		if len(f.GetMetric()) != 2 {
			t.Fatalf("expected 2 label combinations, got %d", len(f.GetMetric()))
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == "timeout" {
					if m.GetCounter().GetValue() != 2 {
						t.Errorf("timeout count = %v, want 2", m.GetCounter().GetValue())
					}
				}
			}
		}
		return
	}
	t.Fatal("kondate_call_fail_total not found")
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCallSuccess("login")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body == "" {
		t.Error("metrics body should not be empty")
	}
}
