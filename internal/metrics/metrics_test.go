package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorExposesRecordedMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordTaskSubmitted()
	c.RecordTaskSubmitted()
	c.RecordTaskCompleted()
	c.SetQueueDepth(7)
	c.RecordTimerArmed()
	c.RPCCallStarted()
	c.RPCCallCompleted("OK")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	checks := []string{
		"zero_pool_tasks_submitted_total 2",
		"zero_pool_tasks_completed_total 1",
		"zero_pool_queue_depth 7",
		"zero_timer_armed_total 1",
		`zero_rpc_calls_completed_total{status="OK"} 1`,
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q; got:\n%s", want, body)
		}
	}
}

func TestRPCCallsInFlightTracksStartAndComplete(t *testing.T) {
	c := NewCollector()
	c.RPCCallStarted()
	c.RPCCallStarted()
	c.RPCCallCompleted("Cancelled")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "zero_rpc_calls_in_flight 1") {
		t.Fatalf("expected in-flight gauge at 1, got:\n%s", rec.Body.String())
	}
}
