package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/tool"
)

func TestObserveRun(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveRun(agent.RunReport{StopReason: agent.StopReasonComplete, Iterations: 2, Duration: time.Second})
	m.ObserveRun(agent.RunReport{StopReason: agent.StopReasonComplete, Iterations: 1})
	m.ObserveRun(agent.RunReport{StopReason: agent.StopReasonIterationLimit, Iterations: 12})
	m.ObserveRun(agent.RunReport{})

	tests := []struct {
		reason string
		want   float64
	}{
		{string(agent.StopReasonComplete), 2},
		{string(agent.StopReasonIterationLimit), 1},
		{"unknown", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.runs.WithLabelValues(tt.reason)); got != tt.want {
			t.Errorf("runs{%s} = %v, want %v", tt.reason, got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(m.runIterations); n != 1 {
		t.Errorf("iterations series = %d, want 1", n)
	}
}

func TestObserveTool(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveTool(tool.Observation{Tool: "Search", Duration: 10 * time.Millisecond})
	m.ObserveTool(tool.Observation{Tool: "Search", Failed: true})
	m.ObserveTool(tool.Observation{Tool: "arxiv"})

	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("Search", OutcomeOK)); got != 1 {
		t.Errorf("Search ok = %v", got)
	}
	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("Search", OutcomeError)); got != 1 {
		t.Errorf("Search error = %v", got)
	}
	if n := testutil.CollectAndCount(m.toolCalls); n != 3 {
		t.Errorf("tool series = %d, want 3", n)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveRun(agent.RunReport{StopReason: agent.StopReasonComplete, Iterations: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`scout_runs_total{stop_reason="complete"} 1`,
		"scout_run_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
