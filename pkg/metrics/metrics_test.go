package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentCountsOutcomes(t *testing.T) {
	c := NewCollector("test")

	p := pipeline.NewPipeline[string]("call")
	p.Intercept("call", Instrument[string](c, "api"))
	p.Intercept("call", func(ctx *pipeline.Context[string], subject string) error {
		if subject == "fail" {
			return errors.New("boom")
		}
		return nil
	})

	if _, err := p.Execute("ok"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if _, err := p.Execute("ok"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if _, err := p.Execute("fail"); err == nil {
		t.Fatalf("Expected failing execution")
	}

	if got := testutil.ToFloat64(c.executionsStarted.WithLabelValues("api")); got != 3 {
		t.Errorf("Expected 3 started executions, got %v", got)
	}
	if got := testutil.ToFloat64(c.executionsFinished.WithLabelValues("api")); got != 2 {
		t.Errorf("Expected 2 finished executions, got %v", got)
	}
	if got := testutil.ToFloat64(c.executionsFailed.WithLabelValues("api")); got != 1 {
		t.Errorf("Expected 1 failed execution, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("test")

	p := pipeline.NewPipeline[string]("call")
	p.Intercept("call", Instrument[string](c, "api"))
	if _, err := p.Execute("ok"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "test_pipeline_executions_started_total") {
		t.Errorf("Expected exposition to contain started counter, got:\n%s", body)
	}
}

func TestInstrumentPhaseObservesOnFailureToo(t *testing.T) {
	c := NewCollector("test")

	p := pipeline.NewPipeline[string]("call")
	p.Intercept("call", InstrumentPhase[string](c, "api", "call"))
	p.Intercept("call", func(ctx *pipeline.Context[string], subject string) error {
		return errors.New("boom")
	})

	if _, err := p.Execute("x"); err == nil {
		t.Fatalf("Expected failing execution")
	}

	count := testutil.CollectAndCount(c.stepDuration)
	if count != 1 {
		t.Errorf("Expected 1 phase duration series, got %d", count)
	}
}
