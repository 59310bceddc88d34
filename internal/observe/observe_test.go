package observe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.CycleDuration == nil || m.AnalyzeDuration == nil || m.Cycles == nil ||
		m.AnalyzeRetries == nil || m.ReportsPosted == nil || m.DroppedAudio == nil ||
		m.ActiveSessions == nil {
		t.Fatal("expected all instruments to be initialised")
	}

	// Recording must not panic.
	ctx := context.Background()
	m.RecordCycle(ctx, OutcomeReported, "interval", 3*time.Second)
	m.RecordAnalyze(ctx, "gemini", "ok", time.Second)
	m.RecordReport(ctx, "debate", true)
	m.ActiveSessions.Add(ctx, 1)
}

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	s := NewServer(":0", Checker{Name: "broken", Check: func(context.Context) error {
		return errors.New("down")
	}})

	rec := httptest.NewRecorder()
	s.healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestReadyzAggregatesCheckers(t *testing.T) {
	t.Parallel()

	s := NewServer(":0",
		Checker{Name: "good", Check: func(context.Context) error { return nil }},
		Checker{Name: "bad", Check: func(context.Context) error { return errors.New("down") }},
	)

	rec := httptest.NewRecorder()
	s.readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rec.Code)
	}

	var res healthResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Status != "fail" {
		t.Errorf("status = %s", res.Status)
	}
	if res.Checks["good"] != "ok" {
		t.Errorf("good check = %q", res.Checks["good"])
	}
	if res.Checks["bad"] != "fail: down" {
		t.Errorf("bad check = %q", res.Checks["bad"])
	}
}
