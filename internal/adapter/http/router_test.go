package http_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	adapterhttp "github.com/kestrel-run/orchestra/internal/adapter/http"
	"github.com/kestrel-run/orchestra/internal/adapter/ws"
	_ "github.com/kestrel-run/orchestra/internal/adapter/simbackend"
	"github.com/kestrel-run/orchestra/internal/domain/agenttype"
	"github.com/kestrel-run/orchestra/internal/service"
)

func newTestRouter(t *testing.T) *adapterhttp.Router {
	t.Helper()
	registry := service.NewRegistry()
	if err := registry.RegisterDefaults(agenttype.Presets()); err != nil {
		t.Fatalf("failed to register presets: %v", err)
	}
	bus := service.NewBus(64, 100)
	lb := service.NewLoadBalancer(service.StrategyLeastLoaded)
	orch := service.NewOrchestrator(service.OrchestratorConfig{
		Workers:                 2,
		MaxRetries:              1,
		BackoffBase:             time.Millisecond,
		BackoffCap:              10 * time.Millisecond,
		SuccessWindow:           10,
		ErrorThreshold:          0.5,
		BreakerFailureThreshold: 5,
		BreakerResetTimeout:     10 * time.Millisecond,
		BreakerHalfOpenMax:      1,
	}, registry, bus, lb, nil, slog.Default())
	decomposer := service.NewDecomposer(nil, time.Minute)

	return &adapterhttp.Router{Registry: registry, Bus: bus, Orchestrator: orch, Decomposer: decomposer, Hub: ws.NewHub()}
}

func TestHandleHealth(t *testing.T) {
	rt := newTestRouter(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	rt.Build().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleRegisterAgent(t *testing.T) {
	rt := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{"type_id": "research_agent", "capacity": 2})
	req := httptest.NewRequest("POST", "/agents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	rt.Build().ServeHTTP(rec, req)

	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRegisterAgentUnknownType(t *testing.T) {
	rt := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{"type_id": "no_such_type"})
	req := httptest.NewRequest("POST", "/agents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	rt.Build().ServeHTTP(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandleListAgentTypes(t *testing.T) {
	rt := newTestRouter(t)
	req := httptest.NewRequest("GET", "/agent-types", nil)
	rec := httptest.NewRecorder()
	rt.Build().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var types []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(types) != 8 {
		t.Fatalf("len(types) = %d, want 8", len(types))
	}
}

func TestHandleCreateAndGetPlan(t *testing.T) {
	rt := newTestRouter(t)
	handler := rt.Build()

	body, _ := json.Marshal(map[string]string{"goal": "research and report on competitors"})
	req := httptest.NewRequest("POST", "/plans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 201 {
		t.Fatalf("create plan status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode created plan: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a non-empty plan ID")
	}

	getReq := httptest.NewRequest("GET", "/plans/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)
	if getRec.Code != 200 {
		t.Fatalf("get plan status = %d, want 200", getRec.Code)
	}
}

func TestHandleGetPlanNotFound(t *testing.T) {
	rt := newTestRouter(t)
	req := httptest.NewRequest("GET", "/plans/does-not-exist", nil)
	rec := httptest.NewRecorder()
	rt.Build().ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleBusStats(t *testing.T) {
	rt := newTestRouter(t)
	req := httptest.NewRequest("GET", "/bus/stats", nil)
	rec := httptest.NewRecorder()
	rt.Build().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
