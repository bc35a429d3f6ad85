// Package http exposes a thin chi-routed admin surface over the
// orchestrator's registry, bus, and plan state: enough to submit work
// and inspect the system, not a general-purpose API.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kestrel-run/orchestra/internal/adapter/ws"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
	"github.com/kestrel-run/orchestra/internal/service"
)

// Router builds the admin mux wiring the registry, bus, orchestrator,
// decomposer, and the websocket observer hub.
type Router struct {
	Registry     *service.Registry
	Bus          *service.Bus
	Orchestrator *service.Orchestrator
	Decomposer   *service.Decomposer
	Hub          *ws.Hub
}

func (rt *Router) Build() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", rt.handleHealth)
	r.Get("/agents", rt.handleListAgents)
	r.Post("/agents", rt.handleRegisterAgent)
	r.Get("/agent-types", rt.handleListAgentTypes)
	r.Post("/plans", rt.handleCreatePlan)
	r.Get("/plans/{planID}", rt.handleGetPlan)
	r.Post("/plans/{planID}/cancel", rt.handleCancelPlan)
	r.Get("/bus/stats", rt.handleBusStats)
	r.Get("/observe", rt.Hub.HandleWS)

	return otelhttp.NewHandler(r, "orchestra.admin")
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := rt.Registry.ListAgents(r.URL.Query().Get("type"))
	writeJSON(w, http.StatusOK, agents)
}

func (rt *Router) handleListAgentTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.Registry.ListTypes())
}

func (rt *Router) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TypeID       string   `json:"type_id"`
		Name         string   `json:"name"`
		Capacity     int      `json:"capacity"`
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Capacity <= 0 {
		req.Capacity = 1
	}

	a, err := rt.Registry.RegisterAgent(req.TypeID, req.Name, req.Capacity, req.Capabilities)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	if backend, err := execbackend.New("sim", nil); err == nil {
		rt.Orchestrator.BindBackend(a.ID, backend)
	}

	writeJSON(w, http.StatusCreated, a)
}

func (rt *Router) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal string `json:"goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	plan, err := rt.Decomposer.Decompose(r.Context(), req.Goal)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	if err := rt.Orchestrator.StartPlan(r.Context(), plan); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

func (rt *Router) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	status, err := rt.Orchestrator.GetPlanStatus(planID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plan_id": planID, "status": string(status)})
}

func (rt *Router) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	if err := rt.Orchestrator.CancelPlan(r.Context(), planID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plan_id": planID, "status": "cancelled"})
}

func (rt *Router) handleBusStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.Bus.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
