package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/registry"
)

// SessionSource reports the MTP session currently open, 0 for none.
type SessionSource interface {
	SessionID() uint32
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the daemon running?
//   - Readiness probe: Are storages and the metadata store in place?
//   - Store health: Metadata store ping and storage root reachability
type HealthHandler struct {
	store    metadata.Store
	registry *registry.Registry
	sessions SessionSource
}

// NewHealthHandler creates a new health handler. Any argument may be nil,
// in which case readiness reports unhealthy.
func NewHealthHandler(store metadata.Store, reg *registry.Registry, sessions SessionSource) *HealthHandler {
	return &HealthHandler{store: store, registry: reg, sessions: sessions}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "mtpd",
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable until a metadata store is set and at
// least one storage is registered.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil || h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("responder not initialized"))
		return
	}

	count := h.registry.Count()
	if count == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no storages configured"))
		return
	}

	data := map[string]any{"storages": count}
	if h.sessions != nil {
		id := h.sessions.SessionID()
		data["session_open"] = id != 0
		if id != 0 {
			data["session_id"] = id
		}
	}
	writeJSON(w, http.StatusOK, healthyResponse(data))
}

// StoreHealth is the health of one backend.
type StoreHealth struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// StoresResponse is the detailed store health response.
type StoresResponse struct {
	MetadataStore StoreHealth   `json:"metadata_store"`
	Storages      []StoreHealth `json:"storages"`
}

// Stores handles GET /health/stores.
//
// Pings the metadata store and reads the capacity of every storage root.
// Returns 503 Service Unavailable if anything is unhealthy.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil || h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("responder not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	allHealthy := true
	response := StoresResponse{Storages: make([]StoreHealth, 0, h.registry.Count())}

	start := time.Now()
	err := h.store.Healthcheck(ctx)
	response.MetadataStore = StoreHealth{
		Name:    "metadata",
		Type:    "metadata",
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}
	if err != nil {
		response.MetadataStore.Status = "unhealthy"
		response.MetadataStore.Error = err.Error()
		allHealthy = false
	}

	for _, st := range h.registry.Storages() {
		start := time.Now()
		_, _, err := st.Capacity()
		health := StoreHealth{
			Name:    fmt.Sprintf("0x%08X", st.ID),
			Type:    "storage",
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		}
		response.Storages = append(response.Storages, health)
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(response))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}
