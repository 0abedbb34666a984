package handlers

import (
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/registry"
)

// StorageStatus describes one storage as the host sees it.
type StorageStatus struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"read_only"`
	Removable   bool   `json:"removable"`
	Objects     int    `json:"objects"`
	TotalBytes  uint64 `json:"total_bytes"`
	FreeBytes   uint64 `json:"free_bytes"`
	Total       string `json:"total"`
	Free        string `json:"free"`
}

// StoragesHandler serves the storage listing.
type StoragesHandler struct {
	store    metadata.Store
	registry *registry.Registry
}

// NewStoragesHandler creates a storage handler.
func NewStoragesHandler(store metadata.Store, reg *registry.Registry) *StoragesHandler {
	return &StoragesHandler{store: store, registry: reg}
}

func (h *StoragesHandler) status(r *http.Request, st *registry.Storage) (StorageStatus, error) {
	s := StorageStatus{
		ID:          "0x" + strconv.FormatUint(uint64(st.ID), 16),
		Path:        st.Path,
		Description: st.Description,
		ReadOnly:    st.ReadOnly,
		Removable:   st.Removable,
	}
	if total, free, err := st.Capacity(); err == nil {
		s.TotalBytes, s.FreeBytes = total, free
		s.Total, s.Free = humanize.IBytes(total), humanize.IBytes(free)
	} else {
		logger.Debug("Cannot read storage capacity", logger.StorageID(st.ID), logger.Err(err))
	}

	objs, err := h.store.ListObjects(r.Context(), metadata.Filter{StorageID: st.ID})
	if err != nil {
		return s, err
	}
	s.Objects = len(objs)
	return s, nil
}

// List handles GET /storages.
func (h *StoragesHandler) List(w http.ResponseWriter, r *http.Request) {
	storages := h.registry.Storages()
	out := make([]StorageStatus, 0, len(storages))
	for _, st := range storages {
		s, err := h.status(r, st)
		if err != nil {
			InternalServerError(w, "Failed to list objects")
			return
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

// Get handles GET /storages/{id}. The ID may be decimal or 0x-prefixed hex.
func (h *StoragesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 0, 32)
	if err != nil {
		NotFound(w, "Storage not found")
		return
	}
	st := h.registry.GetStorage(uint32(id))
	if st == nil {
		NotFound(w, "Storage not found")
		return
	}
	s, err := h.status(r, st)
	if err != nil {
		InternalServerError(w, "Failed to list objects")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(s))
}
