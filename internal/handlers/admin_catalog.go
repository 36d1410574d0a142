package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

// AdminCatalogHandlers applies the deactivate-then-delete lifecycle to products, sizes and
// colors.
type AdminCatalogHandlers struct {
	catalog services.CatalogLifecycleService
}

// NewAdminCatalogHandlers constructs catalog lifecycle handlers.
func NewAdminCatalogHandlers(catalog services.CatalogLifecycleService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{catalog: catalog}
}

// Routes registers /{resource}/{id} and /{resource}/bulk-delete beneath the admin group.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{resource}/bulk-delete", h.bulkDelete)
	r.Delete("/{resource}/{id}", h.deleteEntity)
}

type deleteResultPayload struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=200"`
}

type bulkDeleteResponse struct {
	Results   []deleteResultPayload `json:"results"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}

func (h *AdminCatalogHandlers) deleteEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, unavailable("catalog"))
		return
	}
	kind, ok := domain.ParseCatalogKind(chi.URLParam(r, "resource"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("route_not_found", "unknown catalog resource", http.StatusNotFound))
		return
	}

	result, err := h.catalog.Delete(ctx, services.CatalogDeleteCommand{
		Kind:    kind,
		ID:      chi.URLParam(r, "id"),
		ActorID: actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if result.Outcome == domain.DeleteOutcomeLinked {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeDependencyConflict, result.Message, http.StatusConflict).
			WithDetails(map[string]any{"id": result.ID, "outcome": string(result.Outcome)}))
		return
	}
	w.Header().Set("X-Delete-Outcome", string(result.Outcome))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) bulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, unavailable("catalog"))
		return
	}
	kind, ok := domain.ParseCatalogKind(chi.URLParam(r, "resource"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("route_not_found", "unknown catalog resource", http.StatusNotFound))
		return
	}

	var req bulkDeleteRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}

	summary, err := h.catalog.BulkDelete(ctx, services.CatalogBulkDeleteCommand{
		Kind:    kind,
		IDs:     req.IDs,
		ActorID: actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := bulkDeleteResponse{
		Results:   make([]deleteResultPayload, 0, len(summary.Results)),
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
	}
	for _, res := range summary.Results {
		resp.Results = append(resp.Results, deleteResultPayload{
			ID:      res.ID,
			Outcome: string(res.Outcome),
			Message: res.Message,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func actorID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.UID
	}
	return ""
}
