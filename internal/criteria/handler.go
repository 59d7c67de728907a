// HTTP handlers for the criteria CRUD surface.
//
// All routes expect an x-user-id header forwarded by the gateway.
//
// Routes:
//
//	GET    /criteria             → list caller's criteria
//	POST   /criteria             → create
//	GET    /criteria/{id}        → fetch one
//	PUT    /criteria/{id}        → update
//	DELETE /criteria/{id}        → delete
//	POST   /criteria/{id}/toggle → set is_active
package criteria

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"admarkt/alert-service/internal/httpx"
	"admarkt/alert-service/internal/model"
)

// Handler exposes the criteria Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Mount registers all criteria routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/criteria", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/toggle", h.toggle)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.ListForOwner(r.Context(), ownerID)
	if err != nil {
		log.Printf("[criteria] list error: %v", err)
		httpx.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	out, err := h.svc.Create(r.Context(), ownerID, req)
	if err != nil {
		h.writeError(w, "create", err)
		return
	}
	httpx.Created(w, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Get(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "get", err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	out, err := h.svc.Update(r.Context(), ownerID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, "update", err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, "delete", err)
		return
	}
	httpx.OK(w, map[string]bool{"deleted": true})
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsActive == nil {
		httpx.Error(w, "body must contain isActive", http.StatusBadRequest)
		return
	}
	out, err := h.svc.SetActive(r.Context(), ownerID, chi.URLParam(r, "id"), *body.IsActive)
	if err != nil {
		h.writeError(w, "toggle", err)
		return
	}
	httpx.OK(w, out)
}

// writeError maps service errors to HTTP responses. Validation messages are
// surfaced verbatim — the only user-visible failure this service produces.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.Error(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, model.ErrNotFound):
		httpx.Error(w, "criteria not found", http.StatusNotFound)
	default:
		log.Printf("[criteria] %s error: %v", op, err)
		httpx.Error(w, "database error", http.StatusInternalServerError)
	}
}
