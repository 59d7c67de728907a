// HTTP handlers for the notification read surface.
//
// Routes:
//
//	GET  /notifications              → list caller's notifications, newest first
//	GET  /notifications/unread-count → derived unread badge count
//	POST /notifications/{id}/read    → mark one as read
package notification

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"admarkt/alert-service/internal/httpx"
	"admarkt/alert-service/internal/model"
)

const defaultListLimit = 50

// Handler exposes the notification Store over HTTP.
type Handler struct {
	store *Store
}

// NewHandler returns a configured Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Mount registers all notification routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/unread-count", h.unreadCount)
		r.Post("/{id}/read", h.markRead)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}

	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 500 {
			httpx.Error(w, "limit must be an integer between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = v
	}

	out, err := h.store.ListForOwner(r.Context(), ownerID, limit)
	if err != nil {
		log.Printf("[notification] list error: %v", err)
		httpx.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	count, err := h.store.UnreadCount(r.Context(), ownerID)
	if err != nil {
		log.Printf("[notification] unread count error: %v", err)
		httpx.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	httpx.OK(w, map[string]int{"unread": count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpx.UserID(w, r)
	if !ok {
		return
	}
	out, err := h.store.MarkRead(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			httpx.Error(w, "notification not found", http.StatusNotFound)
			return
		}
		log.Printf("[notification] mark read error: %v", err)
		httpx.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	httpx.OK(w, out)
}
