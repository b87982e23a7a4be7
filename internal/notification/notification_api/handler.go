package notification_api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/auth"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/notification"
	"ms-grouporder/internal/sse"
	"ms-grouporder/internal/utils"
)

type Handler struct {
	Notifications *notification.Service
	Heartbeat     time.Duration
	Logger        *logger.Logger
}

func NewHandler(svc *notification.Service, log *logger.Logger) *Handler {
	return &Handler{Notifications: svc, Heartbeat: 30 * time.Second, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Get("/stream", h.Stream)
	r.Post("/{notificationId}/read", h.MarkRead)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	ns, err := h.Notifications.ListRecent(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListNotifications: %v", err))
		utils.WriteError(w, "Could not load notifications", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Notifications", ns)
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	n, err := h.Notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UnreadCount: %v", err))
		utils.WriteError(w, "Could not count notifications", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Unread notifications", map[string]int{"unread": n})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil {
		utils.WriteError(w, "Invalid notification id", apperr.New(apperr.KindInvalidInput, "notification id must be numeric"))
		return
	}
	if err := h.Notifications.MarkRead(r.Context(), userID, id); err != nil {
		if apperr.KindOf(err) == "" {
			h.Logger.Error("API", fmt.Sprintf("MarkRead: %v", err))
		}
		utils.WriteError(w, "Could not mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream pushes the caller's new notifications as server-sent events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	h.Logger.Info("SSE", fmt.Sprintf("Notification stream opened for %s", userID))
	if err := sse.Serve(w, r, h.Notifications.Broker, userID, "notification", h.Heartbeat); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Notification stream for %s: %v", userID, err))
	}
	h.Logger.Debug("SSE", fmt.Sprintf("Notification stream closed for %s", userID))
}
