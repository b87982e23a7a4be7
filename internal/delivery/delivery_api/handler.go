package delivery_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/auth"
	"ms-grouporder/internal/delivery"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/sse"
	"ms-grouporder/internal/utils"
)

type Handler struct {
	Router    *delivery.Router
	Tracker   *delivery.Tracker
	Stream    *sse.Broker[models.LocationPing]
	Limiter   *RiderLimiter
	Heartbeat time.Duration
	Logger    *logger.Logger
}

func NewHandler(router *delivery.Router, tracker *delivery.Tracker, limiter *RiderLimiter, log *logger.Logger) *Handler {
	return &Handler{
		Router:    router,
		Tracker:   tracker,
		Stream:    tracker.Broker,
		Limiter:   limiter,
		Heartbeat: 30 * time.Second,
		Logger:    log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/{orderId}", func(r chi.Router) {
		r.Post("/dispatch", h.Dispatch)
		r.Post("/stops/{participantId}/complete", h.CompleteStop)
		r.Post("/location", h.UpdateLocation)
		r.Get("/tracking", h.GetTracking)
		r.Get("/tracking/stream", h.StreamTracking)
	})
}

// RiderLimiter keeps one token bucket per rider for location updates.
type RiderLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewRiderLimiter(perSecond float64, burst int) *RiderLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RiderLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *RiderLimiter) Allow(riderID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[riderID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[riderID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	if apperr.KindOf(err) == "" {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, message, err)
}

func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.RequireUser(w, r); !ok {
		return
	}
	var req delivery.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Dispatch", "Invalid request", apperr.New(apperr.KindInvalidInput, "invalid request body: %v", err))
		return
	}
	tracking, err := h.Router.Dispatch(r.Context(), chi.URLParam(r, "orderId"), req)
	if err != nil {
		h.fail(w, "Dispatch", "Could not dispatch order", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order out for delivery", tracking)
}

func (h *Handler) CompleteStop(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.RequireUser(w, r); !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if err := h.Router.CompleteStop(r.Context(), orderID, chi.URLParam(r, "participantId")); err != nil {
		h.fail(w, "CompleteStop", "Could not complete stop", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Stop completed", nil)
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateLocation accepts the rider's position. The caller is the rider.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	riderID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	if h.Limiter != nil && !h.Limiter.Allow(riderID) {
		w.Header().Set("Retry-After", "1")
		utils.WriteJSON(w, http.StatusTooManyRequests, utils.ErrorResponse("Too many location updates", "rate limit exceeded"))
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "UpdateLocation", "Invalid request", apperr.New(apperr.KindInvalidInput, "invalid request body: %v", err))
		return
	}
	if err := h.Tracker.UpdateRiderLocation(r.Context(), chi.URLParam(r, "orderId"), riderID, req.Lat, req.Lng); err != nil {
		h.fail(w, "UpdateLocation", "Could not update location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	view, err := h.Tracker.GetTracking(r.Context(), chi.URLParam(r, "orderId"), userID)
	if err != nil {
		h.fail(w, "GetTracking", "Could not load tracking", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Delivery tracking", view)
}

// StreamTracking pushes rider positions of one order as server-sent events.
func (h *Handler) StreamTracking(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if _, err := h.Tracker.GetTracking(r.Context(), orderID, userID); err != nil {
		h.fail(w, "StreamTracking", "Could not open tracking stream", err)
		return
	}
	h.Logger.Info("SSE", fmt.Sprintf("Tracking stream opened for order %s by %s", orderID, userID))
	if err := sse.Serve(w, r, h.Stream, orderID, "location", h.Heartbeat); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Tracking stream for %s: %v", orderID, err))
	}
}
