package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/auth"
	"ms-grouporder/internal/grouporder"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/utils"
)

type Handler struct {
	Orders    *grouporder.Service
	PublicURL string
	Logger    *logger.Logger
}

func NewHandler(orders *grouporder.Service, publicURL string, log *logger.Logger) *Handler {
	return &Handler{Orders: orders, PublicURL: publicURL, Logger: log}
}

// Routes mounts the group-order endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListActive)
	r.Post("/", h.Create)
	r.Get("/mine", h.ListMine)
	r.Get("/mine/open", h.ListMyOpen)
	r.Route("/{orderId}", func(r chi.Router) {
		r.Get("/", h.GetOrder)
		r.Delete("/", h.DeleteOrder)
		r.Post("/join", h.Join)
		r.Post("/items", h.AddItem)
		r.Post("/leave", h.Leave)
		r.Post("/confirm", h.Confirm)
		r.Get("/invite.png", h.InviteQR)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	if apperr.KindOf(err) == "" {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, message, err)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.GetActiveList(r.Context())
	if err != nil {
		h.fail(w, "ListActive", "Could not list group orders", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Active group orders", orders)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	var req grouporder.CreateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "Create", "Invalid request", err)
		return
	}
	id, err := h.Orders.Create(r.Context(), userID, req)
	if err != nil && id == "" {
		h.fail(w, "Create", "Could not create group order", err)
		return
	}
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Create: order %s created with error: %v", id, err))
	}
	utils.WriteSuccess(w, http.StatusCreated, "Group order created", map[string]string{"id": id})
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	orders, err := h.Orders.GetMine(r.Context(), userID)
	if err != nil {
		h.fail(w, "ListMine", "Could not list your group orders", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Your group orders", orders)
}

func (h *Handler) ListMyOpen(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	orders, err := h.Orders.GetMyOpen(r.Context(), userID)
	if err != nil {
		h.fail(w, "ListMyOpen", "Could not list your open group orders", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Your open group orders", orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	details, err := h.Orders.GetDetails(r.Context(), orderID)
	if err != nil {
		h.fail(w, "GetOrder", "Could not load group order", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Group order", details)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if err := h.Orders.Delete(r.Context(), orderID, userID); err != nil {
		h.fail(w, "DeleteOrder", "Could not delete group order", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("DeleteOrder: %s deleted by %s", orderID, userID))
	w.WriteHeader(http.StatusNoContent)
}

type joinRequest struct {
	DeliveryAddress string `json:"delivery_address"`
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.fail(w, "Join", "Invalid request", err)
			return
		}
	}
	res, err := h.Orders.Join(r.Context(), chi.URLParam(r, "orderId"), userID, req.DeliveryAddress)
	if err != nil && res.ItemsAdded == 0 {
		h.fail(w, "Join", "Could not join group order", err)
		return
	}
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Join: joined with error: %v", err))
	}
	utils.WriteSuccess(w, http.StatusOK, "Joined group order", res)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "AddItem", "Invalid request", err)
		return
	}
	if err := h.Orders.AddItem(r.Context(), chi.URLParam(r, "orderId"), userID, req.ProductID, req.Quantity); err != nil {
		h.fail(w, "AddItem", "Could not add item", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Item added", nil)
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	res, err := h.Orders.Leave(r.Context(), chi.URLParam(r, "orderId"), userID)
	if err != nil {
		h.fail(w, "Leave", "Could not leave group order", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Left group order", res)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	if err := h.Orders.Confirm(r.Context(), chi.URLParam(r, "orderId"), userID); err != nil {
		h.fail(w, "Confirm", "Could not confirm group order", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Group order confirmed", nil)
}

func (h *Handler) InviteQR(w http.ResponseWriter, r *http.Request) {
	size := 256
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 1024 {
			h.fail(w, "InviteQR", "Invalid size", apperr.New(apperr.KindInvalidInput, "size must be between 64 and 1024"))
			return
		}
		size = n
	}
	png, err := h.Orders.InviteQR(r.Context(), chi.URLParam(r, "orderId"), h.PublicURL, size)
	if err != nil {
		h.fail(w, "InviteQR", "Could not create invite", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
