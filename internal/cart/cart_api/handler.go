package cart_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/auth"
	"ms-grouporder/internal/cart"
	"ms-grouporder/internal/catalog"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/utils"
)

// Locker is the per-user cart lock that group-order drains also hold.
type Locker interface {
	LockCart(ctx context.Context, userID string) (func(), error)
}

// Handler serves the caller's cart. Every write runs under the cart lock so
// it cannot land between a group order reading the cart and clearing it.
type Handler struct {
	Cart    *cart.Store
	Catalog *catalog.Store
	Locker  Locker
	Logger  *logger.Logger
}

func NewHandler(c *cart.Store, cat *catalog.Store, locker Locker, log *logger.Logger) *Handler {
	return &Handler{Cart: c, Catalog: cat, Locker: locker, Logger: log}
}

type lineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Delete("/", h.Clear)
	r.Get("/summary", h.Summary)
	r.Put("/{productId}", h.Update)
	r.Delete("/{productId}", h.Remove)
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	if apperr.KindOf(err) == "" {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, message, err)
}

// locked runs write under the caller's cart lock.
func (h *Handler) locked(ctx context.Context, userID string, write func() error) error {
	unlock, err := h.Locker.LockCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("lock cart of %s: %w", userID, err)
	}
	defer unlock()
	return write()
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Cart.ListItems(r.Context(), userID)
	if err != nil {
		h.fail(w, "ListCart", "Could not load cart", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Cart", items)
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.New(apperr.KindInvalidInput, "malformed JSON: %v", err))
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.fail(w, "AddToCart", "Could not add to cart", err)
		return
	}
	if p == nil {
		utils.WriteError(w, "Could not add to cart", apperr.New(apperr.KindNotFound, "product %s not found", req.ProductID))
		return
	}
	if !p.InStock {
		utils.WriteError(w, "Could not add to cart", apperr.New(apperr.KindInvalidState, "product %s is out of stock", p.ID))
		return
	}
	err = h.locked(r.Context(), userID, func() error {
		return h.Cart.Add(r.Context(), userID, p.ID, req.Quantity)
	})
	if err != nil {
		h.fail(w, "AddToCart", "Could not add to cart", err)
		return
	}
	h.summary(w, r, userID, http.StatusCreated)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.New(apperr.KindInvalidInput, "malformed JSON: %v", err))
		return
	}
	err := h.locked(r.Context(), userID, func() error {
		return h.Cart.UpdateQuantity(r.Context(), userID, chi.URLParam(r, "productId"), req.Quantity)
	})
	if err != nil {
		h.fail(w, "UpdateCart", "Could not update cart", err)
		return
	}
	h.summary(w, r, userID, http.StatusOK)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	err := h.locked(r.Context(), userID, func() error {
		return h.Cart.Remove(r.Context(), userID, chi.URLParam(r, "productId"))
	})
	if err != nil {
		h.fail(w, "RemoveFromCart", "Could not update cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	err := h.locked(r.Context(), userID, func() error {
		return h.Cart.Clear(r.Context(), userID)
	})
	if err != nil {
		h.fail(w, "ClearCart", "Could not clear cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	h.summary(w, r, userID, http.StatusOK)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request, userID string, status int) {
	sum, err := h.Cart.Summary(r.Context(), userID)
	if err != nil {
		h.fail(w, "CartSummary", "Could not total cart", err)
		return
	}
	utils.WriteSuccess(w, status, "Cart summary", sum)
}
