package catalog_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/catalog"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/utils"
)

// Handler serves the read-only product catalog. Routes need no token.
type Handler struct {
	Catalog *catalog.Store
	Logger  *logger.Logger
}

func NewHandler(store *catalog.Store, log *logger.Logger) *Handler {
	return &Handler{Catalog: store, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/categories", h.Categories)
	r.Get("/products", h.Products)
	r.Get("/products/{productId}", h.Product)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.Categories(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Categories: %v", err))
		utils.WriteError(w, "Could not load categories", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Categories", cs)
}

func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	var (
		ps  []models.Product
		err error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		ps, err = h.Catalog.ListByCategory(r.Context(), category)
	} else {
		ps, err = h.Catalog.List(r.Context())
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Products: %v", err))
		utils.WriteError(w, "Could not load products", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Products", ps)
}

func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Product %s: %v", id, err))
		utils.WriteError(w, "Could not load product", err)
		return
	}
	if p == nil {
		utils.WriteError(w, "Could not load product", apperr.New(apperr.KindNotFound, "product %s not found", id))
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Product", p)
}
