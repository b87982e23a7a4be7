package profile_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/auth"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/profile"
	"ms-grouporder/internal/utils"
)

type Handler struct {
	Profiles *profile.Store
	Logger   *logger.Logger
}

func NewHandler(store *profile.Store, log *logger.Logger) *Handler {
	return &Handler{Profiles: store, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Put("/", h.Update)
}

// Get returns the caller's profile, or an empty one keyed by their user ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	p, err := h.Profiles.Get(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetProfile: %v", err))
		utils.WriteError(w, "Could not load profile", err)
		return
	}
	if p == nil {
		p = &models.Profile{UserID: userID}
	}
	utils.WriteSuccess(w, http.StatusOK, "Profile", p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.RequireUser(w, r)
	if !ok {
		return
	}
	var req profile.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.New(apperr.KindInvalidInput, "malformed JSON: %v", err))
		return
	}
	p, err := h.Profiles.Upsert(r.Context(), userID, req)
	if err != nil {
		if apperr.KindOf(err) == "" {
			h.Logger.Error("API", fmt.Sprintf("UpdateProfile: %v", err))
		}
		utils.WriteError(w, "Could not save profile", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Profile saved", p)
}
