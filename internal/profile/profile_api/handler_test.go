package profile_api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/auth"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/testutil"
)

var secret = []byte("test-secret")

func TestGetAndUpdate(t *testing.T) {
	env := testutil.NewEnv(t)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(auth.DevVerifier{Secret: secret}, env.Logger))
		r.Route("/api/profile", NewHandler(env.Profiles, env.Logger).Routes)
	})
	tok, err := auth.SignDevToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	do := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/profile/", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	decode := func(rec *httptest.ResponseRecorder) models.Profile {
		var resp struct {
			Data models.Profile `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Data
	}

	rec := do(http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(rec).UserID)
	assert.Empty(t, decode(rec).Name)

	rec = do(http.MethodPut, `{"name":" Alice ","email":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alice", decode(rec).Name)

	rec = do(http.MethodGet, "")
	assert.Equal(t, "alice@example.com", decode(rec).Email)

	assert.Equal(t, http.StatusUnprocessableEntity, do(http.MethodPut, `{"email":"nope"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(http.MethodPut, `{`).Code)
}
