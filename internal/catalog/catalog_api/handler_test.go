package catalog_api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/models"
	"ms-grouporder/internal/testutil"
)

func get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	env := testutil.NewEnv(t)
	r := chi.NewRouter()
	r.Route("/api/catalog", NewHandler(env.Catalog, env.Logger).Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProductsByCategory(t *testing.T) {
	rec := get(t, "/api/catalog/products?category=cat-dairy")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data)
	for _, p := range resp.Data {
		assert.Equal(t, "cat-dairy", p.CategoryID)
	}
}

func TestProduct(t *testing.T) {
	rec := get(t, "/api/catalog/products/prod-bread")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Whole Wheat Bread")

	assert.Equal(t, http.StatusNotFound, get(t, "/api/catalog/products/nope").Code)
}

func TestCategories(t *testing.T) {
	rec := get(t, "/api/catalog/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []models.Category `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 5)
}
