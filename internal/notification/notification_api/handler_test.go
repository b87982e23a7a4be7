package notification_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
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

func setup(t *testing.T) (http.Handler, *testutil.Env) {
	env := testutil.NewEnv(t)
	h := NewHandler(env.Notifications, env.Logger)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(auth.DevVerifier{Secret: secret}, env.Logger))
		r.Route("/api/notifications", h.Routes)
	})
	return r, env
}

func do(t *testing.T, h http.Handler, method, path, user string) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := auth.SignDevToken(secret, user, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListMarkReadAndCount(t *testing.T) {
	h, env := setup(t)
	ctx := context.Background()
	n, err := env.Notifications.Append(ctx, "alice", "o1", models.NotifyOrderConfirmed, "✅ Order Confirmed!", "confirmed")
	require.NoError(t, err)
	_, err = env.Notifications.Append(ctx, "alice", "o1", models.NotifyOutForDelivery, "🚚", "on the way")
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/notifications/", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []models.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	assert.Equal(t, models.NotifyOutForDelivery, list.Data[0].Type)

	path := "/api/notifications/" + strconv.FormatInt(n.ID, 10) + "/read"
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, path, "bob").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, path, "alice").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPost, "/api/notifications/abc/read", "alice").Code)

	rec = do(t, h, http.MethodGet, "/api/notifications/unread-count", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		Data struct {
			Unread int `json:"unread"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, 1, count.Data.Unread)
}
