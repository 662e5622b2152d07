package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/config"
	"github.com/magabrotheeeer/marketplace-backend/internal/grpc/server"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
	"github.com/magabrotheeeer/marketplace-backend/internal/metrics"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Мок для Pinger
type PingerMock struct {
	mock.Mock
}

func (m *PingerMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newTestRouter(t *testing.T, deps map[string]server.Pinger) (http.Handler, *jwt.MakerImpl) {
	t.Helper()
	maker := jwt.NewJWTMaker("test-secret", jwt.Options{Issuer: "test", AccessTTL: time.Minute, RefreshTTL: time.Hour, ResetTTL: time.Minute})
	r := chi.NewRouter()
	RegisterRoutes(r, logger.NewDiscard(), Services{
		JWT:       maker,
		Metrics:   metrics.NewNop(),
		RateLimit: config.RateLimit{RPS: 100, Burst: 100},
	}, deps)
	return r, maker
}

func TestHealthz(t *testing.T) {
	db := new(PingerMock)
	redis := new(PingerMock)
	db.On("Ping", mock.Anything).Return(nil)
	redis.On("Ping", mock.Anything).Return(nil).Once()
	redis.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()

	h, _ := newTestRouter(t, map[string]server.Pinger{"postgres": db, "redis": redis})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var checks map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
	assert.Equal(t, "up", checks["postgres"])
	assert.Equal(t, "down", checks["redis"])
}

func TestProtectedRoutes(t *testing.T) {
	h, maker := newTestRouter(t, nil)
	pair, err := maker.GeneratePair(&models.User{ID: 3, Email: "ann@example.com"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		target     string
		token      string
		wantStatus int
	}{
		{name: "profile without token", method: http.MethodGet, target: "/api/v1/profile", wantStatus: http.StatusUnauthorized},
		{name: "suppliers without token", method: http.MethodGet, target: "/api/v1/suppliers/", wantStatus: http.StatusUnauthorized},
		{name: "refresh token is not access", method: http.MethodGet, target: "/api/v1/profile", token: pair.Refresh, wantStatus: http.StatusUnauthorized},
		{name: "dashboard for regular user", method: http.MethodGet, target: "/api/v1/dashboard", token: pair.Access, wantStatus: http.StatusForbidden},
		{name: "create plan for regular user", method: http.MethodPost, target: "/api/v1/plans", token: pair.Access, wantStatus: http.StatusForbidden},
		{name: "unknown route", method: http.MethodGet, target: "/api/v1/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
