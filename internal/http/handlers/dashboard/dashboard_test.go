package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Мок для Service
type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Overview(ctx context.Context, page models.Page) (*models.DashboardOverview, models.PageInfo, error) {
	args := m.Called(ctx, page)
	o, _ := args.Get(0).(*models.DashboardOverview)
	return o, args.Get(1).(models.PageInfo), args.Error(2)
}

func (m *ServiceMock) UserDetail(ctx context.Context, id int64) (*models.UserWithSubscriptions, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.UserWithSubscriptions)
	return u, args.Error(1)
}

func newRouter(svc Service) http.Handler {
	h := New(logger.NewDiscard(), svc)
	r := chi.NewRouter()
	r.Get("/dashboard", h.Overview)
	r.Get("/dashboard/users/{id}", h.UserDetail)
	return r
}

func get(t *testing.T, h http.Handler, target string) (int, response.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestOverview(t *testing.T) {
	svc := new(ServiceMock)
	page := models.Page{Number: 2, Size: 10}
	overview := &models.DashboardOverview{
		DashboardStats: models.DashboardStats{TotalUsers: 12, TotalVerified: 10, TotalUnverified: 2, TotalEarnings: 59.97},
		Users:          []models.UserWithSubscriptions{{User: models.User{ID: 11}}},
	}
	svc.On("Overview", mock.Anything, page).Return(overview, models.NewPageInfo(page, 12), nil).Once()

	code, resp := get(t, newRouter(svc), "/dashboard?page=2")
	require.Equal(t, http.StatusOK, code)

	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 12, data["total_users"])
	assert.InDelta(t, 59.97, data["total_earnings"], 0.001)
	assert.Len(t, data["users"], 1)
	extra := resp.Extra.(map[string]any)
	assert.EqualValues(t, 1, extra["previous"])
	assert.Nil(t, extra["next"])
	svc.AssertExpectations(t)
}

func TestOverviewFailure(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Overview", mock.Anything, mock.Anything).Return(nil, models.PageInfo{}, errors.New("db down")).Once()

	code, resp := get(t, newRouter(svc), "/dashboard")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Something went wrong. Please try again later.", resp.Message)
}

func TestUserDetail(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		id         int64
		mockUser   *models.UserWithSubscriptions
		mockErr    error
		wantStatus int
	}{
		{name: "found", target: "/dashboard/users/4", id: 4, mockUser: &models.UserWithSubscriptions{User: models.User{ID: 4}}, wantStatus: http.StatusOK},
		{name: "missing", target: "/dashboard/users/5", id: 5, mockErr: apperr.New(apperr.KindNotFound, "User not found."), wantStatus: http.StatusNotFound},
		{name: "bad id", target: "/dashboard/users/abc", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.id != 0 {
				svc.On("UserDetail", mock.Anything, tt.id).Return(tt.mockUser, tt.mockErr).Once()
			}
			code, _ := get(t, newRouter(svc), tt.target)
			assert.Equal(t, tt.wantStatus, code)
			svc.AssertExpectations(t)
		})
	}
}
