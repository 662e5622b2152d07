package account

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	accountsvc "github.com/magabrotheeeer/marketplace-backend/internal/services/account"
)

// Мок для Service
type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Signup(ctx context.Context, req accountsvc.SignupRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *ServiceMock) VerifyOTP(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *ServiceMock) ResendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *ServiceMock) Login(ctx context.Context, identifier, rawPassword string) (*models.AuthResult, error) {
	args := m.Called(ctx, identifier, rawPassword)
	res, _ := args.Get(0).(*models.AuthResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	p, _ := args.Get(0).(*models.TokenPair)
	return p, args.Error(1)
}

func (m *ServiceMock) ForgetPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *ServiceMock) VerifyForgetPasswordOTP(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *ServiceMock) ResetPassword(ctx context.Context, resetToken, newPassword, confirm string) error {
	return m.Called(ctx, resetToken, newPassword, confirm).Error(0)
}

func (m *ServiceMock) SocialLogin(ctx context.Context, provider, token string) (*models.AuthResult, error) {
	args := m.Called(ctx, provider, token)
	res, _ := args.Get(0).(*models.AuthResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Profile(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *ServiceMock) UpdateProfile(ctx context.Context, userID int64, patch models.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, userID, patch)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Post("/verify-otp", h.VerifyOTP)
	r.Post("/resend-otp", h.ResendOTP)
	r.Post("/login", h.Login)
	r.Post("/token/refresh", h.Refresh)
	r.Post("/forget-password", h.ForgetPassword)
	r.Post("/password/verify-otp", h.VerifyForgetPasswordOTP)
	r.Post("/reset-password", h.ResetPassword)
	r.Post("/social/{provider}/login", h.SocialLogin)
	r.Get("/profile", h.Profile)
	r.Patch("/profile", h.UpdateProfile)
	return r
}

func do(ctx context.Context, t *testing.T, h http.Handler, method, target string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(v))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestSignup(t *testing.T) {
	phone := "+4512345678"
	valid := accountsvc.SignupRequest{
		FullName: "Ann", Email: "ann@example.com", Phone: &phone,
		Password: "Str0ngPass!", ConfirmPassword: "Str0ngPass!",
	}

	tests := []struct {
		name       string
		body       any
		mockUser   *models.User
		mockErr    error
		wantStatus int
		wantMsg    string
		wantField  string
	}{
		{
			name:       "created",
			body:       valid,
			mockUser:   &models.User{ID: 7, Email: "ann@example.com", Phone: &phone},
			wantStatus: http.StatusCreated,
			wantMsg:    "Registration successful. OTP sent via SMS.",
		},
		{
			name:       "empty body",
			body:       nil,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Request body is empty.",
		},
		{
			name:       "missing email",
			body:       accountsvc.SignupRequest{FullName: "Ann", Password: "x", ConfirmPassword: "x"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Validation failed.",
			wantField:  "email",
		},
		{
			name:       "duplicate email",
			body:       valid,
			mockErr:    apperr.New(apperr.KindConflict, "A user with this email already exists."),
			wantStatus: http.StatusConflict,
			wantMsg:    "A user with this email already exists.",
		},
		{
			name:       "sms delivery failed",
			body:       valid,
			mockErr:    apperr.New(apperr.KindUpstream, "Failed to send OTP."),
			wantStatus: http.StatusBadGateway,
			wantMsg:    "Failed to send OTP.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.mockUser != nil || tt.mockErr != nil {
				svc.On("Signup", mock.Anything, valid).Return(tt.mockUser, tt.mockErr).Once()
			}

			rec, resp := do(context.Background(), t, newRouter(New(logger.NewDiscard(), svc)), http.MethodPost, "/signup", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, resp.Message)
			if tt.wantField != "" {
				assert.Contains(t, resp.Errors, tt.wantField)
			}
			if tt.mockUser != nil {
				assert.True(t, resp.Success)
				data := resp.Data.(map[string]any)
				assert.EqualValues(t, 7, data["user_id"])
				assert.Equal(t, false, data["is_verified"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestVerifyOTP(t *testing.T) {
	svc := new(ServiceMock)
	r := newRouter(New(logger.NewDiscard(), svc))

	svc.On("VerifyOTP", mock.Anything, "123456").Return(&models.User{ID: 1, IsVerified: true}, nil).Once()
	svc.On("VerifyOTP", mock.Anything, "000000").Return(nil, apperr.New(apperr.KindNotFound, "Invalid or expired OTP.")).Once()

	rec, resp := do(context.Background(), t, r, http.MethodPost, "/verify-otp", OTPRequest{OTP: "123456"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Email verified successfully.", resp.Message)

	rec, resp = do(context.Background(), t, r, http.MethodPost, "/verify-otp", OTPRequest{OTP: "000000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)

	rec, resp = do(context.Background(), t, r, http.MethodPost, "/verify-otp", OTPRequest{OTP: "12"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Errors, "otp")
	svc.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	result := &models.AuthResult{
		User:   &models.User{ID: 3, Email: "ann@example.com"},
		Tokens: &models.TokenPair{Access: "a", Refresh: "r"},
	}

	tests := []struct {
		name       string
		body       any
		identifier string
		mockRes    *models.AuthResult
		mockErr    error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "by login field",
			body:       LoginRequest{Login: "+4512345678", Password: "pw"},
			identifier: "+4512345678",
			mockRes:    result,
			wantStatus: http.StatusOK,
			wantMsg:    "Login successful",
		},
		{
			name:       "by email field",
			body:       LoginRequest{Email: "ann@example.com", Password: "pw"},
			identifier: "ann@example.com",
			mockRes:    result,
			wantStatus: http.StatusOK,
			wantMsg:    "Login successful",
		},
		{
			name:       "wrong password",
			body:       LoginRequest{Email: "ann@example.com", Password: "bad"},
			identifier: "ann@example.com",
			mockErr:    apperr.New(apperr.KindUnauthorized, "Invalid credentials."),
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid credentials.",
		},
		{
			name:       "no identifier",
			body:       LoginRequest{Password: "pw"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Validation failed.",
		},
		{
			name:       "bad json",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid request body.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.identifier != "" {
				req := tt.body.(LoginRequest)
				svc.On("Login", mock.Anything, tt.identifier, req.Password).Return(tt.mockRes, tt.mockErr).Once()
			}

			rec, resp := do(context.Background(), t, newRouter(New(logger.NewDiscard(), svc)), http.MethodPost, "/login", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
			if tt.mockRes != nil {
				tokens := resp.Data.(map[string]any)["tokens"].(map[string]any)
				assert.Equal(t, "a", tokens["access"])
				assert.Equal(t, "r", tokens["refresh"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestPasswordReset(t *testing.T) {
	svc := new(ServiceMock)
	r := newRouter(New(logger.NewDiscard(), svc))

	svc.On("ForgetPassword", mock.Anything, "ann@example.com").Return(nil).Once()
	svc.On("VerifyForgetPasswordOTP", mock.Anything, "654321").Return("reset-token", nil).Once()
	svc.On("ResetPassword", mock.Anything, "reset-token", "N3wPass!", "N3wPass!").Return(nil).Once()

	rec, resp := do(context.Background(), t, r, http.MethodPost, "/forget-password", EmailRequest{Email: "ann@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP sent to user email successfully.", resp.Message)

	rec, resp = do(context.Background(), t, r, http.MethodPost, "/password/verify-otp", OTPRequest{OTP: "654321"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reset-token", resp.Data.(map[string]any)["access_token"])

	body, _ := json.Marshal(ResetPasswordRequest{NewPassword: "N3wPass!", ConfirmPassword: "N3wPass!"})
	req := httptest.NewRequest(http.MethodPost, "/reset-password", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer reset-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	rec, resp = do(context.Background(), t, r, http.MethodPost, "/reset-password", ResetPasswordRequest{NewPassword: "x", ConfirmPassword: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication credentials were not provided.", resp.Message)
	svc.AssertExpectations(t)
}

func TestSocialLogin(t *testing.T) {
	result := &models.AuthResult{User: &models.User{ID: 9}, Tokens: &models.TokenPair{Access: "a", Refresh: "r"}}

	tests := []struct {
		name       string
		provider   string
		body       SocialRequest
		token      string
		mockRes    *models.AuthResult
		mockErr    error
		wantStatus int
		wantMsg    string
	}{
		{
			name: "google", provider: "google", body: SocialRequest{IDToken: "g"}, token: "g",
			mockRes: result, wantStatus: http.StatusOK, wantMsg: "Google login successful.",
		},
		{
			name: "microsoft", provider: "microsoft", body: SocialRequest{AccessToken: "m"}, token: "m",
			mockRes: result, wantStatus: http.StatusOK, wantMsg: "Microsoft login successful.",
		},
		{
			name: "missing apple token", provider: "apple", body: SocialRequest{},
			wantStatus: http.StatusBadRequest, wantMsg: "identity_token required",
		},
		{
			name: "rejected token", provider: "google", body: SocialRequest{IDToken: "bad"}, token: "bad",
			mockErr:    apperr.New(apperr.KindValidation, "Invalid Google token."),
			wantStatus: http.StatusBadRequest, wantMsg: "Invalid Google token.",
		},
		{
			name: "unknown provider", provider: "github", body: SocialRequest{Token: "t"}, token: "t",
			mockErr:    apperr.Validation("Unsupported provider.", nil),
			wantStatus: http.StatusBadRequest, wantMsg: "Unsupported provider.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.token != "" {
				svc.On("SocialLogin", mock.Anything, tt.provider, tt.token).Return(tt.mockRes, tt.mockErr).Once()
			}

			rec, resp := do(context.Background(), t, newRouter(New(logger.NewDiscard(), svc)), http.MethodPost, "/social/"+tt.provider+"/login", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
			svc.AssertExpectations(t)
		})
	}
}

func TestProfile(t *testing.T) {
	svc := new(ServiceMock)
	r := newRouter(New(logger.NewDiscard(), svc))
	ctx := middlewarectx.WithClaims(context.Background(), &jwt.CustomClaims{UserID: 5, Role: models.RoleUser})

	country := "DK"
	svc.On("Profile", mock.Anything, int64(5)).Return(&models.User{ID: 5, FullName: "Ann"}, nil).Once()
	svc.On("UpdateProfile", mock.Anything, int64(5), models.ProfileUpdate{Country: &country}).
		Return(&models.User{ID: 5, FullName: "Ann", Country: "DK"}, nil).Once()

	rec, resp := do(ctx, t, r, http.MethodGet, "/profile", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User profile fetched successfully.", resp.Message)
	assert.Equal(t, "Ann", resp.Data.(map[string]any)["full_name"])

	rec, resp = do(ctx, t, r, http.MethodPatch, "/profile", map[string]string{"country": "DK"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Profile updated successfully.", resp.Message)
	assert.Equal(t, "DK", resp.Data.(map[string]any)["country"])

	rec, resp = do(ctx, t, r, http.MethodPatch, "/profile", map[string]string{"profile_pic_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Errors, "profile_pic_url")
	svc.AssertExpectations(t)
}
