// Package account реализует HTTP-обработчики учётной записи: регистрацию,
// подтверждение кода, вход, обновление токенов, сброс пароля, социальный
// вход и профиль.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	accountsvc "github.com/magabrotheeeer/marketplace-backend/internal/services/account"
)

// Service описывает операции учётной записи, нужные обработчикам.
type Service interface {
	Signup(ctx context.Context, req accountsvc.SignupRequest) (*models.User, error)
	VerifyOTP(ctx context.Context, code string) (*models.User, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, identifier, rawPassword string) (*models.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	ForgetPassword(ctx context.Context, email string) error
	VerifyForgetPasswordOTP(ctx context.Context, code string) (string, error)
	ResetPassword(ctx context.Context, resetToken, newPassword, confirm string) error
	SocialLogin(ctx context.Context, provider, token string) (*models.AuthResult, error)
	Profile(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, patch models.ProfileUpdate) (*models.User, error)
}

// Handler обработчики учётной записи.
type Handler struct {
	log      *slog.Logger
	svc      Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc, validate: response.NewValidator()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// OTPRequest тело запросов с кодом.
type OTPRequest struct {
	OTP string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

// EmailRequest тело запросов с адресом почты.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginRequest тело запроса входа. Login принимает email, телефон или имя пользователя.
type LoginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest тело запроса обновления токенов.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// ResetPasswordRequest тело запроса смены пароля.
type ResetPasswordRequest struct {
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// SocialRequest тело запроса социального входа. Провайдеры присылают токен
// в разных полях.
type SocialRequest struct {
	Token         string `json:"token"`
	IDToken       string `json:"id_token"`
	AccessToken   string `json:"access_token"`
	IdentityToken string `json:"identity_token"`
}

// tokenFields поле тела, в котором провайдер присылает токен.
var tokenFields = map[string]string{
	"google":    "id_token",
	"microsoft": "access_token",
	"apple":     "identity_token",
}

func (s SocialRequest) token() string {
	for _, t := range []string{s.Token, s.IDToken, s.AccessToken, s.IdentityToken} {
		if strings.TrimSpace(t) != "" {
			return t
		}
	}
	return ""
}

// Signup godoc
// @Summary Регистрация пользователя
// @Description Создаёт неподтверждённого пользователя и отправляет код подтверждения.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body accountsvc.SignupRequest true "Данные регистрации"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.Signup")

	var req accountsvc.SignupRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}

	u, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}

	log.Info("user signed up", slog.Int64("user_id", u.ID))
	response.OK(w, r, http.StatusCreated, "Registration successful. OTP sent via SMS.", map[string]any{
		"user_id":     u.ID,
		"email":       u.Email,
		"phone":       u.Phone,
		"is_verified": u.IsVerified,
	})
}

// VerifyOTP godoc
// @Summary Подтверждение учётной записи
// @Tags Account
// @Accept json
// @Produce json
// @Param request body OTPRequest true "Код"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /verify-otp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.VerifyOTP")

	var req OTPRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	u, err := h.svc.VerifyOTP(r.Context(), req.OTP)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("user verified", slog.Int64("user_id", u.ID))
	response.OK(w, r, http.StatusOK, "Email verified successfully.", nil)
}

// ResendOTP godoc
// @Summary Повторная отправка кода
// @Tags Account
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /resend-otp [post]
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.ResendOTP")

	var req EmailRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	if err := h.svc.ResendOTP(r.Context(), req.Email); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "A new OTP has been sent to your email.", nil)
}

// Login godoc
// @Summary Вход по паролю
// @Description Принимает email, телефон или имя пользователя и пароль, возвращает пару токенов.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Учётные данные"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.Login")

	var req LoginRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	identifier := req.Login
	if identifier == "" {
		identifier = req.Email
	}
	if strings.TrimSpace(identifier) == "" {
		response.Error(w, r, log, apperr.Validation("Validation failed.", map[string]string{"login": "This field is required."}))
		return
	}

	res, err := h.svc.Login(r.Context(), identifier, req.Password)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("login success", slog.Int64("user_id", res.User.ID))
	response.OK(w, r, http.StatusOK, "Login successful", res)
}

// Refresh godoc
// @Summary Обновление пары токенов
// @Tags Account
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh-токен"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /token/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.Refresh")

	var req RefreshRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.Refresh)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Token refreshed.", pair)
}

// ForgetPassword godoc
// @Summary Запрос кода для сброса пароля
// @Tags Account
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /forget-password [post]
func (h *Handler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.ForgetPassword")

	var req EmailRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	if err := h.svc.ForgetPassword(r.Context(), req.Email); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "OTP sent to user email successfully.", nil)
}

// VerifyForgetPasswordOTP godoc
// @Summary Проверка кода сброса пароля
// @Description Возвращает одноразовый токен для смены пароля.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body OTPRequest true "Код"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /password/verify-otp [post]
func (h *Handler) VerifyForgetPasswordOTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.VerifyForgetPasswordOTP")

	var req OTPRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	token, err := h.svc.VerifyForgetPasswordOTP(r.Context(), req.OTP)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "OTP verified successfully.", map[string]string{"access_token": token})
}

// ResetPassword godoc
// @Summary Смена пароля по токену сброса
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResetPasswordRequest true "Новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.ResetPassword")

	token, ok := middlewarectx.BearerToken(r)
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, "Authentication credentials were not provided.", nil)
		return
	}
	var req ResetPasswordRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), token, req.NewPassword, req.ConfirmPassword); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Password reset successfully.", nil)
}

// SocialLogin godoc
// @Summary Вход через Google, Apple или Microsoft
// @Tags Account
// @Accept json
// @Produce json
// @Param provider path string true "google | apple | microsoft"
// @Param request body SocialRequest true "Токен провайдера"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /social/{provider}/login [post]
func (h *Handler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.SocialLogin")
	provider := strings.ToLower(chi.URLParam(r, "provider"))

	var req SocialRequest
	if err := response.Decode(r, nil, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}

	token := req.token()
	if field, ok := tokenFields[provider]; ok && token == "" {
		response.Fail(w, r, http.StatusBadRequest, field+" required", map[string]string{field: "This field is required."})
		return
	}

	res, err := h.svc.SocialLogin(r.Context(), provider, token)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("social login success", slog.String("provider", provider), slog.Int64("user_id", res.User.ID))
	response.OK(w, r, http.StatusOK, fmt.Sprintf("%s login successful.", providerTitle(provider)), res)
}

func providerTitle(p string) string {
	if p == "" {
		return p
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

// Profile godoc
// @Summary Профиль текущего пользователя
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /profile [get]
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.Profile")

	u, err := h.svc.Profile(r.Context(), middlewarectx.UserID(r.Context()))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "User profile fetched successfully.", u)
}

// UpdateProfile godoc
// @Summary Частичное обновление профиля
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ProfileUpdate true "Изменяемые поля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /profile [patch]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.UpdateProfile")

	var patch models.ProfileUpdate
	if err := response.Decode(r, h.validate, &patch); err != nil {
		response.Error(w, r, log, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), middlewarectx.UserID(r.Context()), patch)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Profile updated successfully.", u)
}
