// Package account содержит бизнес-логику жизненного цикла учётной записи:
// регистрацию с OTP, вход, обновление токенов, сброс пароля, профиль
// и вход через внешних провайдеров.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/otp"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/phone"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)
	GetUserByOTP(ctx context.Context, code string) (*models.User, error)
	SetOTP(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	// VerifyOTP атомарно подтверждает пользователя по действующему коду.
	VerifyOTP(ctx context.Context, code string, now time.Time) (*models.User, error)
	// ConsumeResetOTP атомарно гасит действующий код подтверждённого пользователя.
	ConsumeResetOTP(ctx context.Context, code string, now time.Time) (*models.User, error)
	SetPassword(ctx context.Context, userID int64, hash string) error
	MarkVerified(ctx context.Context, userID int64) error
	TouchLastActivity(ctx context.Context, userID int64, at time.Time) error
	UpdateProfile(ctx context.Context, userID int64, p models.ProfileUpdate) (*models.User, error)
}

// Notifier канал доставки кодов.
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}

// TokenStore хранит идентификаторы одноразовых токенов сброса пароля.
type TokenStore interface {
	Remember(ctx context.Context, id string, ttl time.Duration) error
	Consume(ctx context.Context, id string) (bool, error)
}

// IdentityVerifier проверяет токен внешнего провайдера.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*models.SocialIdentity, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Options параметры сервиса.
type Options struct {
	OTPLength   int
	OTPTTL      time.Duration
	OTPChannel  string
	PhoneRegion string
	AutoVerify  bool
}

const maxOTPAttempts = 5

// AccountService реализует операции учётной записи.
type AccountService struct {
	users     UserRepository
	notifier  Notifier
	tokens    TokenStore
	jwtMaker  jwt.Maker
	verifiers map[string]IdentityVerifier
	events    EventPublisher
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// NewAccountService создает новый экземпляр AccountService.
func NewAccountService(
	users UserRepository,
	notifier Notifier,
	tokens TokenStore,
	jwtMaker jwt.Maker,
	verifiers map[string]IdentityVerifier,
	events EventPublisher,
	opts Options,
	log *slog.Logger,
) *AccountService {
	if opts.OTPLength <= 0 {
		opts.OTPLength = otp.DefaultLength
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 30 * time.Minute
	}
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &AccountService{
		users:     users,
		notifier:  notifier,
		tokens:    tokens,
		jwtMaker:  jwtMaker,
		verifiers: verifiers,
		events:    events,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// SignupRequest данные регистрации.
type SignupRequest struct {
	FullName        string  `json:"full_name" validate:"required,max=255"`
	Email           string  `json:"email" validate:"required,email"`
	Phone           *string `json:"phone" validate:"omitempty,max=20"`
	Password        string  `json:"password" validate:"required"`
	ConfirmPassword string  `json:"confirm_password" validate:"required"`
}

// UserRegisteredEvent событие о регистрации.
type UserRegisteredEvent struct {
	UserID int64     `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

// Signup регистрирует неподтверждённого пользователя и отправляет ему код.
// Ошибка доставки возвращается после сохранения пользователя и кода.
func (s *AccountService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	const op = "account.Signup"
	log := s.log.With(sl.Op(op))

	if err := checkPassword(req.Password, req.ConfirmPassword); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var phoneE164 *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		normalized, err := phone.Normalize(*req.Phone, s.opts.PhoneRegion)
		if err != nil {
			return nil, apperr.Validation("Invalid phone number.", map[string]string{"phone": "Enter a valid phone number."})
		}
		phoneE164 = &normalized
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var created *models.User
	for attempt := 0; ; attempt++ {
		code, err := otp.Issue(s.opts.OTPLength, s.opts.OTPTTL, s.now())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		created, err = s.users.CreateUser(ctx, &models.User{
			Email:        email,
			Phone:        phoneE164,
			FullName:     strings.TrimSpace(req.FullName),
			PasswordHash: hash,
			OTP:          &code.Value,
			OTPExpiresAt: &code.ExpiresAt,
			IsActive:     true,
		})
		if errors.Is(err, storage.ErrOTPCollision) && attempt < maxOTPAttempts {
			continue
		}
		if err != nil {
			return nil, conflictOr(op, err)
		}
		break
	}

	log.Info("user registered", slog.Int64("user_id", created.ID))
	if err := s.events.Publish(ctx, rabbitmq.RoutingUserRegistered, UserRegisteredEvent{
		UserID: created.ID, Email: created.Email, At: s.now().UTC(),
	}); err != nil {
		log.Warn("failed to publish user registered event", sl.Err(err))
	}

	if err := s.dispatchOTP(ctx, created, "Your verification code is %s. It expires in %d minutes."); err != nil {
		return created, err
	}
	return created, nil
}

// VerifyOTP подтверждает учётную запись по коду. Код погашается атомарно.
func (s *AccountService) VerifyOTP(ctx context.Context, code string) (*models.User, error) {
	const op = "account.VerifyOTP"

	u, err := s.users.VerifyOTP(ctx, strings.TrimSpace(code), s.now())
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	holder, err := s.users.GetUserByOTP(ctx, strings.TrimSpace(code))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if holder != nil && holder.IsVerified {
		return nil, apperr.Validation("User already verified.", map[string]string{"otp": "User already verified."})
	}
	return nil, apperr.New(apperr.KindNotFound, "Invalid or expired OTP.")
}

// ResendOTP выдаёт новый код неподтверждённому пользователю.
func (s *AccountService) ResendOTP(ctx context.Context, email string) error {
	const op = "account.ResendOTP"

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "Email not registered.")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if u.IsVerified {
		return apperr.Validation("User already verified.", map[string]string{"email": "User already verified."})
	}

	if err := s.reissueOTP(ctx, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.dispatchOTP(ctx, u, "Your new verification code is %s. It expires in %d minutes.")
}

// Login проверяет учётные данные. identifier может быть email, телефоном или именем пользователя.
func (s *AccountService) Login(ctx context.Context, identifier, rawPassword string) (*models.AuthResult, error) {
	const op = "account.Login"

	u, err := s.users.GetUserByLogin(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindUnauthorized, "Invalid credentials.")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !u.HasUsablePassword() || comparePassword(u.PasswordHash, rawPassword) != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "Invalid credentials.")
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.KindForbidden, "This account is inactive.")
	}

	return s.issue(ctx, op, u)
}

// Refresh выпускает новую пару токенов по refresh-токену.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "account.Refresh"

	claims, err := s.jwtMaker.ParseToken(refreshToken, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Invalid or expired refresh token.", err)
	}
	u, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindUnauthorized, "Invalid or expired refresh token.")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.KindForbidden, "This account is inactive.")
	}

	pair, err := s.jwtMaker.GeneratePair(u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pair, nil
}

// ForgetPassword выдаёт код для сброса пароля.
func (s *AccountService) ForgetPassword(ctx context.Context, email string) error {
	const op = "account.ForgetPassword"

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "user account not found.")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.reissueOTP(ctx, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.dispatchOTP(ctx, u, "Your password reset code is %s. It expires in %d minutes.")
}

// VerifyForgetPasswordOTP гасит код сброса и выпускает одноразовый токен сброса пароля.
func (s *AccountService) VerifyForgetPasswordOTP(ctx context.Context, code string) (string, error) {
	const op = "account.VerifyForgetPasswordOTP"
	code = strings.TrimSpace(code)

	u, err := s.users.ConsumeResetOTP(ctx, code, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		holder, lookupErr := s.users.GetUserByOTP(ctx, code)
		if lookupErr != nil && !errors.Is(lookupErr, storage.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, lookupErr)
		}
		if holder != nil && !holder.IsVerified {
			return "", apperr.Validation("user account is not verified. Please, verify your email first.",
				map[string]string{"otp": "user account is not verified. Please, verify your email first."})
		}
		return "", apperr.New(apperr.KindNotFound, "Invalid or expired OTP.")
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, jti, err := s.jwtMaker.GenerateResetToken(u)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.Remember(ctx, jti, s.jwtMaker.ResetTTL()); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ResetPassword меняет пароль по токену сброса. Токен срабатывает ровно один раз.
func (s *AccountService) ResetPassword(ctx context.Context, resetToken, newPassword, confirm string) error {
	const op = "account.ResetPassword"

	claims, err := s.jwtMaker.ParseToken(resetToken, jwt.TokenTypeReset)
	if err != nil || claims.ID == "" {
		return apperr.Wrap(apperr.KindUnauthorized, "Invalid or expired reset token.", err)
	}
	if err := checkPassword(newPassword, confirm); err != nil {
		return err
	}

	ok, err := s.tokens.Consume(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return apperr.New(apperr.KindUnauthorized, "Reset token has already been used or expired.")
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.SetPassword(ctx, claims.UserID, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "user account not found.")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password reset", sl.Op(op), slog.Int64("user_id", claims.UserID))
	return nil
}

// Profile возвращает профиль пользователя.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	const op = "account.Profile"
	u, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateProfile применяет частичное обновление профиля.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, patch models.ProfileUpdate) (*models.User, error) {
	const op = "account.UpdateProfile"

	if patch.Phone != nil {
		normalized, err := phone.Normalize(*patch.Phone, s.opts.PhoneRegion)
		if err != nil {
			return nil, apperr.Validation("Invalid phone number.", map[string]string{"phone": "Enter a valid phone number."})
		}
		patch.Phone = &normalized
	}
	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		patch.Username = &trimmed
	}

	u, err := s.users.UpdateProfile(ctx, userID, patch)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "User not found.")
	}
	if err != nil {
		return nil, conflictOr(op, err)
	}
	return u, nil
}

// SocialLogin входит через внешнего провайдера, создавая пользователя при первом входе.
func (s *AccountService) SocialLogin(ctx context.Context, provider, token string) (*models.AuthResult, error) {
	const op = "account.SocialLogin"
	log := s.log.With(sl.Op(op), slog.String("provider", provider))

	verifier, ok := s.verifiers[strings.ToLower(provider)]
	if !ok {
		return nil, apperr.Validation("Unsupported provider.", map[string]string{"provider": "must be one of google, apple, microsoft"})
	}
	if strings.TrimSpace(token) == "" {
		return nil, apperr.Validation("token required", map[string]string{"token": "This field is required."})
	}

	identity, err := verifier.Verify(ctx, token)
	if err != nil {
		if _, isApp := apperr.As(err); isApp {
			return nil, err
		}
		log.Warn("social token rejected", sl.Err(err))
		// отклонённый токен провайдера это ошибка запроса (400), а не входа
		return nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("Invalid %s token.", providerTitle(provider)), err)
	}
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, apperr.New(apperr.KindInvalidUpstreamResponse, "Email not provided by the identity provider.")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		u, err = s.users.CreateUser(ctx, &models.User{
			Email:      email,
			FullName:   identity.FullName,
			IsActive:   true,
			IsVerified: s.opts.AutoVerify,
		})
		if errors.Is(err, storage.ErrConflict) {
			u, err = s.users.GetUserByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.opts.AutoVerify && !u.IsVerified {
		if err := s.users.MarkVerified(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.IsVerified = true
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.KindForbidden, "This account is inactive.")
	}

	return s.issue(ctx, op, u)
}

// CreateSuperuser создаёт подтверждённого администратора.
func (s *AccountService) CreateSuperuser(ctx context.Context, email, fullName, rawPassword string) (*models.User, error) {
	const op = "account.CreateSuperuser"

	if err := checkPassword(rawPassword, rawPassword); err != nil {
		return nil, err
	}
	hash, err := hashPassword(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.users.CreateUser(ctx, &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     fullName,
		PasswordHash: hash,
		IsVerified:   true,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	})
	if err != nil {
		return nil, conflictOr(op, err)
	}
	return u, nil
}

func providerTitle(p string) string {
	p = strings.ToLower(p)
	if p == "" {
		return p
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

func (s *AccountService) issue(ctx context.Context, op string, u *models.User) (*models.AuthResult, error) {
	now := s.now()
	if err := s.users.TouchLastActivity(ctx, u.ID, now); err != nil {
		s.log.Warn("failed to update last activity", sl.Op(op), sl.Err(err))
	} else {
		u.LastActivity = &now
	}

	pair, err := s.jwtMaker.GeneratePair(u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.AuthResult{User: u, Tokens: pair}, nil
}

// reissueOTP записывает пользователю новый код, повторяя генерацию при коллизии.
func (s *AccountService) reissueOTP(ctx context.Context, u *models.User) error {
	for attempt := 0; ; attempt++ {
		code, err := otp.Issue(s.opts.OTPLength, s.opts.OTPTTL, s.now())
		if err != nil {
			return err
		}
		err = s.users.SetOTP(ctx, u.ID, code.Value, code.ExpiresAt)
		if errors.Is(err, storage.ErrOTPCollision) && attempt < maxOTPAttempts {
			continue
		}
		if err != nil {
			return err
		}
		u.OTP = &code.Value
		u.OTPExpiresAt = &code.ExpiresAt
		return nil
	}
}

// dispatchOTP отправляет код по email или, если выбран SMS-канал и телефон известен, по SMS.
func (s *AccountService) dispatchOTP(ctx context.Context, u *models.User, format string) error {
	const op = "account.dispatchOTP"
	if u.OTP == nil {
		return fmt.Errorf("%s: user has no otp", op)
	}
	destination := u.Email
	if s.opts.OTPChannel == "sms" && u.Phone != nil && *u.Phone != "" {
		destination = *u.Phone
	}
	message := fmt.Sprintf(format, *u.OTP, int(s.opts.OTPTTL.Minutes()))

	if err := s.notifier.Send(ctx, destination, message); err != nil {
		s.log.Error("failed to dispatch otp", sl.Op(op), slog.Int64("user_id", u.ID), sl.Err(err))
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Wrap(apperr.KindUpstream, "Failed to send OTP.", err)
	}
	return nil
}

// conflictOr переводит нарушение уникальности в ошибку конфликта с полем.
func conflictOr(op string, err error) error {
	var conflict *storage.ConflictError
	if !errors.As(err, &conflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	field := strings.TrimSuffix(strings.TrimPrefix(conflict.Constraint, "users_"), "_key")
	msg := "A user with this " + strings.ReplaceAll(field, "_", " ") + " already exists."
	if field == "email" {
		msg = "Email already registered."
	}
	return &apperr.Error{Kind: apperr.KindConflict, Message: msg, Fields: map[string]string{field: msg}, Err: err}
}
