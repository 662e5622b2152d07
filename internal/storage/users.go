package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

const userColumns = `id, COALESCE(email, ''), phone, username, full_name, password_hash,
	profile_pic_url, country, bio, otp, otp_expires_at, is_verified, is_active,
	is_staff, is_superuser, company_name, cvr_number, bank_name, account_number,
	iban, swift_ibc, hourly_rate::float8, profit_on_materials::float8,
	risk_margin::float8, created_at, updated_at, last_activity`

func scanUser(row scanner) (*models.User, error) {
	var (
		u                  models.User
		phone, username    sql.NullString
		otp                sql.NullString
		otpExpires, lastAt sql.NullTime
		cvr, account       sql.NullInt64
		hourly, profit     sql.NullFloat64
		risk               sql.NullFloat64
	)
	err := row.Scan(
		&u.ID, &u.Email, &phone, &username, &u.FullName, &u.PasswordHash,
		&u.ProfilePicURL, &u.Country, &u.Bio, &otp, &otpExpires, &u.IsVerified, &u.IsActive,
		&u.IsStaff, &u.IsSuperuser, &u.CompanyName, &cvr, &u.BankName, &account,
		&u.IBAN, &u.SwiftIBC, &hourly, &profit,
		&risk, &u.CreatedAt, &u.UpdatedAt, &lastAt,
	)
	if err != nil {
		return nil, err
	}
	u.Phone = nullString(phone)
	u.Username = nullString(username)
	u.OTP = nullString(otp)
	u.OTPExpiresAt = nullTime(otpExpires)
	u.LastActivity = nullTime(lastAt)
	u.CVRNumber = nullInt(cvr)
	u.AccountNumber = nullInt(account)
	u.HourlyRate = nullFloat(hourly)
	u.ProfitOnMaterials = nullFloat(profit)
	u.RiskMargin = nullFloat(risk)
	return &u, nil
}

// CreateUser сохраняет нового пользователя. Email приводится к нижнему регистру.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO users (email, phone, username, full_name, password_hash, otp, otp_expires_at,
			is_verified, is_active, is_staff, is_superuser)
		VALUES (NULLIF(lower($1), ''), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+userColumns,
		u.Email, u.Phone, u.Username, u.FullName, u.PasswordHash, u.OTP, u.OTPExpiresAt,
		u.IsVerified, u.IsActive, u.IsStaff, u.IsSuperuser,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, mapErr(op, err)
	}
	s.changed(ctx, EntityUsers)
	return created, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUserByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// GetUserByEmail ищет пользователя по email без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, strings.TrimSpace(email)))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// GetUserByLogin ищет пользователя по email, телефону или имени пользователя.
func (s *Storage) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	const op = "storage.GetUserByLogin"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	identifier = strings.TrimSpace(identifier)
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE email = lower($1) OR phone = $1 OR username = $1
		ORDER BY (email = lower($1)) DESC NULLS LAST, id
		LIMIT 1`, identifier))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// LockUser блокирует строку пользователя до конца транзакции.
func (s *Storage) LockUser(ctx context.Context, id int64) error {
	const op = "storage.LockUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	var locked int64
	err := s.q(ctx).QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		return mapErr(op, err)
	}
	return nil
}

// SetOTP записывает новый код и срок его действия.
// Нарушение уникальности кода возвращает ErrOTPCollision.
func (s *Storage) SetOTP(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	const op = "storage.SetOTP"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET otp = $2, otp_expires_at = $3, updated_at = now() WHERE id = $1`,
		userID, code, expiresAt)
	if err != nil {
		return mapErr(op, err)
	}
	if err = affected(op, res); err != nil {
		return err
	}
	s.changed(ctx, EntityUsers)
	return nil
}

// VerifyOTP атомарно подтверждает неподтверждённого пользователя с действующим кодом
// и очищает код. Два одновременных вызова с одним кодом не могут оба завершиться успехом.
// ErrNotFound означает, что подходящего кода нет.
func (s *Storage) VerifyOTP(ctx context.Context, code string, now time.Time) (*models.User, error) {
	const op = "storage.VerifyOTP"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `
		UPDATE users SET is_verified = TRUE, otp = NULL, otp_expires_at = NULL, updated_at = now()
		WHERE otp = $1 AND otp_expires_at >= $2 AND is_verified = FALSE
		RETURNING `+userColumns, code, now))
	if err != nil {
		return nil, mapErr(op, err)
	}
	s.changed(ctx, EntityUsers)
	return u, nil
}

// ConsumeResetOTP атомарно очищает действующий код подтверждённого пользователя.
func (s *Storage) ConsumeResetOTP(ctx context.Context, code string, now time.Time) (*models.User, error) {
	const op = "storage.ConsumeResetOTP"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `
		UPDATE users SET otp = NULL, otp_expires_at = NULL, updated_at = now()
		WHERE otp = $1 AND otp_expires_at >= $2 AND is_verified = TRUE
		RETURNING `+userColumns, code, now))
	if err != nil {
		return nil, mapErr(op, err)
	}
	s.changed(ctx, EntityUsers)
	return u, nil
}

// GetUserByOTP возвращает владельца кода независимо от срока действия.
func (s *Storage) GetUserByOTP(ctx context.Context, code string) (*models.User, error) {
	const op = "storage.GetUserByOTP"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE otp = $1`, code))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

// SetPassword заменяет хеш пароля.
func (s *Storage) SetPassword(ctx context.Context, userID int64, hash string) error {
	const op = "storage.SetPassword"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, hash)
	if err != nil {
		return mapErr(op, err)
	}
	if err = affected(op, res); err != nil {
		return err
	}
	s.changed(ctx, EntityUsers)
	return nil
}

// MarkVerified отмечает пользователя подтверждённым.
func (s *Storage) MarkVerified(ctx context.Context, userID int64) error {
	const op = "storage.MarkVerified"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE, otp = NULL, otp_expires_at = NULL, updated_at = now() WHERE id = $1`,
		userID)
	if err != nil {
		return mapErr(op, err)
	}
	if err = affected(op, res); err != nil {
		return err
	}
	s.changed(ctx, EntityUsers)
	return nil
}

// TouchLastActivity обновляет время последней активности.
func (s *Storage) TouchLastActivity(ctx context.Context, userID int64, at time.Time) error {
	const op = "storage.TouchLastActivity"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if _, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET last_activity = $2 WHERE id = $1`, userID, at); err != nil {
		return mapErr(op, err)
	}
	return nil
}

// UpdateProfile применяет частичное обновление профиля: nil-поля не меняются.
func (s *Storage) UpdateProfile(ctx context.Context, userID int64, p models.ProfileUpdate) (*models.User, error) {
	const op = "storage.UpdateProfile"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `
		UPDATE users SET
			full_name = COALESCE($2, full_name),
			username = COALESCE($3, username),
			phone = COALESCE($4, phone),
			country = COALESCE($5, country),
			bio = COALESCE($6, bio),
			profile_pic_url = COALESCE($7, profile_pic_url),
			company_name = COALESCE($8, company_name),
			cvr_number = COALESCE($9, cvr_number),
			bank_name = COALESCE($10, bank_name),
			account_number = COALESCE($11, account_number),
			iban = COALESCE($12, iban),
			swift_ibc = COALESCE($13, swift_ibc),
			hourly_rate = COALESCE($14, hourly_rate),
			profit_on_materials = COALESCE($15, profit_on_materials),
			risk_margin = COALESCE($16, risk_margin),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, p.FullName, p.Username, p.Phone, p.Country, p.Bio, p.ProfilePicURL,
		p.CompanyName, p.CVRNumber, p.BankName, p.AccountNumber, p.IBAN, p.SwiftIBC,
		p.HourlyRate, p.ProfitOnMaterials, p.RiskMargin,
	))
	if err != nil {
		return nil, mapErr(op, err)
	}
	s.changed(ctx, EntityUsers)
	return u, nil
}

// CountUsers возвращает общее число пользователей и число подтверждённых.
func (s *Storage) CountUsers(ctx context.Context) (total, verified int64, err error) {
	const op = "storage.CountUsers"
	if err = checkCtx(ctx, op); err != nil {
		return 0, 0, err
	}
	err = s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_verified) FROM users`).Scan(&total, &verified)
	if err != nil {
		return 0, 0, mapErr(op, err)
	}
	return total, verified, nil
}

// ListUsers возвращает страницу пользователей (новые первыми) с их подписками.
func (s *Storage) ListUsers(ctx context.Context, page models.Page) ([]models.UserWithSubscriptions, int64, error) {
	const op = "storage.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	var count int64
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return nil, 0, mapErr(op, err)
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		page.Size, page.Offset())
	if err != nil {
		return nil, 0, mapErr(op, err)
	}
	defer rows.Close()

	users := make([]models.UserWithSubscriptions, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, models.UserWithSubscriptions{User: *u})
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	for i := range users {
		subs, err := s.ListUserSubscriptions(ctx, users[i].ID)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		users[i].Subscriptions = subs
	}
	return users, count, nil
}

// GetUserWithSubscriptions возвращает пользователя с историей подписок.
func (s *Storage) GetUserWithSubscriptions(ctx context.Context, id int64) (*models.UserWithSubscriptions, error) {
	const op = "storage.GetUserWithSubscriptions"
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subs, err := s.ListUserSubscriptions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.UserWithSubscriptions{User: *u, Subscriptions: subs}, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
