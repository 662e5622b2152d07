// Package models содержит доменные структуры маркетплейса: пользователей,
// тарифы и подписки, записи цепочки поставок и страницы контента.
// Структуры используются в бизнес-логике, хранилище и HTTP-ответах.
package models

import "time"

// Роли, которые попадают в JWT.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User представляет зарегистрированного пользователя системы.
//
// Email, Phone и Username уникальны, если заданы; хотя бы одно из них обязательно.
// Пустой PasswordHash означает, что вход по паролю невозможен (социальный вход).
type User struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email,omitempty"`
	Phone             *string    `json:"phone,omitempty"`
	Username          *string    `json:"username,omitempty"`
	FullName          string     `json:"full_name"`
	PasswordHash      string     `json:"-"`
	ProfilePicURL     string     `json:"profile_pic_url,omitempty"`
	Country           string     `json:"country,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	OTP               *string    `json:"-"`
	OTPExpiresAt      *time.Time `json:"-"`
	IsVerified        bool       `json:"is_verified"`
	IsActive          bool       `json:"is_active"`
	IsStaff           bool       `json:"is_staff"`
	IsSuperuser       bool       `json:"is_superuser"`
	CompanyName       string     `json:"company_name,omitempty"`
	CVRNumber         *int64     `json:"cvr_number,omitempty"`
	BankName          string     `json:"bank_name,omitempty"`
	AccountNumber     *int64     `json:"account_number,omitempty"`
	IBAN              string     `json:"iban,omitempty"`
	SwiftIBC          string     `json:"swift_ibc,omitempty"`
	HourlyRate        *float64   `json:"hourly_rate,omitempty"`
	ProfitOnMaterials *float64   `json:"profit_on_materials,omitempty"`
	RiskMargin        *float64   `json:"risk_margin,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
}

// Role возвращает роль пользователя для токена.
func (u *User) Role() string {
	if u.IsStaff {
		return RoleAdmin
	}
	return RoleUser
}

// HasUsablePassword сообщает, можно ли войти по паролю.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != ""
}

// UserWithSubscriptions пользователь вместе с историей подписок (админ-панель).
type UserWithSubscriptions struct {
	User
	Subscriptions []Subscription `json:"subscriptions"`
}

// ProfileUpdate частичное обновление профиля: nil означает «не менять».
type ProfileUpdate struct {
	FullName          *string  `json:"full_name" validate:"omitempty,max=255"`
	Username          *string  `json:"username" validate:"omitempty,min=3,max=150"`
	Phone             *string  `json:"phone" validate:"omitempty,max=20"`
	Country           *string  `json:"country" validate:"omitempty,max=100"`
	Bio               *string  `json:"bio" validate:"omitempty,max=2000"`
	ProfilePicURL     *string  `json:"profile_pic_url" validate:"omitempty,url"`
	CompanyName       *string  `json:"company_name" validate:"omitempty,max=255"`
	CVRNumber         *int64   `json:"cvr_number" validate:"omitempty,gt=0"`
	BankName          *string  `json:"bank_name" validate:"omitempty,max=255"`
	AccountNumber     *int64   `json:"account_number" validate:"omitempty,gt=0"`
	IBAN              *string  `json:"iban" validate:"omitempty,max=34"`
	SwiftIBC          *string  `json:"swift_ibc" validate:"omitempty,max=11"`
	HourlyRate        *float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
	ProfitOnMaterials *float64 `json:"profit_on_materials" validate:"omitempty,gte=0,lte=100"`
	RiskMargin        *float64 `json:"risk_margin" validate:"omitempty,gte=0,lte=100"`
}

// TokenPair access и refresh токены.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResult результат успешного входа.
type AuthResult struct {
	User   *User      `json:"user"`
	Tokens *TokenPair `json:"tokens"`
}

// SocialIdentity данные, полученные от внешнего провайдера входа.
type SocialIdentity struct {
	Email    string
	FullName string
}
