package models

import "time"

// Страницы статического контента.
const (
	PagePrivacyPolicy   = "privacy-policy"
	PageAboutUs         = "about-us"
	PageTermsConditions = "terms-conditions"
)

// ContentPage единственная запись страницы контента.
type ContentPage struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentPageInput тело PUT/PATCH страницы.
type ContentPageInput struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content"`
}

// ContactQuery обращение посетителя через форму обратной связи.
type ContactQuery struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required,max=255"`
	Email     string    `json:"email" validate:"required,email"`
	Message   string    `json:"message" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// Thought отзыв пользователя.
type Thought struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Author    string    `json:"author,omitempty"`
	Thoughts  string    `json:"thoughts" validate:"required,max=5000"`
	CreatedAt time.Time `json:"created_at"`
}
