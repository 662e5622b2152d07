// Package content отвечает за статические страницы, обращения из формы
// обратной связи и отзывы пользователей.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// Slugs страницы, которые можно читать и редактировать.
var Slugs = []string{models.PagePrivacyPolicy, models.PageAboutUs, models.PageTermsConditions}

// Repository хранилище контента.
type Repository interface {
	GetPage(ctx context.Context, slug string) (*models.ContentPage, error)
	UpsertPage(ctx context.Context, slug string, in models.ContentPageInput) (*models.ContentPage, bool, error)
	CreateQuery(ctx context.Context, in models.ContactQuery) (*models.ContactQuery, error)
	ListQueries(ctx context.Context) ([]models.ContactQuery, error)
	GetQuery(ctx context.Context, id int64) (*models.ContactQuery, error)
	CreateThought(ctx context.Context, userID int64, text string) (*models.Thought, error)
	ListThoughts(ctx context.Context) ([]models.Thought, error)
}

// ContentService сервис контента.
type ContentService struct {
	repo Repository
	log  *slog.Logger
}

// NewContentService создает новый экземпляр ContentService.
func NewContentService(repo Repository, log *slog.Logger) *ContentService {
	return &ContentService{repo: repo, log: log}
}

// Page возвращает страницу по slug.
func (s *ContentService) Page(ctx context.Context, slug string) (*models.ContentPage, error) {
	const op = "content.Page"
	if !slices.Contains(Slugs, slug) {
		return nil, apperr.New(apperr.KindNotFound, "Page not found.")
	}
	p, err := s.repo.GetPage(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "No content found.")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// SavePage создаёт страницу или обновляет заданные поля.
// created сообщает, что страница создана этим вызовом.
func (s *ContentService) SavePage(ctx context.Context, slug string, in models.ContentPageInput) (*models.ContentPage, bool, error) {
	const op = "content.SavePage"
	if !slices.Contains(Slugs, slug) {
		return nil, false, apperr.New(apperr.KindNotFound, "Page not found.")
	}
	if in.Title == nil && in.Content == nil {
		return nil, false, apperr.Validation("Nothing to update.", map[string]string{
			"content": "Provide title or content.",
		})
	}
	p, created, err := s.repo.UpsertPage(ctx, slug, in)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("content page saved", sl.Op(op), slog.String("slug", slug), slog.Bool("created", created))
	return p, created, nil
}

// CreateQuery сохраняет обращение посетителя.
func (s *ContentService) CreateQuery(ctx context.Context, in models.ContactQuery) (*models.ContactQuery, error) {
	const op = "content.CreateQuery"
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "This field is required."
	}
	if in.Email == "" {
		fields["email"] = "This field is required."
	}
	if strings.TrimSpace(in.Message) == "" {
		fields["message"] = "This field is required."
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid query.", fields)
	}
	q, err := s.repo.CreateQuery(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return q, nil
}

// ListQueries возвращает все обращения.
func (s *ContentService) ListQueries(ctx context.Context) ([]models.ContactQuery, error) {
	const op = "content.ListQueries"
	out, err := s.repo.ListQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetQuery возвращает обращение по идентификатору.
func (s *ContentService) GetQuery(ctx context.Context, id int64) (*models.ContactQuery, error) {
	const op = "content.GetQuery"
	q, err := s.repo.GetQuery(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "Query not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return q, nil
}

// ShareThought сохраняет отзыв пользователя.
func (s *ContentService) ShareThought(ctx context.Context, userID int64, text string) (*models.Thought, error) {
	const op = "content.ShareThought"
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("Invalid thought.", map[string]string{"thoughts": "This field is required."})
	}
	t, err := s.repo.CreateThought(ctx, userID, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// ListThoughts возвращает отзывы, новые первыми.
func (s *ContentService) ListThoughts(ctx context.Context) ([]models.Thought, error) {
	const op = "content.ListThoughts"
	out, err := s.repo.ListThoughts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
