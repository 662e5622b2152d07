package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// GetPage возвращает страницу контента по slug.
func (s *Storage) GetPage(ctx context.Context, slug string) (*models.ContentPage, error) {
	const op = "storage.GetPage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var p models.ContentPage
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT slug, title, content, created_at, updated_at FROM content_pages WHERE slug = $1`, slug).
		Scan(&p.Slug, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &p, nil
}

// UpsertPage создаёт или обновляет страницу. created сообщает, что запись создана.
func (s *Storage) UpsertPage(ctx context.Context, slug string, in models.ContentPageInput) (page *models.ContentPage, created bool, err error) {
	const op = "storage.UpsertPage"
	if err = checkCtx(ctx, op); err != nil {
		return nil, false, err
	}
	var p models.ContentPage
	err = s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO content_pages (slug, title, content)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''))
		ON CONFLICT (slug) DO UPDATE SET
			title = COALESCE($2, content_pages.title),
			content = COALESCE($3, content_pages.content),
			updated_at = now()
		RETURNING slug, title, content, created_at, updated_at, (xmax = 0)`,
		slug, in.Title, in.Content).
		Scan(&p.Slug, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt, &created)
	if err != nil {
		return nil, false, mapErr(op, err)
	}
	return &p, created, nil
}

// CreateQuery сохраняет обращение из формы обратной связи.
func (s *Storage) CreateQuery(ctx context.Context, in models.ContactQuery) (*models.ContactQuery, error) {
	const op = "storage.CreateQuery"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	q := in
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO contact_queries (name, email, message) VALUES ($1, $2, $3) RETURNING id, created_at`,
		in.Name, in.Email, in.Message).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &q, nil
}

// ListQueries возвращает обращения, новые первыми.
func (s *Storage) ListQueries(ctx context.Context) ([]models.ContactQuery, error) {
	const op = "storage.ListQueries"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, name, email, message, created_at FROM contact_queries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	out := make([]models.ContactQuery, 0)
	for rows.Next() {
		var q models.ContactQuery
		if err := rows.Scan(&q.ID, &q.Name, &q.Email, &q.Message, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetQuery возвращает обращение по идентификатору.
func (s *Storage) GetQuery(ctx context.Context, id int64) (*models.ContactQuery, error) {
	const op = "storage.GetQuery"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var q models.ContactQuery
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, name, email, message, created_at FROM contact_queries WHERE id = $1`, id).
		Scan(&q.ID, &q.Name, &q.Email, &q.Message, &q.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &q, nil
}

// CreateThought сохраняет отзыв пользователя.
func (s *Storage) CreateThought(ctx context.Context, userID int64, text string) (*models.Thought, error) {
	const op = "storage.CreateThought"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var t models.Thought
	err := s.q(ctx).QueryRowContext(ctx, `
		WITH ins AS (
			INSERT INTO shared_thoughts (user_id, thoughts) VALUES ($1, $2)
			RETURNING id, user_id, thoughts, created_at
		)
		SELECT ins.id, ins.user_id, COALESCE(u.username, u.full_name, ''), ins.thoughts, ins.created_at
		FROM ins JOIN users u ON u.id = ins.user_id`, userID, text).
		Scan(&t.ID, &t.UserID, &t.Author, &t.Thoughts, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &t, nil
}

// ListThoughts возвращает отзывы с автором, новые первыми.
func (s *Storage) ListThoughts(ctx context.Context) ([]models.Thought, error) {
	const op = "storage.ListThoughts"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT t.id, t.user_id, COALESCE(u.username, u.full_name, ''), t.thoughts, t.created_at
		FROM shared_thoughts t JOIN users u ON u.id = t.user_id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	out := make([]models.Thought, 0)
	for rows.Next() {
		var t models.Thought
		if err := rows.Scan(&t.ID, &t.UserID, &t.Author, &t.Thoughts, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
