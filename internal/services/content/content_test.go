package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// Мок для Repository
type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetPage(ctx context.Context, slug string) (*models.ContentPage, error) {
	args := m.Called(ctx, slug)
	p, _ := args.Get(0).(*models.ContentPage)
	return p, args.Error(1)
}

func (m *RepoMock) UpsertPage(ctx context.Context, slug string, in models.ContentPageInput) (*models.ContentPage, bool, error) {
	args := m.Called(ctx, slug, in)
	p, _ := args.Get(0).(*models.ContentPage)
	return p, args.Bool(1), args.Error(2)
}

func (m *RepoMock) CreateQuery(ctx context.Context, in models.ContactQuery) (*models.ContactQuery, error) {
	args := m.Called(ctx, in)
	q, _ := args.Get(0).(*models.ContactQuery)
	return q, args.Error(1)
}

func (m *RepoMock) ListQueries(ctx context.Context) ([]models.ContactQuery, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]models.ContactQuery)
	return out, args.Error(1)
}

func (m *RepoMock) GetQuery(ctx context.Context, id int64) (*models.ContactQuery, error) {
	args := m.Called(ctx, id)
	q, _ := args.Get(0).(*models.ContactQuery)
	return q, args.Error(1)
}

func (m *RepoMock) CreateThought(ctx context.Context, userID int64, text string) (*models.Thought, error) {
	args := m.Called(ctx, userID, text)
	t, _ := args.Get(0).(*models.Thought)
	return t, args.Error(1)
}

func (m *RepoMock) ListThoughts(ctx context.Context) ([]models.Thought, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]models.Thought)
	return out, args.Error(1)
}

func strPtr(s string) *string { return &s }

func TestPage(t *testing.T) {
	tests := []struct {
		name     string
		slug     string
		repoPage *models.ContentPage
		repoErr  error
		wantErr  bool
		wantKind apperr.Kind
		wantMsg  string
	}{
		{name: "found", slug: models.PageAboutUs, repoPage: &models.ContentPage{Slug: models.PageAboutUs, Title: "About"}},
		{name: "empty", slug: models.PagePrivacyPolicy, repoErr: storage.ErrNotFound, wantErr: true, wantKind: apperr.KindNotFound, wantMsg: "No content found."},
		{name: "unknown slug", slug: "careers", wantErr: true, wantKind: apperr.KindNotFound, wantMsg: "Page not found."},
		{name: "storage failure", slug: models.PageTermsConditions, repoErr: errors.New("boom"), wantErr: true, wantKind: apperr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			svc := NewContentService(repo, logger.NewDiscard())
			repo.On("GetPage", mock.Anything, tt.slug).Return(tt.repoPage, tt.repoErr).Maybe()

			p, err := svc.Page(context.Background(), tt.slug)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				if tt.wantMsg != "" {
					e, _ := apperr.As(err)
					assert.Equal(t, tt.wantMsg, e.Message)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "About", p.Title)
		})
	}
}

func TestSavePage(t *testing.T) {
	ctx := context.Background()
	repo := new(RepoMock)
	svc := NewContentService(repo, logger.NewDiscard())

	in := models.ContentPageInput{Title: strPtr("Privacy"), Content: strPtr("We keep nothing.")}
	repo.On("UpsertPage", mock.Anything, models.PagePrivacyPolicy, in).
		Return(&models.ContentPage{Slug: models.PagePrivacyPolicy, Title: "Privacy"}, true, nil).Once()
	patch := models.ContentPageInput{Content: strPtr("Updated.")}
	repo.On("UpsertPage", mock.Anything, models.PagePrivacyPolicy, patch).
		Return(&models.ContentPage{Slug: models.PagePrivacyPolicy, Title: "Privacy", Content: "Updated."}, false, nil).Once()

	p, created, err := svc.SavePage(ctx, models.PagePrivacyPolicy, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Privacy", p.Title)

	p, created, err = svc.SavePage(ctx, models.PagePrivacyPolicy, patch)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Privacy", p.Title)

	_, _, err = svc.SavePage(ctx, models.PagePrivacyPolicy, models.ContentPageInput{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, _, err = svc.SavePage(ctx, "careers", in)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	repo.AssertExpectations(t)
}

func TestCreateQuery(t *testing.T) {
	ctx := context.Background()
	repo := new(RepoMock)
	svc := NewContentService(repo, logger.NewDiscard())

	repo.On("CreateQuery", mock.Anything, models.ContactQuery{Name: "Ann", Email: "ann@example.com", Message: "Hi"}).
		Return(&models.ContactQuery{ID: 1, Name: "Ann", Email: "ann@example.com", Message: "Hi"}, nil).Once()

	q, err := svc.CreateQuery(ctx, models.ContactQuery{Name: " Ann ", Email: "Ann@Example.com", Message: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.ID)

	_, err = svc.CreateQuery(ctx, models.ContactQuery{Name: "Ann"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "email")
	assert.Contains(t, e.Fields, "message")
	repo.AssertExpectations(t)
}

func TestGetQueryNotFound(t *testing.T) {
	repo := new(RepoMock)
	svc := NewContentService(repo, logger.NewDiscard())
	repo.On("GetQuery", mock.Anything, int64(4)).Return(nil, storage.ErrNotFound).Once()

	_, err := svc.GetQuery(context.Background(), 4)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestShareThought(t *testing.T) {
	ctx := context.Background()
	repo := new(RepoMock)
	svc := NewContentService(repo, logger.NewDiscard())
	repo.On("CreateThought", mock.Anything, int64(2), "Great app").
		Return(&models.Thought{ID: 1, UserID: 2, Author: "ann", Thoughts: "Great app"}, nil).Once()

	th, err := svc.ShareThought(ctx, 2, "Great app")
	require.NoError(t, err)
	assert.Equal(t, "ann", th.Author)

	_, err = svc.ShareThought(ctx, 2, "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	repo.AssertExpectations(t)
}
