package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
	"github.com/magabrotheeeer/marketplace-backend/internal/migrations"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя с email
func (f *TestDataFactory) CreateUser(t *testing.T, email string, verified bool) *models.User {
	t.Helper()
	u, err := f.storage.CreateUser(context.Background(), &models.User{
		Email:        email,
		FullName:     "Test User",
		PasswordHash: "hashedpassword",
		IsVerified:   verified,
		IsActive:     true,
	})
	require.NoError(t, err)
	return u
}

// CreatePlan создает тестовый тариф
func (f *TestDataFactory) CreatePlan(t *testing.T, name string, price float64) *models.Plan {
	t.Helper()
	p, err := f.storage.CreatePlan(context.Background(), models.PlanCreate{Name: name, Price: price})
	require.NoError(t, err)
	return p
}

// CreateTask создает задачу внешней системы
func (f *TestDataFactory) CreateTask(t *testing.T, id, status, price string, createdAt time.Time) {
	t.Helper()
	_, err := f.storage.DB.Exec(`INSERT INTO tasks (id, status, price, bill_of_materials, created_at)
		VALUES ($1, $2, $3, '[{"item":"pipe"}]', $4)`, id, status, price, createdAt)
	require.NoError(t, err)
}

// CountActiveSubscriptions возвращает число активных подписок пользователя
func (f *TestDataFactory) CountActiveSubscriptions(t *testing.T, userID int64) int {
	t.Helper()
	var n int
	err := f.storage.DB.QueryRow(
		`SELECT COUNT(*) FROM user_subscriptions WHERE user_id = $1 AND active`, userID).Scan(&n)
	require.NoError(t, err)
	return n
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr, logger.NewDiscard())
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")

	require.NoError(t, migrations.Run(storage.DB), "Failed to apply migrations")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return storage, cleanup
}
