// Package storage реализует хранилище данных маркетплейса на основе PostgreSQL:
// пользователи, тарифы и подписки, записи цепочки поставок и контент.
//
// Транзакция передаётся через context: методы, вызванные внутри InTx,
// автоматически выполняются в ней. Изменения пользователей и подписок
// вызывают зарегистрированные хуки после успешного коммита.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
)

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrConflict нарушено ограничение уникальности.
	ErrConflict = errors.New("record already exists")
	// ErrOTPCollision сгенерированный код уже выдан другому пользователю.
	ErrOTPCollision = errors.New("otp already in use")
)

// ConflictError уточняет, какое ограничение уникальности нарушено.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint %q violated", e.Constraint)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Entity сущность, на изменения которой можно подписать хук.
type Entity string

const (
	EntityUsers         Entity = "users"
	EntitySubscriptions Entity = "subscriptions"
)

// Hook вызывается после коммита изменений сущности.
type Hook func(ctx context.Context)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	tx      *sql.Tx
	changed map[Entity]struct{}
}

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB  *sql.DB
	log *slog.Logger

	mu    sync.RWMutex
	hooks map[Entity][]Hook
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string, log *slog.Logger) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB:    db,
		log:   log,
		hooks: make(map[Entity][]Hook),
	}, nil
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// OnCommit регистрирует хук на изменения сущности.
func (s *Storage) OnCommit(e Entity, h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[e] = append(s.hooks[e], h)
}

func (s *Storage) runHooks(ctx context.Context, e Entity) {
	s.mu.RLock()
	hooks := append([]Hook(nil), s.hooks[e]...)
	s.mu.RUnlock()
	for _, h := range hooks {
		h(ctx)
	}
}

// changed отмечает изменение сущности: вне транзакции хуки вызываются сразу,
// внутри откладываются до коммита.
func (s *Storage) changed(ctx context.Context, e Entity) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.changed[e] = struct{}{}
		return
	}
	s.runHooks(ctx, e)
}

func (s *Storage) q(ctx context.Context) querier {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return s.DB
}

// InTx выполняет fn в транзакции. Вложенный вызов переиспользует внешнюю
// транзакцию. Хуки изменённых сущностей вызываются после коммита.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	const op = "storage.InTx"
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	st := &txState{tx: tx, changed: make(map[Entity]struct{})}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Error("failed to rollback transaction", sl.Err(rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	for e := range st.changed {
		s.runHooks(ctx, e)
	}
	return nil
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// mapErr переводит ошибки драйвера в ошибки пакета.
func mapErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "users_otp_key" {
			return fmt.Errorf("%s: %w", op, ErrOTPCollision)
		}
		return fmt.Errorf("%s: %w", op, &ConflictError{Constraint: pgErr.ConstraintName})
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}
