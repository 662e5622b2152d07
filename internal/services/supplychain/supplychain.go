// Package supplychain управляет поставщиками и ресурсами руководителя,
// отчётами по задачам и уведомлениями.
package supplychain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// Repository хранилище цепочки поставок.
type Repository interface {
	ListSuppliers(ctx context.Context, supervisorID int64) ([]models.Supplier, error)
	GetSupplier(ctx context.Context, supervisorID, id int64) (*models.Supplier, error)
	CreateSupplier(ctx context.Context, supervisorID int64, in models.SupplierInput) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, supervisorID, id int64, in models.SupplierInput) (*models.Supplier, error)
	DeleteSupplier(ctx context.Context, supervisorID, id int64) error

	ListResources(ctx context.Context, supervisorID int64) ([]models.Resource, error)
	GetResource(ctx context.Context, supervisorID, id int64) (*models.Resource, error)
	CreateResource(ctx context.Context, supervisorID int64, in models.ResourceInput) (*models.Resource, error)
	UpdateResource(ctx context.Context, supervisorID, id int64, in models.ResourceInput) (*models.Resource, error)
	DeleteResource(ctx context.Context, supervisorID, id int64) error

	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)

	CreateNotification(ctx context.Context, userID int64, message string) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) (*models.Notification, error)
}

// TxRunner выполняет функцию в транзакции, передавая её через контекст.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NotificationCreatedEvent событие notification.created.
type NotificationCreatedEvent struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// SupplyChainService сервис цепочки поставок.
type SupplyChainService struct {
	repo   Repository
	tx     TxRunner
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

// NewSupplyChainService создает новый экземпляр SupplyChainService.
func NewSupplyChainService(repo Repository, tx TxRunner, events EventPublisher, log *slog.Logger) *SupplyChainService {
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &SupplyChainService{repo: repo, tx: tx, events: events, log: log, now: time.Now}
}

// ListSuppliers возвращает поставщиков руководителя.
func (s *SupplyChainService) ListSuppliers(ctx context.Context, supervisorID int64) ([]models.Supplier, error) {
	const op = "supplychain.ListSuppliers"
	out, err := s.repo.ListSuppliers(ctx, supervisorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetSupplier возвращает поставщика руководителя.
func (s *SupplyChainService) GetSupplier(ctx context.Context, supervisorID, id int64) (*models.Supplier, error) {
	const op = "supplychain.GetSupplier"
	sp, err := s.repo.GetSupplier(ctx, supervisorID, id)
	if err != nil {
		return nil, notFound(op, err, "Supplier not found.")
	}
	return sp, nil
}

// CreateSupplier создаёт поставщика и уведомление о нём в одной транзакции.
func (s *SupplyChainService) CreateSupplier(ctx context.Context, supervisorID int64, in models.SupplierInput) (*models.Supplier, error) {
	const op = "supplychain.CreateSupplier"
	fields := map[string]string{}
	if blank(in.SupplierName) {
		fields["supplier_name"] = "This field is required."
	}
	if blank(in.SupplierEmail) {
		fields["supplier_email"] = "This field is required."
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid supplier data.", fields)
	}

	var (
		sp *models.Supplier
		n  *models.Notification
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if sp, err = s.repo.CreateSupplier(ctx, supervisorID, in); err != nil {
			return err
		}
		n, err = s.repo.CreateNotification(ctx, supervisorID, "New Supplier created: "+sp.SupplierName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("supplier created", sl.Op(op), slog.Int64("supplier_id", sp.ID), slog.Int64("supervisor_id", supervisorID))
	s.notify(ctx, n)
	return sp, nil
}

// UpdateSupplier частично обновляет поставщика.
func (s *SupplyChainService) UpdateSupplier(ctx context.Context, supervisorID, id int64, in models.SupplierInput) (*models.Supplier, error) {
	const op = "supplychain.UpdateSupplier"
	fields := map[string]string{}
	if in.SupplierName != nil && blank(in.SupplierName) {
		fields["supplier_name"] = "This field may not be blank."
	}
	if in.SupplierEmail != nil && blank(in.SupplierEmail) {
		fields["supplier_email"] = "This field may not be blank."
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid supplier data.", fields)
	}
	sp, err := s.repo.UpdateSupplier(ctx, supervisorID, id, in)
	if err != nil {
		return nil, notFound(op, err, "Supplier not found.")
	}
	return sp, nil
}

// DeleteSupplier удаляет поставщика.
func (s *SupplyChainService) DeleteSupplier(ctx context.Context, supervisorID, id int64) error {
	const op = "supplychain.DeleteSupplier"
	if err := s.repo.DeleteSupplier(ctx, supervisorID, id); err != nil {
		return notFound(op, err, "Supplier not found.")
	}
	return nil
}

// ListResources возвращает ресурсы руководителя.
func (s *SupplyChainService) ListResources(ctx context.Context, supervisorID int64) ([]models.Resource, error) {
	const op = "supplychain.ListResources"
	out, err := s.repo.ListResources(ctx, supervisorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetResource возвращает ресурс руководителя.
func (s *SupplyChainService) GetResource(ctx context.Context, supervisorID, id int64) (*models.Resource, error) {
	const op = "supplychain.GetResource"
	r, err := s.repo.GetResource(ctx, supervisorID, id)
	if err != nil {
		return nil, notFound(op, err, "Resource not found.")
	}
	return r, nil
}

// CreateResource создаёт ресурс и уведомление о нём в одной транзакции.
func (s *SupplyChainService) CreateResource(ctx context.Context, supervisorID int64, in models.ResourceInput) (*models.Resource, error) {
	const op = "supplychain.CreateResource"
	fields := validateSchedule(in.StartTime, in.EndTime)
	if blank(in.Name) {
		fields["name"] = "This field is required."
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid resource data.", fields)
	}

	var (
		r *models.Resource
		n *models.Notification
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if r, err = s.repo.CreateResource(ctx, supervisorID, in); err != nil {
			return err
		}
		n, err = s.repo.CreateNotification(ctx, supervisorID, "New Resource created: "+r.Name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("resource created", sl.Op(op), slog.Int64("resource_id", r.ID), slog.Int64("supervisor_id", supervisorID))
	s.notify(ctx, n)
	return r, nil
}

// UpdateResource частично обновляет ресурс. Интервал времени проверяется
// по итоговым значениям с учётом полей, которые не менялись.
func (s *SupplyChainService) UpdateResource(ctx context.Context, supervisorID, id int64, in models.ResourceInput) (*models.Resource, error) {
	const op = "supplychain.UpdateResource"
	if in.Name != nil && blank(in.Name) {
		return nil, apperr.Validation("Invalid resource data.", map[string]string{"name": "This field may not be blank."})
	}

	var r *models.Resource
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if in.StartTime != nil || in.EndTime != nil {
			current, err := s.repo.GetResource(ctx, supervisorID, id)
			if err != nil {
				return err
			}
			start, end := current.StartTime, current.EndTime
			if in.StartTime != nil {
				start = in.StartTime
			}
			if in.EndTime != nil {
				end = in.EndTime
			}
			if fields := validateSchedule(start, end); len(fields) > 0 {
				return apperr.Validation("Invalid resource data.", fields)
			}
		}
		var err error
		r, err = s.repo.UpdateResource(ctx, supervisorID, id, in)
		return err
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, notFound(op, err, "Resource not found.")
	}
	return r, nil
}

// DeleteResource удаляет ресурс.
func (s *SupplyChainService) DeleteResource(ctx context.Context, supervisorID, id int64) error {
	const op = "supplychain.DeleteResource"
	if err := s.repo.DeleteResource(ctx, supervisorID, id); err != nil {
		return notFound(op, err, "Resource not found.")
	}
	return nil
}

// ListNotifications возвращает уведомления пользователя, новые первыми.
func (s *SupplyChainService) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	const op = "supplychain.ListNotifications"
	out, err := s.repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// MarkRead отмечает уведомление прочитанным.
func (s *SupplyChainService) MarkRead(ctx context.Context, userID, id int64) (*models.Notification, error) {
	const op = "supplychain.MarkRead"
	n, err := s.repo.MarkNotificationRead(ctx, userID, id)
	if err != nil {
		return nil, notFound(op, err, "Notification not found.")
	}
	return n, nil
}

// notify публикует notification.created. Ошибка брокера только логируется.
func (s *SupplyChainService) notify(ctx context.Context, n *models.Notification) {
	if n == nil {
		return
	}
	err := s.events.Publish(ctx, rabbitmq.RoutingNotificationCreated, NotificationCreatedEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		s.log.Warn("failed to publish notification event", slog.Int64("notification_id", n.ID), sl.Err(err))
	}
}

// validateSchedule проверяет, что конец рабочего интервала позже начала.
func validateSchedule(start, end *string) map[string]string {
	fields := map[string]string{}
	if start == nil || end == nil {
		return fields
	}
	st, errStart := time.Parse("15:04", *start)
	et, errEnd := time.Parse("15:04", *end)
	if errStart != nil {
		fields["start_time"] = "Time has wrong format. Use HH:MM."
	}
	if errEnd != nil {
		fields["end_time"] = "Time has wrong format. Use HH:MM."
	}
	if errStart == nil && errEnd == nil && !et.After(st) {
		fields["end_time"] = "End time must be after start time."
	}
	return fields
}

func blank(v *string) bool {
	return v == nil || *v == ""
}

func notFound(op string, err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}
