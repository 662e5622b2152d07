package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

const supplierColumns = `id, supervisor_id, supplier_name, supplier_email, phone_number, profile_picture_url,
	materials_supplied, role, add_to_calender, created_at, updated_at`

func scanSupplier(row scanner) (*models.Supplier, error) {
	var sp models.Supplier
	if err := row.Scan(&sp.ID, &sp.SupervisorID, &sp.SupplierName, &sp.SupplierEmail, &sp.PhoneNumber,
		&sp.ProfilePictureURL, &sp.MaterialsSupplied, &sp.Role, &sp.AddToCalender,
		&sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return nil, err
	}
	return &sp, nil
}

// ListSuppliers возвращает поставщиков руководителя, новые первыми.
func (s *Storage) ListSuppliers(ctx context.Context, supervisorID int64) ([]models.Supplier, error) {
	const op = "storage.ListSuppliers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE supervisor_id = $1 ORDER BY created_at DESC, id DESC`,
		supervisorID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	out := make([]models.Supplier, 0)
	for rows.Next() {
		sp, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *sp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetSupplier возвращает поставщика руководителя. Чужие записи не находятся.
func (s *Storage) GetSupplier(ctx context.Context, supervisorID, id int64) (*models.Supplier, error) {
	const op = "storage.GetSupplier"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	sp, err := scanSupplier(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 AND supervisor_id = $2`, id, supervisorID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sp, nil
}

// CreateSupplier сохраняет поставщика.
func (s *Storage) CreateSupplier(ctx context.Context, supervisorID int64, in models.SupplierInput) (*models.Supplier, error) {
	const op = "storage.CreateSupplier"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	sp, err := scanSupplier(s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO suppliers (supervisor_id, supplier_name, supplier_email, phone_number,
			profile_picture_url, materials_supplied, role, add_to_calender)
		VALUES ($1, $2, $3, COALESCE($4, ''), COALESCE($5, ''), COALESCE($6, ''), COALESCE($7, ''), COALESCE($8, FALSE))
		RETURNING `+supplierColumns,
		supervisorID, in.SupplierName, in.SupplierEmail, in.PhoneNumber, in.ProfilePictureURL,
		in.MaterialsSupplied, in.Role, in.AddToCalender))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sp, nil
}

// UpdateSupplier применяет частичное обновление поставщика руководителя.
func (s *Storage) UpdateSupplier(ctx context.Context, supervisorID, id int64, in models.SupplierInput) (*models.Supplier, error) {
	const op = "storage.UpdateSupplier"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	sp, err := scanSupplier(s.q(ctx).QueryRowContext(ctx, `
		UPDATE suppliers SET
			supplier_name = COALESCE($3, supplier_name),
			supplier_email = COALESCE($4, supplier_email),
			phone_number = COALESCE($5, phone_number),
			profile_picture_url = COALESCE($6, profile_picture_url),
			materials_supplied = COALESCE($7, materials_supplied),
			role = COALESCE($8, role),
			add_to_calender = COALESCE($9, add_to_calender),
			updated_at = now()
		WHERE id = $1 AND supervisor_id = $2
		RETURNING `+supplierColumns,
		id, supervisorID, in.SupplierName, in.SupplierEmail, in.PhoneNumber, in.ProfilePictureURL,
		in.MaterialsSupplied, in.Role, in.AddToCalender))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sp, nil
}

// DeleteSupplier удаляет поставщика руководителя.
func (s *Storage) DeleteSupplier(ctx context.Context, supervisorID, id int64) error {
	const op = "storage.DeleteSupplier"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1 AND supervisor_id = $2`, id, supervisorID)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

const resourceColumns = `id, supervisor_id, name, role, email, phone_number, profile_picture_url,
	add_to_calender, days::text, start_time, end_time, created_at, updated_at`

func scanResource(row scanner) (*models.Resource, error) {
	var (
		r          models.Resource
		days       []byte
		start, end sql.NullString
	)
	if err := row.Scan(&r.ID, &r.SupervisorID, &r.Name, &r.Role, &r.Email, &r.PhoneNumber,
		&r.ProfilePictureURL, &r.AddToCalender, &days, &start, &end, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Days = []string{}
	if len(days) > 0 {
		if err := json.Unmarshal(days, &r.Days); err != nil {
			return nil, err
		}
	}
	r.StartTime = nullString(start)
	r.EndTime = nullString(end)
	return &r, nil
}

func daysParam(days *[]string) (*string, error) {
	if days == nil {
		return nil, nil
	}
	list := *days
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	v := string(b)
	return &v, nil
}

// ListResources возвращает ресурсы руководителя, новые первыми.
func (s *Storage) ListResources(ctx context.Context, supervisorID int64) ([]models.Resource, error) {
	const op = "storage.ListResources"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE supervisor_id = $1 ORDER BY created_at DESC, id DESC`,
		supervisorID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	out := make([]models.Resource, 0)
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetResource возвращает ресурс руководителя.
func (s *Storage) GetResource(ctx context.Context, supervisorID, id int64) (*models.Resource, error) {
	const op = "storage.GetResource"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	r, err := scanResource(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1 AND supervisor_id = $2`, id, supervisorID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return r, nil
}

// CreateResource сохраняет ресурс.
func (s *Storage) CreateResource(ctx context.Context, supervisorID int64, in models.ResourceInput) (*models.Resource, error) {
	const op = "storage.CreateResource"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	days, err := daysParam(in.Days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r, err := scanResource(s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO resources (supervisor_id, name, role, email, phone_number, profile_picture_url,
			add_to_calender, days, start_time, end_time)
		VALUES ($1, $2, COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''), COALESCE($6, ''),
			COALESCE($7, FALSE), COALESCE($8::jsonb, '[]'::jsonb), $9, $10)
		RETURNING `+resourceColumns,
		supervisorID, in.Name, in.Role, in.Email, in.PhoneNumber, in.ProfilePictureURL,
		in.AddToCalender, days, in.StartTime, in.EndTime))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return r, nil
}

// UpdateResource применяет частичное обновление ресурса руководителя.
func (s *Storage) UpdateResource(ctx context.Context, supervisorID, id int64, in models.ResourceInput) (*models.Resource, error) {
	const op = "storage.UpdateResource"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	days, err := daysParam(in.Days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r, err := scanResource(s.q(ctx).QueryRowContext(ctx, `
		UPDATE resources SET
			name = COALESCE($3, name),
			role = COALESCE($4, role),
			email = COALESCE($5, email),
			phone_number = COALESCE($6, phone_number),
			profile_picture_url = COALESCE($7, profile_picture_url),
			add_to_calender = COALESCE($8, add_to_calender),
			days = COALESCE($9::jsonb, days),
			start_time = COALESCE($10, start_time),
			end_time = COALESCE($11, end_time),
			updated_at = now()
		WHERE id = $1 AND supervisor_id = $2
		RETURNING `+resourceColumns,
		id, supervisorID, in.Name, in.Role, in.Email, in.PhoneNumber, in.ProfilePictureURL,
		in.AddToCalender, days, in.StartTime, in.EndTime))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return r, nil
}

// DeleteResource удаляет ресурс руководителя.
func (s *Storage) DeleteResource(ctx context.Context, supervisorID, id int64) error {
	const op = "storage.DeleteResource"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM resources WHERE id = $1 AND supervisor_id = $2`, id, supervisorID)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

const taskColumns = `id, user_id, customer_name, phone, address, task_description,
	COALESCE(bill_of_materials, ''), time, resource, status, materials_ordered, COALESCE(price, ''), created_at`

func scanTask(row scanner) (*models.Task, error) {
	var (
		t           models.Task
		userID      sql.NullInt64
		bom, priceS string
	)
	if err := row.Scan(&t.ID, &userID, &t.CustomerName, &t.Phone, &t.Address, &t.TaskDescription,
		&bom, &t.Time, &t.Resource, &t.Status, &t.MaterialsOrdered, &priceS, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.UserID = nullInt(userID)
	t.BillOfMaterials = jsonOr(bom, "[]")
	t.Price = jsonOr(priceS, "{}")
	return &t, nil
}

// jsonOr возвращает значение как JSON или fallback, если текст не является JSON.
func jsonOr(raw, fallback string) json.RawMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(raw)
}

// ListTasks возвращает задачи по фильтру (статус, границы created_at или
// номер месяца без года), новые первыми.
func (s *Storage) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	const op = "storage.ListTasks"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.Month != 0 && f.From == nil {
		args = append(args, f.Month)
		where = append(where, fmt.Sprintf("EXTRACT(MONTH FROM created_at) = $%d", len(args)))
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	out := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetTask возвращает задачу по строковому идентификатору.
func (s *Storage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	const op = "storage.GetTask"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	t, err := scanTask(s.q(ctx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return t, nil
}

// CreateNotification сохраняет уведомление пользователя.
func (s *Storage) CreateNotification(ctx context.Context, userID int64, message string) (*models.Notification, error) {
	const op = "storage.CreateNotification"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var n models.Notification
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, message) VALUES ($1, $2)
		RETURNING id, user_id, message, read, created_at`, userID, message).
		Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &n, nil
}

// ListNotifications возвращает уведомления пользователя, новые первыми.
func (s *Storage) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	const op = "storage.ListNotifications"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, message, read, created_at FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// MarkNotificationRead отмечает уведомление пользователя прочитанным.
func (s *Storage) MarkNotificationRead(ctx context.Context, userID, id int64) (*models.Notification, error) {
	const op = "storage.MarkNotificationRead"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var n models.Notification
	err := s.q(ctx).QueryRowContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, message, read, created_at`, id, userID).
		Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &n, nil
}
