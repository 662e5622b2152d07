package supplychain

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Периоды отчёта по задачам.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

var (
	taskStatuses = []string{models.TaskPending, models.TaskAccepted, models.TaskDone}
	taskPeriods  = []string{PeriodToday, PeriodWeek, PeriodMonth}
)

// ReportQuery параметры запроса отчёта в том виде, в каком они пришли.
type ReportQuery struct {
	Status string
	Date   string
	Period string
	Year   string
	Month  string
}

// ListTasks возвращает все задачи, новые первыми.
func (s *SupplyChainService) ListTasks(ctx context.Context) ([]models.Task, error) {
	const op = "supplychain.ListTasks"
	out, err := s.repo.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetTask возвращает задачу по идентификатору.
func (s *SupplyChainService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	const op = "supplychain.GetTask"
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, notFound(op, err, "Task not found.")
	}
	return t, nil
}

// ByStatus строит отчёт по задачам. Приоритет фильтров по дате:
// конкретный день, затем период, затем год и месяц.
func (s *SupplyChainService) ByStatus(ctx context.Context, q ReportQuery) (*models.TaskReport, error) {
	const op = "supplychain.ByStatus"
	f, err := s.ParseFilter(q)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &models.TaskReport{
		Status:      "All",
		TotalOffers: len(tasks),
		TotalPrice:  TotalPrice(tasks),
		Tasks:       tasks,
	}
	if f.Status != "" {
		report.Status = f.Status
	}
	if q.Period != "" {
		period := q.Period
		report.Period = &period
	}
	return report, nil
}

// ParseFilter проверяет параметры отчёта и вычисляет границы по created_at.
// Месяц без года фильтрует по номеру месяца за все годы.
func (s *SupplyChainService) ParseFilter(q ReportQuery) (models.TaskFilter, error) {
	f := models.TaskFilter{Status: q.Status, Date: q.Date, Period: q.Period}
	if q.Status != "" && !slices.Contains(taskStatuses, q.Status) {
		return f, apperr.Validation("Invalid status", map[string]string{"status": "Use Pending, Accepted or Done."})
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case q.Date != "":
		day, err := time.ParseInLocation(time.DateOnly, q.Date, now.Location())
		if err != nil {
			return f, apperr.Validation("Invalid date format. Use YYYY-MM-DD", map[string]string{"date": "Use YYYY-MM-DD."})
		}
		setRange(&f, day, day.AddDate(0, 0, 1))
	case q.Period != "":
		if !slices.Contains(taskPeriods, q.Period) {
			return f, apperr.Validation("Invalid period. Use today, week, or month", map[string]string{"period": "Use today, week or month."})
		}
		switch q.Period {
		case PeriodToday:
			setRange(&f, today, today.AddDate(0, 0, 1))
		case PeriodWeek:
			// неделя с понедельника по воскресенье
			offset := (int(today.Weekday()) + 6) % 7
			start := today.AddDate(0, 0, -offset)
			setRange(&f, start, start.AddDate(0, 0, 7))
		case PeriodMonth:
			start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
			setRange(&f, start, start.AddDate(0, 1, 0))
		}
	case q.Year != "" || q.Month != "":
		var month int
		if q.Month != "" {
			m, err := strconv.Atoi(q.Month)
			if err != nil || m < 1 || m > 12 {
				return f, apperr.Validation("Invalid month.", map[string]string{"month": "Use a number from 1 to 12."})
			}
			month = m
		}
		f.Month = month
		if q.Year == "" {
			// месяц без года: этот месяц любого года, границы не задаются
			break
		}
		y, err := strconv.Atoi(q.Year)
		if err != nil || y < 1 {
			return f, apperr.Validation("Invalid year.", map[string]string{"year": "A valid integer is required."})
		}
		f.Year = y
		if month == 0 {
			start := time.Date(y, time.January, 1, 0, 0, 0, 0, today.Location())
			setRange(&f, start, start.AddDate(1, 0, 0))
			break
		}
		start := time.Date(y, time.Month(month), 1, 0, 0, 0, 0, today.Location())
		setRange(&f, start, start.AddDate(0, 1, 0))
	}
	return f, nil
}

func setRange(f *models.TaskFilter, from, to time.Time) {
	f.From = &from
	f.To = &to
}

// TotalPrice суммирует ключ Total в цене каждой задачи.
// Цены, которые не разбираются, пропускаются.
func TotalPrice(tasks []models.Task) float64 {
	var total float64
	for _, t := range tasks {
		var price map[string]json.RawMessage
		if err := json.Unmarshal(t.Price, &price); err != nil {
			continue
		}
		raw, ok := price["Total"]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		total += v
	}
	return total
}
