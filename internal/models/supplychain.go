package models

import (
	"encoding/json"
	"time"
)

// Supplier поставщик материалов, принадлежит руководителю (SupervisorID).
type Supplier struct {
	ID                int64     `json:"id"`
	SupervisorID      int64     `json:"supervisor_id"`
	SupplierName      string    `json:"supplier_name"`
	SupplierEmail     string    `json:"supplier_email"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
	MaterialsSupplied string    `json:"materials_supplied,omitempty"`
	Role              string    `json:"role,omitempty"`
	AddToCalender     bool      `json:"add_to_calender"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SupplierInput тело запроса создания и обновления поставщика.
// При PATCH заданы только изменяемые поля.
type SupplierInput struct {
	SupplierName      *string `json:"supplier_name" validate:"omitempty,min=1,max=255"`
	SupplierEmail     *string `json:"supplier_email" validate:"omitempty,email"`
	PhoneNumber       *string `json:"phone_number" validate:"omitempty,max=20"`
	ProfilePictureURL *string `json:"profile_picture_url" validate:"omitempty,url"`
	MaterialsSupplied *string `json:"materials_supplied"`
	Role              *string `json:"role" validate:"omitempty,max=100"`
	AddToCalender     *bool   `json:"add_to_calender"`
}

// Дни недели, допустимые в расписании ресурса.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Resource исполнитель (сотрудник, бригада) с недельным расписанием.
type Resource struct {
	ID                int64     `json:"id"`
	SupervisorID      int64     `json:"supervisor_id"`
	Name              string    `json:"name"`
	Role              string    `json:"role,omitempty"`
	Email             string    `json:"email,omitempty"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
	AddToCalender     bool      `json:"add_to_calender"`
	Days              []string  `json:"days"`
	StartTime         *string   `json:"start_time"`
	EndTime           *string   `json:"end_time"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ResourceInput тело запроса создания и обновления ресурса.
type ResourceInput struct {
	Name              *string   `json:"name" validate:"omitempty,min=1,max=255"`
	Role              *string   `json:"role" validate:"omitempty,max=100"`
	Email             *string   `json:"email" validate:"omitempty,email"`
	PhoneNumber       *string   `json:"phone_number" validate:"omitempty,max=20"`
	ProfilePictureURL *string   `json:"profile_picture_url" validate:"omitempty,url"`
	AddToCalender     *bool     `json:"add_to_calender"`
	Days              *[]string `json:"days" validate:"omitempty,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	StartTime         *string   `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime           *string   `json:"end_time" validate:"omitempty,datetime=15:04"`
}

// Статусы задач.
const (
	TaskPending  = "Pending"
	TaskAccepted = "Accepted"
	TaskDone     = "Done"
)

// Task задача из внешней системы. Таблица заполняется снаружи,
// сервис её только читает.
type Task struct {
	ID               string          `json:"id"`
	UserID           *int64          `json:"user_id"`
	CustomerName     string          `json:"customer_name"`
	Phone            string          `json:"phone"`
	Address          string          `json:"address"`
	TaskDescription  string          `json:"task_description"`
	BillOfMaterials  json.RawMessage `json:"bill_of_materials"`
	Time             string          `json:"time"`
	Resource         string          `json:"resource"`
	Status           string          `json:"status"`
	MaterialsOrdered bool            `json:"materials_ordered"`
	Price            json.RawMessage `json:"price"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TaskFilter фильтр отчёта по задачам. Приоритет дат: Date, затем Period,
// затем Year/Month. Границы From/To вычисляет сервис.
type TaskFilter struct {
	Status string
	Date   string
	Period string
	Year   int
	Month  int

	From *time.Time
	To   *time.Time
}

// TaskReport отчёт по задачам с суммой цен.
type TaskReport struct {
	Status      string  `json:"status"`
	Period      *string `json:"period"`
	TotalOffers int     `json:"total_offers"`
	TotalPrice  float64 `json:"total_price"`
	Tasks       []Task  `json:"tasks"`
}

// Notification уведомление руководителя о событиях цепочки поставок.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
