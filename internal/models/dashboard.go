package models

// DashboardStats агрегаты админ-панели.
type DashboardStats struct {
	TotalUsers      int64   `json:"total_users"`
	TotalVerified   int64   `json:"total_verified"`
	TotalUnverified int64   `json:"total_unverified"`
	TotalEarnings   float64 `json:"total_earnings"`
}

// DashboardOverview агрегаты и страница пользователей.
type DashboardOverview struct {
	DashboardStats
	Users []UserWithSubscriptions `json:"users"`
}

// Page параметры пагинации.
type Page struct {
	Number int
	Size   int
}

// Offset смещение первой записи страницы.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageInfo метаданные страницы для поля extra ответа.
type PageInfo struct {
	Count    int64 `json:"count"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Next     *int  `json:"next"`
	Previous *int  `json:"previous"`
}

// NewPageInfo собирает метаданные страницы по общему числу записей.
func NewPageInfo(p Page, count int64) PageInfo {
	info := PageInfo{Count: count, Page: p.Number, PageSize: p.Size}
	if int64(p.Number*p.Size) < count {
		next := p.Number + 1
		info.Next = &next
	}
	if p.Number > 1 {
		prev := p.Number - 1
		info.Previous = &prev
	}
	return info
}
