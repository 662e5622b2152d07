package response

import (
	"net/http"
	"strconv"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Параметры пагинации по умолчанию.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ParsePage читает page и page_size из строки запроса.
// page_size больше MaxPageSize обрезается.
func ParsePage(r *http.Request) (models.Page, error) {
	p := models.Page{Number: 1, Size: DefaultPageSize}
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, apperr.Validation("Invalid page.", map[string]string{"page": "A valid positive integer is required."})
		}
		p.Number = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, apperr.Validation("Invalid page size.", map[string]string{"page_size": "A valid positive integer is required."})
		}
		p.Size = min(n, MaxPageSize)
	}
	return p, nil
}
