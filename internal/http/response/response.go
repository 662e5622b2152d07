// Package response формирует единый JSON-конверт ответов API
// и переводит прикладные ошибки в HTTP-статусы.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
)

// Response конверт любого ответа API.
type Response struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data"`
	Errors     any    `json:"errors"`
	Extra      any    `json:"extra,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Success    bool              `json:"success" example:"false"`
	Message    string            `json:"message" example:"Validation failed."`
	StatusCode int               `json:"status_code" example:"400"`
	Data       any               `json:"data"`
	Errors     map[string]string `json:"errors"`
}

const genericMessage = "Something went wrong. Please try again later."

// OK отправляет успешный ответ.
func OK(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	write(w, r, Response{Success: true, Message: message, StatusCode: status, Data: data})
}

// OKWithExtra отправляет успешный ответ с дополнительным блоком, например пагинацией.
func OKWithExtra(w http.ResponseWriter, r *http.Request, status int, message string, data, extra any) {
	write(w, r, Response{Success: true, Message: message, StatusCode: status, Data: data, Extra: extra})
}

// Fail отправляет ответ с ошибкой.
func Fail(w http.ResponseWriter, r *http.Request, status int, message string, errs any) {
	write(w, r, Response{Success: false, Message: message, StatusCode: status, Errors: errs})
}

func write(w http.ResponseWriter, r *http.Request, resp Response) {
	render.Status(r, resp.StatusCode)
	render.JSON(w, r, resp)
}

// StatusOf возвращает HTTP-статус для вида ошибки.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidSignature:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUpstream, apperr.KindInvalidUpstreamResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromError переводит ошибку в статус, безопасное сообщение и ошибки по полям.
// Подробности внешних и непредвиденных ошибок клиенту не отдаются.
func FromError(err error) (int, string, map[string]string) {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, genericMessage, nil
	}
	status := StatusOf(e.Kind)
	msg := e.Message
	if e.Kind == apperr.KindInternal || msg == "" {
		msg = genericMessage
	}
	return status, msg, e.Fields
}

// Error логирует ошибку и отправляет соответствующий ответ.
// Серверные ошибки пишутся на уровне Error, клиентские на уровне Info.
func Error(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, msg, fields := FromError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), sl.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), sl.Err(err))
	}
	var errs any
	if len(fields) > 0 {
		errs = fields
	}
	Fail(w, r, status, msg, errs)
}

// Decode читает JSON-тело запроса в dst и проверяет его тегами validate.
// Ошибки возвращаются как apperr.KindValidation.
func Decode(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is empty.", nil)
		}
		return apperr.Wrap(apperr.KindValidation, "Invalid request body.", err)
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperr.Validation("Validation failed.", ValidationError(verrs))
		}
		return apperr.Wrap(apperr.KindValidation, "Validation failed.", err)
	}
	return nil
}

// ValidationError переводит ошибки валидатора в сообщения по полям JSON.
func ValidationError(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, err := range errs {
		name := err.Field()
		switch err.ActualTag() {
		case "required":
			fields[name] = "This field is required."
		case "email":
			fields[name] = "Enter a valid email address."
		case "url":
			fields[name] = "Enter a valid URL."
		case "min":
			fields[name] = fmt.Sprintf("Ensure this field has at least %s characters.", err.Param())
		case "max":
			fields[name] = fmt.Sprintf("Ensure this field has no more than %s characters.", err.Param())
		case "oneof":
			fields[name] = fmt.Sprintf("Must be one of: %s.", err.Param())
		case "datetime":
			fields[name] = fmt.Sprintf("Use format %s.", err.Param())
		case "gt", "gte":
			fields[name] = fmt.Sprintf("Ensure this value is greater than %s.", err.Param())
		default:
			fields[name] = "This value is not valid."
		}
	}
	return fields
}

// NewValidator создаёт валидатор, который называет поля по JSON-тегам.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
