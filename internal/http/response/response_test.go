package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	return got
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantFields bool
	}{
		{name: "validation", err: apperr.Validation("Validation failed.", map[string]string{"email": "required"}), wantStatus: 400, wantMsg: "Validation failed.", wantFields: true},
		{name: "unauthorized", err: apperr.New(apperr.KindUnauthorized, "Invalid credentials."), wantStatus: 401, wantMsg: "Invalid credentials."},
		{name: "forbidden", err: apperr.New(apperr.KindForbidden, "Admins only."), wantStatus: 403, wantMsg: "Admins only."},
		{name: "not found wrapped", err: fmt.Errorf("svc: %w", apperr.New(apperr.KindNotFound, "No content found.")), wantStatus: 404, wantMsg: "No content found."},
		{name: "conflict", err: apperr.New(apperr.KindConflict, "Email already registered."), wantStatus: 409, wantMsg: "Email already registered."},
		{name: "upstream", err: apperr.Wrap(apperr.KindUpstream, "Payment provider error.", errors.New("stripe: 500")), wantStatus: 502, wantMsg: "Payment provider error."},
		{name: "invalid signature", err: apperr.New(apperr.KindInvalidSignature, "Invalid signature"), wantStatus: 400, wantMsg: "Invalid signature"},
		{name: "plain error hides details", err: errors.New("pq: relation users does not exist"), wantStatus: 500, wantMsg: genericMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg, fields := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
			assert.Equal(t, tt.wantFields, len(fields) > 0)
		})
	}
}

func TestError_Envelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, logger.NewDiscard(), apperr.Validation("Validation failed.", map[string]string{"password": "Password mismatch."}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "Validation failed.", got["message"])
	assert.Equal(t, float64(400), got["status_code"])
	assert.Nil(t, got["data"])
	assert.Equal(t, map[string]any{"password": "Password mismatch."}, got["errors"])
	_, hasExtra := got["extra"]
	assert.False(t, hasExtra)
}

func TestOKWithExtra(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	OKWithExtra(rec, req, http.StatusOK, "Plans fetched.", []int{1, 2}, map[string]int{"count": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, true, got["success"])
	assert.Equal(t, []any{float64(1), float64(2)}, got["data"])
	assert.Nil(t, got["errors"])
	assert.Equal(t, map[string]any{"count": float64(2)}, got["extra"])
}

type decodeTarget struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,max=5"`
	Ignored  string `json:"-"`
}

func TestDecode(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantFields map[string]string
	}{
		{name: "valid", body: `{"email":"a@example.com","full_name":"Ann"}`},
		{name: "empty body", body: ``, wantErr: true},
		{name: "broken json", body: `{"email":`, wantErr: true},
		{
			name:    "field errors use json names",
			body:    `{"email":"nope","full_name":"Very long name"}`,
			wantErr: true,
			wantFields: map[string]string{
				"email":     "Enter a valid email address.",
				"full_name": "Ensure this field has no more than 5 characters.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst decodeTarget
			err := Decode(req, v, &dst)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "Ann", dst.FullName)
				return
			}
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, e.Fields)
			}
		})
	}
}
