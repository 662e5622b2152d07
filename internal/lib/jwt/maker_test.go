package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

func newTestMaker(secret string) *MakerImpl {
	return NewJWTMaker(secret, Options{
		Issuer:     "marketplace-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   10 * time.Minute,
	})
}

func TestJWTMaker_GeneratePair(t *testing.T) {
	maker := newTestMaker("test_secret_key_1234567890")

	tests := []struct {
		name     string
		user     *models.User
		wantRole string
	}{
		{name: "staff user", user: &models.User{ID: 1, Email: "admin@example.com", IsStaff: true}, wantRole: models.RoleAdmin},
		{name: "regular user", user: &models.User{ID: 42, Email: "user@example.com"}, wantRole: models.RoleUser},
		{name: "user without email", user: &models.User{ID: 7}, wantRole: models.RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := maker.GeneratePair(tt.user)
			require.NoError(t, err)
			assert.NotEmpty(t, pair.Access)
			assert.NotEmpty(t, pair.Refresh)

			claims, err := maker.ParseToken(pair.Access, TokenTypeAccess)
			require.NoError(t, err)
			assert.Equal(t, tt.user.ID, claims.UserID)
			assert.Equal(t, tt.user.Email, claims.Email)
			assert.Equal(t, tt.wantRole, claims.Role)
			assert.Equal(t, "marketplace-test", claims.Issuer)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)

			refresh, err := maker.ParseToken(pair.Refresh, TokenTypeRefresh)
			require.NoError(t, err)
			assert.NotEmpty(t, refresh.ID)
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), refresh.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_TokenTypeIsEnforced(t *testing.T) {
	maker := newTestMaker("test_secret_key")
	user := &models.User{ID: 5, Email: "a@b.c"}

	pair, err := maker.GeneratePair(user)
	require.NoError(t, err)
	reset, jti, err := maker.GenerateResetToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	_, err = maker.ParseToken(pair.Refresh, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrWrongTokenType))

	_, err = maker.ParseToken(pair.Access, TokenTypeReset)
	assert.True(t, errors.Is(err, ErrWrongTokenType))

	claims, err := maker.ParseToken(reset, TokenTypeReset)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.ID)
	assert.Equal(t, 10*time.Minute, maker.ResetTTL())
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := newTestMaker(secretKey)
	user := &models.User{ID: 1}

	valid, err := maker.GeneratePair(user)
	require.NoError(t, err)

	expiredMaker := NewJWTMaker(secretKey, Options{AccessTTL: -time.Hour})
	expired, err := expiredMaker.GeneratePair(user)
	require.NoError(t, err)

	wrong, err := newTestMaker("wrong_secret_key").GeneratePair(user)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired.Access},
		{name: "wrong secret key", token: wrong.Access},
		{name: "tampered token", token: valid.Access + "tampered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token, TokenTypeAccess)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTMaker_ResetTokensAreUnique(t *testing.T) {
	maker := newTestMaker("secret")
	user := &models.User{ID: 3}

	_, jti1, err := maker.GenerateResetToken(user)
	require.NoError(t, err)
	_, jti2, err := maker.GenerateResetToken(user)
	require.NoError(t, err)

	assert.NotEqual(t, jti1, jti2)
}
