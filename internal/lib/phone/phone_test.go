package phone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		region  string
		want    string
		wantErr bool
	}{
		{name: "international format", raw: "+1 650-253-0000", region: "DK", want: "+16502530000"},
		{name: "national US number", raw: "(650) 253-0000", region: "us", want: "+16502530000"},
		{name: "danish number", raw: "+45 32 12 34 56", region: "DK", want: "+4532123456"},
		{name: "garbage", raw: "not a phone", region: "DK", wantErr: true},
		{name: "empty", raw: "  ", region: "DK", wantErr: true},
		{name: "too short", raw: "+1 12", region: "US", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.region)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsE164(t *testing.T) {
	assert.True(t, IsE164("+4532123456"))
	assert.False(t, IsE164("user@example.com"))
	assert.False(t, IsE164("4532123456"))
	assert.False(t, IsE164("+45 32"))
}
