package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_AmountMinorUnits(t *testing.T) {
	tests := []struct {
		price float64
		want  int64
	}{
		{price: 9.99, want: 999},
		{price: 29.00, want: 2900},
		{price: 0.1 + 0.2, want: 30},
	}

	for _, tt := range tests {
		p := Plan{Price: tt.price}
		assert.Equal(t, tt.want, p.AmountMinorUnits())
	}
}

func TestProviderStatus(t *testing.T) {
	assert.True(t, ProviderStatusIsActive("active"))
	assert.True(t, ProviderStatusIsActive("trialing"))
	assert.False(t, ProviderStatusIsActive("past_due"))
	assert.False(t, ProviderStatusIsActive("canceled"))

	assert.True(t, ProviderStatusEnds("canceled"))
	assert.True(t, ProviderStatusEnds("unpaid"))
	assert.False(t, ProviderStatusEnds("past_due"))
}

func TestNewPageInfo(t *testing.T) {
	first := NewPageInfo(Page{Number: 1, Size: 10}, 25)
	require.NotNil(t, first.Next)
	assert.Equal(t, 2, *first.Next)
	assert.Nil(t, first.Previous)

	last := NewPageInfo(Page{Number: 3, Size: 10}, 25)
	assert.Nil(t, last.Next)
	require.NotNil(t, last.Previous)
	assert.Equal(t, 2, *last.Previous)

	assert.Equal(t, 20, Page{Number: 3, Size: 10}.Offset())
}

func TestUser_Role(t *testing.T) {
	assert.Equal(t, RoleAdmin, (&User{IsStaff: true}).Role())
	assert.Equal(t, RoleUser, (&User{}).Role())
	assert.False(t, (&User{}).HasUsablePassword())
}
