package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"10.00", 1000},
		{"299.99", 29999},
		{"0.005", 1},
		{"0.004", 0},
		{"1.015", 102},
		{"-0.005", 0},
		{"-1.006", -101},
	}

	for _, tt := range tests {
		got := ToMinor(decimal.RequireFromString(tt.in))
		assert.Equal(t, tt.want, got, "ToMinor(%s)", tt.in)
	}
}

func TestFromMinor(t *testing.T) {
	assert.True(t, FromMinor(3000).Equal(decimal.RequireFromString("30.00")))
	assert.True(t, FromMinor(1).Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, int64(29999), ToMinor(FromMinor(29999)))
}
