package amount

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		label  string
		want   float64
		wantOK bool
	}{
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"520 €", 520, true},
		{"520", 520, true},
		{"€ 25,50", 25.5, true},
		{"1.000.000,00 EUR", 1000000, true},
		{"25,", 25, true},
		{"-12,5", -12.5, true},
		{"€", 0, false},
		{"", 0, false},
		{"   € \t", 0, false},
		{"N/A", 0, false},
		{"1,234,56", 0, false},
		{"1.2.3", 0, false},
		{"-", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := Normalize(tt.label)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNormalize_IntegerLabels(t *testing.T) {
	for _, label := range []string{"0", "7", "42", "520", "1000", "0012", "9876543210"} {
		want, err := strconv.ParseFloat(label, 64)
		require.NoError(t, err)

		got, ok := Normalize(label)
		require.True(t, ok, label)
		assert.Equal(t, want, got, label)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, label := range []string{"1.234,56", "1,234.56", "520 €", "25,", "0,99", "-3.5", "12"} {
		first, ok := Normalize(label)
		require.True(t, ok, label)

		second, ok := Normalize(strconv.FormatFloat(first, 'f', -1, 64))
		require.True(t, ok, label)
		assert.Equal(t, first, second, label)
	}
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Ptr("€"))

	p := Ptr("10")
	require.NotNil(t, p)
	assert.Equal(t, 10.0, *p)
}
