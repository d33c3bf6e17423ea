package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDollars(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"5", 500, false},
		{"5.00", 500, false},
		{"$5.00", 500, false},
		{" $1,250.5 ", 125050, false},
		{"0.01", 1, false},
		{"0.005", 0, true},
		{"five", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDollars(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("500")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)

	got, err = ParseAmount("$5.00")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$15.50", FormatCents(1550))
	assert.Equal(t, "$0.05", FormatCents(5))
	assert.Equal(t, "-$10.00", FormatCents(-1000))
}

func TestConvert(t *testing.T) {
	rate, err := ParseRate("0.998")
	require.NoError(t, err)
	assert.Equal(t, int64(998), Convert(1000, rate))
	assert.Equal(t, int64(1), Convert(2, rate))

	_, err = ParseRate("0")
	assert.Error(t, err)
	_, err = ParseRate("-1")
	assert.Error(t, err)
}
