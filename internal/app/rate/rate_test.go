package rate

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWPM(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "minimum", raw: "1", want: 1},
		{name: "maximum", raw: "1200", want: 1200},
		{name: "typical", raw: "300", want: 300},
		{name: "leading zeros", raw: "0060", want: 60},
		{name: "zero", raw: "0", wantErr: true},
		{name: "above maximum", raw: "1201", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "negative", raw: "-5", wantErr: true},
		{name: "plus sign", raw: "+5", wantErr: true},
		{name: "decimal", raw: "12.5", wantErr: true},
		{name: "letters", raw: "fast", wantErr: true},
		{name: "mixed", raw: "12a", wantErr: true},
		{name: "surrounding spaces", raw: " 300 ", wantErr: true},
		{name: "overflow", raw: "99999999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateWPM(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRateInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDelayFromWPM_WholeRange(t *testing.T) {
	for wpm := MinWPM; wpm <= MaxWPM; wpm++ {
		delay, err := DelayFromWPM(wpm)
		require.NoError(t, err)
		assert.Greater(t, delay, time.Duration(0))
		assert.Equal(t, time.Minute/time.Duration(wpm), delay)
	}
}

func TestDelayFromWPM(t *testing.T) {
	tests := []struct {
		name    string
		wpm     int
		want    time.Duration
		wantErr bool
	}{
		{name: "60 wpm", wpm: 60, want: time.Second},
		{name: "300 wpm", wpm: 300, want: 200 * time.Millisecond},
		{name: "1200 wpm", wpm: 1200, want: 50 * time.Millisecond},
		{name: "zero", wpm: 0, wantErr: true},
		{name: "negative", wpm: -10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DelayFromWPM(tt.wpm)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRateValue))
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("120")
	require.NoError(t, err)
	assert.Equal(t, 120, r.WPM())
	assert.Equal(t, 500*time.Millisecond, r.Delay())
	assert.Equal(t, "120 wpm", r.String())

	_, err = Parse("abc")
	assert.True(t, errors.Is(err, ErrInvalidRateInput))
}

func TestFromWPM(t *testing.T) {
	_, err := FromWPM(0)
	assert.True(t, errors.Is(err, ErrInvalidRateValue))

	_, err = FromWPM(MaxWPM + 1)
	assert.True(t, errors.Is(err, ErrInvalidRateInput))

	r, err := FromWPM(MaxWPM)
	require.NoError(t, err)
	assert.Equal(t, MaxWPM, r.WPM())
}

func TestDefault(t *testing.T) {
	r := Default()
	assert.Equal(t, DefaultWPM, r.WPM())
	assert.Equal(t, 200*time.Millisecond, r.Delay())
}
