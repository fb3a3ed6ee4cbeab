package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "rfc3339 with offset",
			input: "2026-03-01T12:00:00+05:00",
			want:  time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC),
		},
		{
			name:  "rfc3339 utc",
			input: "2026-03-01T12:00:00Z",
			want:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "nanoseconds",
			input: "2026-03-01T12:00:00.5Z",
			want:  time.Date(2026, 3, 1, 12, 0, 0, 500000000, time.UTC),
		},
		{
			name:  "no zone treated as utc",
			input: "2026-03-01T12:00:00",
			want:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			input:   "yesterday",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestWithinSkew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	skew := 5 * time.Minute

	assert.True(t, WithinSkew(now.Add(-time.Hour), now, skew), "past is always fine")
	assert.True(t, WithinSkew(now, now, skew))
	assert.True(t, WithinSkew(now.Add(5*time.Minute), now, skew), "boundary is inclusive")
	assert.False(t, WithinSkew(now.Add(5*time.Minute+time.Second), now, skew))
}

func TestFixedClock(t *testing.T) {
	instant := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := FixedClock{T: instant}
	assert.Equal(t, instant, c.Now())
	assert.Equal(t, instant, c.Now(), "stays fixed across calls")
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 7, 0, 0, 0, time.FixedZone("X", 5*3600))
	assert.Equal(t, "2026-03-01T02:00:00Z", FormatTimestamp(ts))
}
