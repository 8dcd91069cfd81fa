package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeadline(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "date only is end of day", input: "2025-10-20", want: time.Date(2025, 10, 20, 23, 59, 0, 0, taipei)},
		{name: "minutes", input: "2025-10-20 15:00", want: time.Date(2025, 10, 20, 15, 0, 0, 0, taipei)},
		{name: "seconds", input: "2025-10-20 15:00:30", want: time.Date(2025, 10, 20, 15, 0, 30, 0, taipei)},
		{name: "rfc3339 keeps zone", input: "2025-10-20T07:00:00Z", want: time.Date(2025, 10, 20, 15, 0, 0, 0, taipei)},
		{name: "surrounding space", input: "  2025-10-21 00:00 ", want: time.Date(2025, 10, 21, 0, 0, 0, 0, taipei)},
		{name: "garbage", input: "not a date", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeadline(tt.input, taipei)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestConfigDeadline(t *testing.T) {
	c := validConfig()
	d, err := c.Deadline()
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	c.Watch.Until = "2025-10-20 12:00"
	d, err = c.Deadline()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Taipei", d.Location().String())
	assert.Equal(t, 4, d.UTC().Hour())
}
