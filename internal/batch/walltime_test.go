package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWalltime(t *testing.T) {
	tests := map[string]struct {
		in   string
		want time.Duration
	}{
		"hms":        {"01:30:00", time.Hour + 30*time.Minute},
		"ms":         {"45:30", 45*time.Minute + 30*time.Second},
		"bare min":   {"90", 90 * time.Minute},
		"days":       {"2-04:00:00", 2*24*time.Hour + 4*time.Hour},
		"whitespace": {"  01:00:00 ", time.Hour},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseWalltime(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseWalltimeInvalid(t *testing.T) {
	_, err := ParseWalltime("")
	require.Error(t, err)

	_, err = ParseWalltime("1:2:3:4")
	require.Error(t, err)

	_, err = ParseWalltime("abc")
	require.Error(t, err)
}
