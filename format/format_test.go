package format

import (
	"testing"
	"time"
)

func TestHumanDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{420 * time.Millisecond, "420ms"},
		{4100 * time.Millisecond, "4.1s"},
		{59 * time.Second, "59.0s"},
		{72 * time.Second, "1m12s"},
		{3600 * time.Second, "1h0m0s"},
	}
	for _, tc := range cases {
		if got := HumanDuration(tc.in); got != tc.want {
			t.Errorf("HumanDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
