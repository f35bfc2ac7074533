package envconfig

import (
	"log/slog"
	"testing"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect string
	}{
		"empty":             {"", "http://127.0.0.1:11419"},
		"only address":      {"1.2.3.4", "http://1.2.3.4:11419"},
		"only port":         {":4321", "http://:4321"},
		"address and port":  {"1.2.3.4:4321", "http://1.2.3.4:4321"},
		"scheme only":       {"http://1.2.3.4", "http://1.2.3.4:80"},
		"https":             {"https://1.2.3.4", "https://1.2.3.4:443"},
		"https with port":   {"https://1.2.3.4:4321", "https://1.2.3.4:4321"},
		"hostname":          {"example.com", "http://example.com:11419"},
		"ipv6 localhost":    {"[::1]", "http://[::1]:11419"},
		"ipv6 with port":    {"[::1]:4321", "http://[::1]:4321"},
		"trailing slash":    {"1.2.3.4:4321/", "http://1.2.3.4:4321"},
		"extra whitespace":  {" 1.2.3.4:4321 ", "http://1.2.3.4:4321"},
		"port out of range": {"1.2.3.4:66666", "http://1.2.3.4:11419"},
		"quoted":            {"\"1.2.3.4:4321\"", "http://1.2.3.4:4321"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STABLEGEN_HOST", tc.value)
			if got := Host().String(); got != tc.expect {
				t.Errorf("Host() = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestModels(t *testing.T) {
	t.Setenv("STABLEGEN_MODELS", "/srv/models")
	if got := Models(); got != "/srv/models" {
		t.Errorf("Models() = %q, want /srv/models", got)
	}

	t.Setenv("STABLEGEN_MODELS", "")
	if got := Models(); got == "" {
		t.Error("Models() default is empty")
	}
}

func TestNumParallel(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect int
	}{
		"valid":    {"4", 4},
		"zero":     {"0", 0},
		"negative": {"-1", 0},
		"garbage":  {"lots", 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STABLEGEN_NUM_PARALLEL", tc.value)
			got := NumParallel()
			if tc.expect > 0 {
				if got != tc.expect {
					t.Errorf("NumParallel() = %d, want %d", got, tc.expect)
				}
			} else if got < 1 {
				t.Errorf("NumParallel() = %d, want a positive default", got)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect slog.Level
	}{
		"empty": {"", slog.LevelInfo},
		"false": {"false", slog.LevelInfo},
		"true":  {"true", slog.LevelDebug},
		"one":   {"1", slog.LevelDebug},
		"two":   {"2", slog.Level(-8)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STABLEGEN_DEBUG", tc.value)
			if got := LogLevel(); got != tc.expect {
				t.Errorf("LogLevel() = %v, want %v", got, tc.expect)
			}
		})
	}
}
