// Package envconfig resolves the STABLEGEN_* environment variables the
// CLI and server consume. Values are read on every call so tests can
// toggle them with t.Setenv.
package envconfig

import (
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Host returns the scheme and host the server listens on and the client
// connects to. Configurable via STABLEGEN_HOST.
// Default: http://127.0.0.1:11419
func Host() *url.URL {
	defaultPort := "11419"

	s := strings.TrimSpace(Var("STABLEGEN_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// Models returns the directory model weights are resolved from.
// Configurable via STABLEGEN_MODELS.
// Default: $HOME/.stablegen/models
func Models() string {
	if s := Var("STABLEGEN_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".stablegen", "models")
}

// NumParallel returns the maximum number of generation runs executed
// concurrently. Configurable via STABLEGEN_NUM_PARALLEL.
// Default: the CPU count.
func NumParallel() int {
	if s := Var("STABLEGEN_NUM_PARALLEL"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// LogLevel returns the slog level. Configurable via STABLEGEN_DEBUG:
// 0/false = INFO (default), 1/true = DEBUG, 2 = TRACE.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("STABLEGEN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var returns an environment variable, trimmed of whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
