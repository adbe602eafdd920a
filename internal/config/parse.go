package config

import (
	"strconv"
	"strings"
	"time"
)

// MaxBodyBytes parses Server.MaxBodySize ("10MB", "512KB", "1048576")
// into bytes, falling back to 10MB when unset or malformed.
func (c *Config) MaxBodyBytes() int64 {
	const fallback = 10 * 1024 * 1024
	return parseSize(c.Server.MaxBodySize, fallback)
}

// ShutdownTimeout parses Server.ShutdownTimeout, defaulting to 30s.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 30*time.Second)
}

// JWTExpiry parses Auth.JWTExpiry, defaulting to 24h.
func (c *Config) JWTExpiry() time.Duration {
	return parseDuration(c.Auth.JWTExpiry, 24*time.Hour)
}

// ForwardTimeout parses Forward.Timeout, defaulting to 120s.
func (c *Config) ForwardTimeout() time.Duration {
	return parseDuration(c.Forward.Timeout, 120*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseSize(s string, fallback int64) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return fallback
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		mult, s = 1<<30, strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		mult, s = 1<<20, strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		mult, s = 1<<10, strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n * mult
}
