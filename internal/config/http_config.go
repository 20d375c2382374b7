package config

import (
	"time"
)

type HTTPConfig interface {
	GetHTTPTimeout() time.Duration
	GetRefreshTimeout() time.Duration
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

// GetHTTPTimeout bounds every ordinary request so a hung network surfaces
// as a transport failure rather than a stuck caller.
func (HTTP) GetHTTPTimeout() time.Duration {
	if v := GetEnv("HTTP_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 30 * time.Second
}

// GetRefreshTimeout bounds the token refresh call. Kept tighter than the
// general timeout since every 401-blocked caller waits on it.
func (HTTP) GetRefreshTimeout() time.Duration {
	if v := GetEnv("REFRESH_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 15 * time.Second
}
