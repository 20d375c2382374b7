package config

import "os"

const (
	baseURLVar = "API_BASE_URL"
	appNameVar = "APP_NAME"
)

type EnvConfig interface {
	GetBaseURL() string
	GetAppName() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetBaseURL returns the origin of the invoicing backend, e.g.
// "https://api.example.com". All request paths are resolved against it.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Invoicing Client")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
