package config

type Config interface {
	EnvConfig
	HTTPConfig
}

type mainConfig struct {
	EnvVars
	HTTP
}

func New() Config {
	return mainConfig{}
}
