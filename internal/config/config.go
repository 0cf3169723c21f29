package config

import (
	"errors"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

// Config is the contract every env-backed config struct implements.
type Config interface {
	Load() error
	Validate() error
}

// LoadAll loads every config in order and stops at the first failure.
func LoadAll(cfgs ...Config) error {
	for _, cfg := range cfgs {
		if err := cfg.Load(); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type GeneralConfig struct {
	HTTPPort string
	HTTPHost string
	Env      string
	LogLevel string

	// AdminToken gates the snapshot refresh endpoints. Empty disables the
	// check (local development).
	AdminToken string
}

func (gc *GeneralConfig) Load() error {
	gc.HTTPPort = getEnvOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = getEnvOrDefault("HTTP_HOST", "localhost")
	gc.Env = getEnvOrDefault("ENV", "dev")
	gc.LogLevel = getEnvOrDefault("LOG_LEVEL", "INFO")
	gc.AdminToken = getEnvOrDefault("ADMIN_TOKEN", "")
	return nil
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	return nil
}
