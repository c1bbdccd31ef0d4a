// Package config loads and validates the service configuration from YAML
// files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Init prepares viper: .env, environment binding, config file lookup, and
// defaults. Must run before Load. An explicit cfgFile overrides the search
// path; a missing default config file is not an error.
func Init(cfgFile string) error {
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DOCSPASTA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()

	if err := bindEnvVars(); err != nil {
		return fmt.Errorf("bind environment variables: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("read config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("server", map[string]any{
		"address":       ":8080",
		"read_timeout":  "30s",
		"write_timeout": "30s",
		"idle_timeout":  "60s",
	})

	viper.SetDefault("redis", map[string]any{
		"address":    "localhost:6379",
		"password":   "",
		"db":         0,
		"op_timeout": "5s",
	})

	viper.SetDefault("crawl", map[string]any{
		"max_pages_cap":    500,
		"max_depth_cap":    10,
		"max_workers_cap":  20,
		"invocation_limit": "30s",
	})

	viper.SetDefault("logger", map[string]any{
		"level":        "info",
		"development":  false,
		"encoding":     "json",
		"output_paths": []string{"stdout"},
	})
}

// bindEnvVars binds the well-known environment variables explicitly so they
// work without a config file present.
func bindEnvVars() error {
	bindings := map[string]string{
		"server.address":  "DOCSPASTA_SERVER_ADDRESS",
		"redis.address":   "DOCSPASTA_REDIS_ADDRESS",
		"redis.password":  "DOCSPASTA_REDIS_PASSWORD",
		"redis.db":        "DOCSPASTA_REDIS_DB",
		"logger.level":    "DOCSPASTA_LOG_LEVEL",
		"logger.encoding": "DOCSPASTA_LOG_ENCODING",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	return nil
}
