// Package config wires the process-wide Viper instance: defaults, config file
// search paths and environment overrides.
package config

import (
	"errors"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	internalconfig "github.com/JakeFAU/vacancy-crawler/internal/config"
	"github.com/JakeFAU/vacancy-crawler/internal/logging"
)

// InitConfig prepares the global Viper instance. When cfgFile is empty the
// file "config.{yaml,json,toml}" is searched for in the working directory,
// /etc/vacancy-crawler/ and $HOME/.vacancy-crawler. A missing file is not an
// error; defaults and VACANCY_* environment variables still apply.
func InitConfig(cfgFile string) error {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vacancy-crawler/")
		v.AddConfigPath("$HOME/.vacancy-crawler")
	}

	internalconfig.Configure(v) // e.g. VACANCY_CRAWLER_CONCURRENCY=4

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logging.L.Warn("Config file not found; using defaults and environment variables.")
			return nil
		}
		logging.L.Error("Error reading config file", zap.Error(err))
		return err
	}
	logging.L.Info("Using config file", zap.String("path", v.ConfigFileUsed()))
	return nil
}
