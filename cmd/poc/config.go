package main

import (
	"github.com/spf13/viper"
)

// Config is read from the optional config file, and overridden by the
// environment.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// LogJSON switches logging to the JSON formatter.
	LogJSON bool `mapstructure:"log_json"`

	// DumpAccounts prints every account in the ledger after each scenario.
	DumpAccounts bool `mapstructure:"dump_accounts"`
}

var defaultConfig = Config{
	LogLevel: "info",
}

func init() {
	_ = viper.BindEnv("log_level", "LOG_LEVEL")
	_ = viper.BindEnv("log_json", "LOG_JSON")
	_ = viper.BindEnv("dump_accounts", "DUMP_ACCOUNTS")
}
