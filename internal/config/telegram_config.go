package config

import (
	"github.com/spf13/viper"
)

// TelegramConfig enables the admin bot and the telegram transport when Token
// is set.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

func (config TelegramConfig) Enabled() bool {
	return config.Token != ""
}

func (config TelegramConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return v.BindEnv("telegram.token", "TG_TOKEN")
}
