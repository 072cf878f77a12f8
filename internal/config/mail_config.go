package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type MailConfig struct {
	Host              string  `mapstructure:"host"`
	Port              int     `mapstructure:"port"`
	Username          string  `mapstructure:"username"`
	Password          string  `mapstructure:"password"`
	MaxSendsPerSecond float32 `mapstructure:"max_sends_per_second"`
	Retries           int     `mapstructure:"retries"`
}

func (config MailConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.max_sends_per_second", 5)
	v.SetDefault("mail.retries", 2)
}

func (config MailConfig) validate() error {
	var errs []error

	if config.Host == "" {
		errs = append(errs, fmt.Errorf("missing variable: host"))
	}
	if config.Port <= 0 {
		errs = append(errs, fmt.Errorf("port must be positive"))
	}
	if config.MaxSendsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("max_sends_per_second must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}
	return nil
}

func (config MailConfig) bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error
	if err := v.BindEnv("mail.host", "SMTP_HOST"); err != nil {
		errs = append(errs, err)
	}
	if err := v.BindEnv("mail.username", "SMTP_USERNAME"); err != nil {
		errs = append(errs, err)
	}
	if err := v.BindEnv("mail.password", "SMTP_PASSWORD"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
