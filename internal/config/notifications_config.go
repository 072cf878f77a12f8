package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Option keys consulted by the dispatcher at send time. The config file only
// seeds them, runtime changes live in the options table.
const (
	OptionNotificationsEnabled = "notifications_enabled"
	OptionFromEmail            = "from_email"
	OptionFromName             = "from_name"
	OptionAdminRecipient       = "admin_recipient"
	OptionSiteName             = "site_name"
)

type NotificationsConfig struct {
	Enabled         bool            `mapstructure:"enabled"`
	FromEmail       string          `mapstructure:"from_email"`
	FromName        string          `mapstructure:"from_name"`
	AdminRecipient  string          `mapstructure:"admin_recipient"`
	SiteName        string          `mapstructure:"site_name"`
	Categories      map[string]bool `mapstructure:"categories"`
	Workers         int             `mapstructure:"workers"`
	QueueSize       int             `mapstructure:"queue_size"`
	SendTimeout     time.Duration   `mapstructure:"send_timeout"`
	OptionsCacheTTL time.Duration   `mapstructure:"options_cache_ttl"`
}

func (config NotificationsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.send_timeout", "10s")
	v.SetDefault("notifications.options_cache_ttl", "1m")
}

func (config NotificationsConfig) validate() error {
	var errs []error

	if config.FromEmail == "" {
		errs = append(errs, fmt.Errorf("missing variable: from_email"))
	}
	if config.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive"))
	}
	if config.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive"))
	}
	if config.SendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("send_timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}
	return nil
}

func (config NotificationsConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return v.BindEnv("notifications.admin_recipient", "ADMIN_RECIPIENT")
}

// Defaults returns the option values the options table is seeded with.
func (config NotificationsConfig) Defaults() map[string]string {
	defaults := map[string]string{
		OptionNotificationsEnabled: strconv.FormatBool(config.Enabled),
		OptionFromEmail:            config.FromEmail,
		OptionFromName:             config.FromName,
		OptionAdminRecipient:       config.AdminRecipient,
		OptionSiteName:             config.SiteName,
	}
	for category, enabled := range config.Categories {
		defaults[category] = strconv.FormatBool(enabled)
	}
	return defaults
}
