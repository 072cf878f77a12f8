package config

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Logger        LoggerConfig        `mapstructure:"logger"`
	DB            DBConfig            `mapstructure:"db"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Mail          MailConfig          `mapstructure:"mail"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	MetricsAddr   string              `mapstructure:"metrics_addr"`
}

const defaultConfigFile = "./configs/config.yaml"

func Get() *Config {

	configFile := defaultConfigFile
	if value, ok := os.LookupEnv("CONFIG_PATH"); ok && value != "" {
		configFile = value
	}

	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func loadConfig(file string) (*Config, error) {

	v := viper.New()
	v.SetConfigFile(file)

	setDefaults(v)

	if err := bindEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", file, err)
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metrics_addr", ":8080")
	v.SetDefault("logger.log_level", string(LevelInfo))
	v.SetDefault("logger.output_file", "./logs/errors.log")
	v.SetDefault("logger.app_name", "jobboard-core")
	v.SetDefault("jobs.expiry_schedule", "*/15 * * * *")
	DBConfig{}.setDefaults(v)
	NotificationsConfig{}.setDefaults(v)
	MailConfig{}.setDefaults(v)
}

func bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error

	logger, db, mail, telegram, notifications := LoggerConfig{}, DBConfig{}, MailConfig{}, TelegramConfig{}, NotificationsConfig{}

	if err := logger.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := db.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := mail.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("MailConfig: %w", err))
	}

	if err := telegram.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("TelegramConfig: %w", err))
	}

	if err := notifications.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("NotificationsConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := config.Notifications.validate(); err != nil {
		errs = append(errs, fmt.Errorf("NotificationsConfig: %w", err))
	}

	if err := config.Mail.validate(); err != nil {
		errs = append(errs, fmt.Errorf("MailConfig: %w", err))
	}

	if config.Jobs.ExpirySchedule == "" {
		errs = append(errs, fmt.Errorf("JobsConfig: missing variable: expiry_schedule"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

type JobsConfig struct {
	ExpirySchedule string `mapstructure:"expiry_schedule"`
}
