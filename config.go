package kaonavi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Config is the file/environment form of the client settings.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"        validate:"required,url"`
	ConsumerKey    string        `mapstructure:"consumer_key"    validate:"required"`
	ConsumerSecret string        `mapstructure:"consumer_secret" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout"         validate:"gt=0"`
	DryRun         bool          `mapstructure:"dry_run"`
	MutatingLimit  int           `mapstructure:"mutating_limit"  validate:"gte=1"`
	MutatingWindow time.Duration `mapstructure:"mutating_window" validate:"gt=0"`
}

// LoadConfig reads configuration from path (YAML) when given, otherwise from
// ./kaonavi.yaml if present. KAONAVI_* environment variables override both,
// e.g. KAONAVI_CONSUMER_KEY.
func LoadConfig(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("kaonavi")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("kaonavi")
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	vip.SetDefault("base_url", DefaultBaseURL)
	vip.SetDefault("consumer_key", "")
	vip.SetDefault("consumer_secret", "")
	vip.SetDefault("timeout", "30s")
	vip.SetDefault("dry_run", false)
	vip.SetDefault("mutating_limit", DefaultMutatingLimit)
	vip.SetDefault("mutating_window", DefaultMutatingWindow.String())

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags and reports every violation by field name.
func (cfg *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var result *multierror.Error
	for _, fe := range fieldErrs {
		result = multierror.Append(result, fmt.Errorf("%s failed %q validation", fe.Field(), fe.Tag()))
	}
	return &ClientError{
		Type:      ErrorTypeValidation,
		Message:   "configuration validation failed",
		Cause:     result.ErrorOrNil(),
		Param:     fieldErrs[0].Field(),
		Timestamp: time.Now(),
	}
}

// Options converts the configuration to client options.
func (cfg *Config) Options() []Option {
	return []Option{
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.Timeout),
		WithDryRun(cfg.DryRun),
		WithMutatingLimit(cfg.MutatingLimit, cfg.MutatingWindow),
	}
}

// NewFromConfig validates cfg and builds a Client. Extra options are applied
// after the ones derived from cfg.
func NewFromConfig(cfg *Config, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, argumentError("cfg", "config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(cfg.ConsumerKey, cfg.ConsumerSecret, append(cfg.Options(), options...)...)
}
