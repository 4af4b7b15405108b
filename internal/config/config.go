package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for a load test run
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	Model    ModelConfig    `yaml:"model"`
	Test     TestConfig     `yaml:"test"`
	Output   OutputConfig   `yaml:"output"`
}

// EndpointConfig describes the model endpoint under test
type EndpointConfig struct {
	URL        string `yaml:"url" validate:"required_unless=ClientType bedrock"`
	APIKey     string `yaml:"api_key"`
	ClientType string `yaml:"client_type" validate:"oneof=azure openai custom bedrock"`
	APIVersion string `yaml:"api_version"`
	Region     string `yaml:"region" validate:"required_if=ClientType bedrock"`
	TokenPath  string `yaml:"token_path"`
}

// ModelConfig names the model or deployment
type ModelConfig struct {
	ID       string `yaml:"id" validate:"required"`
	Encoding string `yaml:"encoding" validate:"required"`
}

// TestConfig contains load parameters
type TestConfig struct {
	ConcurrencyLevel int           `yaml:"concurrency_level" validate:"gte=0"`
	Duration         string        `yaml:"duration"`
	MaxTokens        int           `yaml:"max_tokens" validate:"gte=0"`
	PromptTokens     int           `yaml:"prompt_tokens" validate:"gte=0"`
	PromptTemplate   string        `yaml:"prompt_template"`
	Interval         time.Duration `yaml:"interval" validate:"gt=0"`
	PollInterval     time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

// OutputConfig defines output settings
type OutputConfig struct {
	ReportFile  string   `yaml:"report_file"`
	LogPrefix   string   `yaml:"log_prefix" validate:"required"`
	LogLevel    string   `yaml:"log_level" validate:"oneof=debug info warn error"`
	MetricsAddr string   `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Columns     []string `yaml:"columns"`
}

// ConfigError is a fatal configuration problem detected before the run
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Default returns the configuration used when neither file nor flags say otherwise
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			ClientType: "azure",
			APIVersion: "2023-05-15",
			Region:     "us-east-1",
			TokenPath:  "usage.total_tokens",
		},
		Model: ModelConfig{
			Encoding: "cl100k_base",
		},
		Test: TestConfig{
			ConcurrencyLevel: 1,
			PromptTokens:     100,
			Interval:         time.Second,
			PollInterval:     time.Second,
		},
		Output: OutputConfig{
			LogPrefix: "test",
			LogLevel:  "warn",
		},
	}
}

// LoadConfig reads a YAML or JSON file on top of the defaults.
// Validation is left to the caller so flags can still override.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}

	if _, err := ParseDuration(c.Test.Duration); err != nil {
		return err
	}

	return nil
}

func fieldError(fe validator.FieldError) *ConfigError {
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	var reason string
	switch fe.Tag() {
	case "required", "required_unless", "required_if":
		reason = "is required"
	case "oneof":
		reason = fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "gte":
		reason = fmt.Sprintf("must be >= %s", fe.Param())
	case "gt":
		reason = fmt.Sprintf("must be > %s", fe.Param())
	case "hostname_port":
		reason = "must be a host:port address"
	default:
		reason = fmt.Sprintf("failed %q check", fe.Tag())
	}

	return &ConfigError{Field: field, Reason: reason}
}

var durationPattern = regexp.MustCompile(`^(\d+)(s|m|h)$`)

// ParseDuration parses "<integer><s|m|h>". An empty string means the run
// has no deadline and yields 0.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	match := durationPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, &ConfigError{
			Field:  "test.duration",
			Reason: fmt.Sprintf("has invalid format %q: use 's' for seconds, 'm' for minutes and 'h' for hours, e.g. '60s', '2m', '1h'", s),
		}
	}

	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, &ConfigError{Field: "test.duration", Reason: fmt.Sprintf("is out of range: %q", s)}
	}

	unit := map[string]time.Duration{"s": time.Second, "m": time.Minute, "h": time.Hour}[match[2]]
	return time.Duration(n) * unit, nil
}
