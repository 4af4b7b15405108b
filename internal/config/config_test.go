package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Endpoint.URL = "https://example.openai.azure.com"
	cfg.Model.ID = "gpt-4o"
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "60s", want: 60 * time.Second},
		{in: "2m", want: 2 * time.Minute},
		{in: "1h", want: time.Hour},
		{in: "0s", want: 0},
		{in: "1.5h", wantErr: true},
		{in: "10", wantErr: true},
		{in: "10d", wantErr: true},
		{in: "10sx", wantErr: true},
		{in: " 10s", wantErr: true},
		{in: "99999999999999999999s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				var cerr *ConfigError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, "test.duration", cerr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero concurrency allowed", mutate: func(c *Config) { c.Test.ConcurrencyLevel = 0 }},
		{name: "negative concurrency", mutate: func(c *Config) { c.Test.ConcurrencyLevel = -1 }, wantField: "test.concurrency_level"},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint.URL = "" }, wantField: "endpoint.url"},
		{name: "bedrock needs no endpoint", mutate: func(c *Config) {
			c.Endpoint.ClientType = "bedrock"
			c.Endpoint.URL = ""
		}},
		{name: "bedrock needs region", mutate: func(c *Config) {
			c.Endpoint.ClientType = "bedrock"
			c.Endpoint.Region = ""
		}, wantField: "endpoint.region"},
		{name: "unknown client type", mutate: func(c *Config) { c.Endpoint.ClientType = "grpc" }, wantField: "endpoint.client_type"},
		{name: "missing model", mutate: func(c *Config) { c.Model.ID = "" }, wantField: "model.id"},
		{name: "bad duration", mutate: func(c *Config) { c.Test.Duration = "ten minutes" }, wantField: "test.duration"},
		{name: "negative max tokens", mutate: func(c *Config) { c.Test.MaxTokens = -5 }, wantField: "test.max_tokens"},
		{name: "zero poll interval", mutate: func(c *Config) { c.Test.PollInterval = 0 }, wantField: "test.poll_interval"},
		{name: "bad log level", mutate: func(c *Config) { c.Output.LogLevel = "loud" }, wantField: "output.log_level"},
		{name: "bad metrics address", mutate: func(c *Config) { c.Output.MetricsAddr = "nope" }, wantField: "output.metrics_addr"},
		{name: "metrics port only", mutate: func(c *Config) { c.Output.MetricsAddr = ":9090" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantField, cerr.Field)
		})
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
endpoint:
  url: http://localhost:8000/v1
  client_type: openai
model:
  id: llama-3
test:
  concurrency_level: 8
  duration: 5m
  poll_interval: 250ms
output:
  columns: [total_calls, p99_response_time]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/v1", cfg.Endpoint.URL)
	assert.Equal(t, "openai", cfg.Endpoint.ClientType)
	assert.Equal(t, "llama-3", cfg.Model.ID)
	assert.Equal(t, 8, cfg.Test.ConcurrencyLevel)
	assert.Equal(t, "5m", cfg.Test.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Test.PollInterval)
	assert.Equal(t, []string{"total_calls", "p99_response_time"}, cfg.Output.Columns)

	// untouched fields keep defaults
	assert.Equal(t, "cl100k_base", cfg.Model.Encoding)
	assert.Equal(t, 100, cfg.Test.PromptTokens)
	assert.Equal(t, time.Second, cfg.Test.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "run.json", `{"endpoint": {"url": "https://x"}, "model": {"id": "gpt"}, "test": {"max_tokens": 256}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Test.MaxTokens)
	assert.Equal(t, "azure", cfg.Endpoint.ClientType)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeFile(t, "typo.yaml", "test:\n  concurency_level: 3\n")
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")

	empty := writeFile(t, "empty.yaml", "")
	cfg, err := LoadConfig(empty)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "run.yaml", `
endpoint:
  url: https://from-file
model:
  id: file-model
test:
  concurrency_level: 2
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--config", path,
		"-c", "16",
		"-d", "30s",
		"--poll-interval", "100ms",
		"--columns", "total_calls,avg_response_time",
	}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "https://from-file", cfg.Endpoint.URL)
	assert.Equal(t, "file-model", cfg.Model.ID)
	assert.Equal(t, 16, cfg.Test.ConcurrencyLevel)
	assert.Equal(t, "30s", cfg.Test.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Test.PollInterval)
	assert.Equal(t, []string{"total_calls", "avg_response_time"}, cfg.Output.Columns)
}

func TestLoad_FlagsOnly(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-e", "https://x", "-m", "gpt", "--client-type", "openai"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Endpoint.ClientType)
	assert.Equal(t, 1, cfg.Test.ConcurrencyLevel)
	assert.Empty(t, cfg.Test.Duration)
}

func TestLoad_InvalidFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-e", "https://x", "-m", "gpt", "--concurrency-level=-3"}))

	_, err := Load(fs)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "test.concurrency_level", cerr.Field)
}
