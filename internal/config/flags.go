package config

import (
	"github.com/spf13/pflag"
)

// AddFlags registers the command line overrides. Defaults mirror Default().
func AddFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String("config", "", "YAML or JSON configuration file")
	fs.StringP("endpoint", "e", "", "LLM API endpoint")
	fs.StringP("api-key", "k", "", "LLM API key (bedrock: ACCESS_KEY:SECRET_KEY, empty uses the default credential chain)")
	fs.StringP("model", "m", "", "LLM name or Azure OpenAI deployment name")
	fs.String("tiktoken", d.Model.Encoding, "TikToken encoding name")
	fs.IntP("concurrency-level", "c", d.Test.ConcurrencyLevel, "Level of concurrency for testing")
	fs.StringP("duration", "d", "", "Duration of the test (e.g. '60s', '2m', '1h'). If not set, runs until interrupted")
	fs.Int("max-tokens", 0, "Max tokens per completion. 0 leaves it to the endpoint")
	fs.String("client-type", d.Endpoint.ClientType, "Endpoint type: azure, openai, custom or bedrock")
	fs.StringP("api-version", "v", d.Endpoint.APIVersion, "API version for Azure OpenAI")
	fs.String("region", d.Endpoint.Region, "AWS region for bedrock")
	fs.String("token-path", d.Endpoint.TokenPath, "JSON path of the token count in custom endpoint responses")
	fs.Int("prompt-tokens", d.Test.PromptTokens, "Target prompt size in tokens")
	fs.String("prompt-template", "", "Prompt template, {size} is replaced by the target token count")
	fs.Duration("interval", d.Test.Interval, "Live view refresh interval")
	fs.Duration("poll-interval", d.Test.PollInterval, "Scheduler poll interval")
	fs.String("log-prefix", d.Output.LogPrefix, "Request log file prefix")
	fs.String("log-level", d.Output.LogLevel, "Operational log level: debug, info, warn or error")
	fs.String("report", "", "Write a markdown report to this path when the run ends")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. ':9090')")
	fs.StringSlice("columns", nil, "Metrics shown in the live table (default all)")
}

// ApplyFlags copies explicitly set flags over cfg
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if fs.Changed(name) {
			*dst, _ = fs.GetInt(name)
		}
	}

	str("endpoint", &cfg.Endpoint.URL)
	str("api-key", &cfg.Endpoint.APIKey)
	str("client-type", &cfg.Endpoint.ClientType)
	str("api-version", &cfg.Endpoint.APIVersion)
	str("region", &cfg.Endpoint.Region)
	str("token-path", &cfg.Endpoint.TokenPath)
	str("model", &cfg.Model.ID)
	str("tiktoken", &cfg.Model.Encoding)
	num("concurrency-level", &cfg.Test.ConcurrencyLevel)
	str("duration", &cfg.Test.Duration)
	num("max-tokens", &cfg.Test.MaxTokens)
	num("prompt-tokens", &cfg.Test.PromptTokens)
	str("prompt-template", &cfg.Test.PromptTemplate)
	str("log-prefix", &cfg.Output.LogPrefix)
	str("log-level", &cfg.Output.LogLevel)
	str("report", &cfg.Output.ReportFile)
	str("metrics-addr", &cfg.Output.MetricsAddr)

	if fs.Changed("interval") {
		cfg.Test.Interval, _ = fs.GetDuration("interval")
	}
	if fs.Changed("poll-interval") {
		cfg.Test.PollInterval, _ = fs.GetDuration("poll-interval")
	}
	if fs.Changed("columns") {
		cfg.Output.Columns, _ = fs.GetStringSlice("columns")
	}
}

// Load builds the effective configuration: defaults, then the --config file
// if given, then explicitly set flags. The result is validated.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if path, _ := fs.GetString("config"); path != "" {
		fromFile, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fromFile
	}

	ApplyFlags(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
