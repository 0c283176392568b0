// Package config loads relay settings from defaults, an optional YAML file,
// RELAY_* environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Config is the full relay configuration.
type Config struct {
	Model    ModelConfig    `mapstructure:"model"`
	ToolHost ToolHostConfig `mapstructure:"toolhost"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// ModelConfig selects the Model Host and its generation parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Name        string  `mapstructure:"name"`
	URL         string  `mapstructure:"url"`
	Temperature float64 `mapstructure:"temperature"`
	NumPredict  int     `mapstructure:"num_predict"`
	Think       bool    `mapstructure:"think"`
	Validate    bool    `mapstructure:"validate"` // check the model exists before the turn
	APIKey      string  `mapstructure:"api_key"`
}

// Model IDs used when model.name is empty.
const (
	DefaultOllamaModel = "qwen3:30b"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// ModelName returns the configured model ID, or the provider's default when
// none is set.
func (m ModelConfig) ModelName() string {
	switch {
	case m.Name != "":
		return m.Name
	case m.Provider == ProviderGemini:
		return DefaultGeminiModel
	default:
		return DefaultOllamaModel
	}
}

// ToolHostConfig locates the Tool Host.
type ToolHostConfig struct {
	URL   string        `mapstructure:"url"`
	Wait  time.Duration `mapstructure:"wait"`  // readiness wait; 0 disables
	Allow []string      `mapstructure:"allow"` // tool name patterns; empty allows all
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	Language        string        `mapstructure:"language"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxIterations   int           `mapstructure:"max_iterations"`
	ToolConcurrency int           `mapstructure:"tool_concurrency"`
	Transcript      string        `mapstructure:"transcript"`
}

// ServerConfig is where the Tool Host listens.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

var defaults = map[string]any{
	"model.provider":         ProviderOllama,
	"model.name":             "",
	"model.url":              "http://localhost:11434",
	"model.temperature":      0.8,
	"model.num_predict":      4096,
	"model.think":            true,
	"model.validate":         true,
	"model.api_key":          "",
	"toolhost.url":           "http://localhost:13744/mcp",
	"toolhost.wait":          time.Duration(0),
	"toolhost.allow":         []string{},
	"agent.language":         "en",
	"agent.timeout":          2 * time.Minute,
	"agent.max_iterations":   10,
	"agent.tool_concurrency": 4,
	"agent.transcript":       "",
	"server.addr":            "0.0.0.0:13744",
	"server.path":            "/mcp",
	"log.level":              "info",
	"log.format":             "console",
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"provider":         "model.provider",
	"model":            "model.name",
	"model-url":        "model.url",
	"temperature":      "model.temperature",
	"num-predict":      "model.num_predict",
	"think":            "model.think",
	"validate-model":   "model.validate",
	"toolhost-url":     "toolhost.url",
	"wait":             "toolhost.wait",
	"allow":            "toolhost.allow",
	"language":         "agent.language",
	"timeout":          "agent.timeout",
	"max-iterations":   "agent.max_iterations",
	"tool-concurrency": "agent.tool_concurrency",
	"transcript":       "agent.transcript",
	"addr":             "server.addr",
	"path":             "server.path",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

// ClientFlags returns the flags of the relay command.
func ClientFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("provider", ProviderOllama, "model host: ollama or gemini")
	fs.String("model", "", "model ID (default qwen3:30b for ollama, gemini-2.5-flash for gemini)")
	fs.String("model-url", "http://localhost:11434", "model host URL")
	fs.Float64("temperature", 0.8, "sampling temperature")
	fs.Int("num-predict", 4096, "maximum tokens per model call")
	fs.Bool("think", true, "request reasoning output")
	fs.Bool("validate-model", true, "check the model exists before the turn")
	fs.String("toolhost-url", "http://localhost:13744/mcp", "tool host MCP endpoint")
	fs.Duration("wait", 0, "wait up to this long for the tool host to become healthy")
	fs.StringSlice("allow", nil, "tool name patterns to expose (default all)")
	fs.String("language", "en", "fallback reply language (BCP 47 tag)")
	fs.Duration("timeout", 2*time.Minute, "timeout for each model and tool call")
	fs.Int("max-iterations", 10, "maximum tool-call rounds per turn")
	fs.Int("tool-concurrency", 4, "tool calls run at once")
	fs.String("transcript", "", "write the turn's conversation to this JSON file")
	addLogFlags(fs)
	return fs
}

// ServerFlags returns the flags of the toolhost command.
func ServerFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("toolhost", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("addr", "0.0.0.0:13744", "listen address")
	fs.String("path", "/mcp", "MCP endpoint path")
	addLogFlags(fs)
	return fs
}

func addLogFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "console", "log format: console or json")
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	searchPaths []string
}

// WithSearchPaths sets the directories searched for relay.yaml when no
// --config flag is given.
func WithSearchPaths(paths ...string) Option {
	return func(l *loader) { l.searchPaths = paths }
}

// Load parses args with fs and resolves the configuration. A --config file
// must exist; a searched relay.yaml is optional. The result is validated.
func Load(fs *pflag.FlagSet, args []string, opts ...Option) (*Config, error) {
	l := loader{searchPaths: []string{".", "$HOME/.relay"}}
	for _, opt := range opts {
		opt(&l)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "bind flag %s", name)
			}
		}
	}

	path, _ := fs.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		for _, p := range l.searchPaths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the commands cannot use.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOllama:
	case ProviderGemini:
		if c.Model.APIKey == "" {
			return errors.Wrap(relay.ErrValidation, "model.api_key is required for gemini")
		}
	default:
		return errors.Wrapf(relay.ErrValidation, "unknown provider %q: must be %q or %q", c.Model.Provider, ProviderOllama, ProviderGemini)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return errors.Wrapf(relay.ErrValidation, "model.temperature must be in [0, 2], got %g", c.Model.Temperature)
	}
	if c.Model.NumPredict < 0 {
		return errors.Wrapf(relay.ErrValidation, "model.num_predict must be non-negative, got %d", c.Model.NumPredict)
	}
	if err := checkURL("model.url", c.Model.URL); err != nil {
		return err
	}
	if err := checkURL("toolhost.url", c.ToolHost.URL); err != nil {
		return err
	}
	if c.ToolHost.Wait < 0 {
		return errors.Wrapf(relay.ErrValidation, "toolhost.wait must be non-negative, got %s", c.ToolHost.Wait)
	}
	if _, err := language.Parse(c.Agent.Language); err != nil {
		return errors.Wrapf(relay.ErrValidation, "agent.language %q is not a valid language tag", c.Agent.Language)
	}
	if c.Agent.Timeout <= 0 {
		return errors.Wrapf(relay.ErrValidation, "agent.timeout must be positive, got %s", c.Agent.Timeout)
	}
	if c.Agent.MaxIterations <= 0 {
		return errors.Wrapf(relay.ErrValidation, "agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.ToolConcurrency <= 0 {
		return errors.Wrapf(relay.ErrValidation, "agent.tool_concurrency must be positive, got %d", c.Agent.ToolConcurrency)
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return errors.Wrapf(relay.ErrValidation, "server.path must start with /, got %q", c.Server.Path)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(relay.ErrValidation, "log.level %q is not a valid level", c.Log.Level)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return errors.Wrapf(relay.ErrValidation, "log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Language returns the fallback reply language. It assumes Validate passed.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Agent.Language)
	if err != nil {
		return language.English
	}
	return tag
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(relay.ErrValidation, "%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}
