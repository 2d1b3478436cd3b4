// Package config loads taskagent settings from a config file, TASKAGENT_*
// environment variables and built-in defaults, in that order of precedence
// after explicit env overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// AppName names the config file and the per-user config dir
	AppName   = "taskagent"
	EnvPrefix = "TASKAGENT"
)

// Config stores all configuration of the application.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Browser BrowserConfig `mapstructure:"browser"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-"`
}

// LLMConfig selects the model endpoint.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`    // "openai", "openai-compatible", "ollama"
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type AgentConfig struct {
	MaxSteps     int    `mapstructure:"max_steps"`
	SystemPrompt string `mapstructure:"system_prompt"` // empty keeps the built-in prompt
}

type ToolsConfig struct {
	// ToolList names the tools to enable; empty selects the defaults
	ToolList []string `mapstructure:"tool_list"`
}

type SandboxConfig struct {
	Dir  string   `mapstructure:"dir"`
	Deny []string `mapstructure:"deny"` // doublestar patterns relative to Dir
}

type ProxyConfig struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BrowserConfig struct {
	Headless  bool        `mapstructure:"headless"`
	UserAgent string      `mapstructure:"user_agent"`
	Bin       string      `mapstructure:"bin"`
	Proxy     ProxyConfig `mapstructure:"proxy"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ErrNoAPIKey is returned by Validate when the hosted provider has no key
var ErrNoAPIKey = errors.New("llm.api_key is not set (config, TASKAGENT_LLM_API_KEY or OPENAI_API_KEY)")

// DefaultDir returns $HOME/.taskagent, or .taskagent when home is unknown
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, "."+AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.0)

	v.SetDefault("agent.max_steps", 20)
	v.SetDefault("agent.system_prompt", "")

	v.SetDefault("tools.tool_list", []string{})

	v.SetDefault("sandbox.dir", "sandbox")
	v.SetDefault("sandbox.deny", []string{})

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.proxy.server", "")
	v.SetDefault("browser.proxy.username", "")
	v.SetDefault("browser.proxy.password", "")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", filepath.Join(DefaultDir(), "runs.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads configuration. An explicit configPath must exist; otherwise
// taskagent.{toml,yaml,json} is searched in the working dir and DefaultDir,
// and a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	// OPENAI_* fill in only what neither the file nor TASKAGENT_* set
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	cfg.Tools.ToolList = splitList(cfg.Tools.ToolList)
	cfg.Sandbox.Deny = splitList(cfg.Sandbox.Deny)

	return &cfg, nil
}

// splitList accepts both real lists and the comma separated form that
// environment variables produce, dropping blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Validate reports settings that would make every run fail.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return errors.New("llm.model must not be empty")
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must not be negative, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// LogLevel parses log.level, falling back to info
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || c.Log.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// LogInfo records the effective settings. The API key is never logged.
func (c *Config) LogInfo(log zerolog.Logger) {
	if c.File != "" {
		log.Info().Str("file", c.File).Msg("Configuration loaded successfully")
	} else {
		log.Info().Msg("Configuration loaded from defaults and environment")
	}
	log.Info().
		Str("provider", c.LLM.Provider).
		Str("model", c.LLM.Model).
		Str("base_url", c.LLM.BaseURL).
		Int("max_tokens", c.LLM.MaxTokens).
		Float64("temperature", c.LLM.Temperature).
		Bool("api_key_set", c.LLM.APIKey != "").
		Msg("LLM settings")

	if len(c.Tools.ToolList) > 0 {
		log.Info().Strs("tools", c.Tools.ToolList).Msg("Enabled tools")
	} else {
		log.Info().Msg("No tools configured, using defaults")
	}
}
