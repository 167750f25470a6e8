// Package config loads runtime configuration from defaults, an optional YAML
// file, a .env file and environment variables, in increasing precedence.
// Every key has a safe default so the binary runs locally without setup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

// EnvPrefix prefixes every environment override: server.port → PARLEY_SERVER_PORT.
const EnvPrefix = "PARLEY"

// Config holds runtime configuration for parley.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Anthropic  ProviderConfig   `mapstructure:"anthropic"`
	OpenAI     ProviderConfig   `mapstructure:"openai"`
	Gemini     ProviderConfig   `mapstructure:"gemini"`
	Ollama     OllamaConfig     `mapstructure:"ollama"`
	Assistants AssistantsConfig `mapstructure:"assistants"`
	Preview    PreviewConfig    `mapstructure:"preview"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LLMConfig struct {
	DefaultModel string `mapstructure:"default_model"` // empty: catalog default
	MaxTokens    int    `mapstructure:"max_tokens"`
	CatalogPath  string `mapstructure:"catalog_path"` // empty: embedded catalog
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type AssistantsConfig struct {
	Name            string        `mapstructure:"name"`
	Instructions    string        `mapstructure:"instructions"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollInterval time.Duration `mapstructure:"max_poll_interval"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
}

type PreviewConfig struct {
	CSVRowLimit   int `mapstructure:"csv_row_limit"`
	TextCharLimit int `mapstructure:"text_char_limit"`
	MaxPixels     int `mapstructure:"max_pixels"`
}

type ChatConfig struct {
	HistoryDedupe    bool `mapstructure:"history_dedupe"`
	MaxConversations int  `mapstructure:"max_conversations"`
}

type AuditConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// providerKeyEnv lists the unprefixed variables accepted for API keys,
// after the PARLEY_ form.
var providerKeyEnv = map[string][]string{
	"anthropic.api_key": {"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"},
	"openai.api_key":    {"OPENAI_API_KEY"},
	"gemini.api_key":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"ollama.base_url":   {"OLLAMA_BASE_URL"},
}

// Load builds the configuration. path names an optional YAML config file;
// a .env file in the working directory is loaded when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range providerKeyEnv {
		envPrefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envPrefixed}, names...)...); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	// A session turn may poll for up to assistants.run_timeout.
	v.SetDefault("server.write_timeout", 150*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("llm.default_model", "")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.catalog_path", "")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("ollama.base_url", "http://localhost:11434")

	v.SetDefault("assistants.name", "Chat Assistant")
	v.SetDefault("assistants.instructions", "You are a helpful assistant. Use the attached files when they are relevant to the question.")
	v.SetDefault("assistants.poll_interval", time.Second)
	v.SetDefault("assistants.max_poll_interval", time.Second)
	v.SetDefault("assistants.run_timeout", 2*time.Minute)

	v.SetDefault("preview.csv_row_limit", 2000)
	v.SetDefault("preview.text_char_limit", 1_000_000)
	v.SetDefault("preview.max_pixels", 25_000_000)

	v.SetDefault("chat.history_dedupe", true)
	v.SetDefault("chat.max_conversations", 1000)

	v.SetDefault("audit.db_path", ":memory:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LLMSettings maps provider credentials onto llm.Settings.
func (c Config) LLMSettings() llm.Settings {
	return llm.Settings{
		AnthropicAPIKey:  c.Anthropic.APIKey,
		AnthropicBaseURL: c.Anthropic.BaseURL,
		OpenAIAPIKey:     c.OpenAI.APIKey,
		OpenAIBaseURL:    c.OpenAI.BaseURL,
		GeminiAPIKey:     c.Gemini.APIKey,
		GeminiBaseURL:    c.Gemini.BaseURL,
		OllamaBaseURL:    c.Ollama.BaseURL,
		DefaultMaxTokens: c.LLM.MaxTokens,
	}
}

// PollConfig maps the assistants run bounds onto llm.PollConfig.
func (c Config) PollConfig() llm.PollConfig {
	return llm.PollConfig{
		Interval:    c.Assistants.PollInterval,
		MaxInterval: c.Assistants.MaxPollInterval,
		Timeout:     c.Assistants.RunTimeout,
	}
}

// AssistantSpec returns the spec used to create assistants.
func (c Config) AssistantSpec() llm.AssistantSpec {
	return llm.AssistantSpec{Name: c.Assistants.Name, Instructions: c.Assistants.Instructions}
}
