package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/keiba-ai/internal/utils"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".keiba"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Race card sources
	DataURL         string `mapstructure:"data_url" yaml:"data_url"`
	SamplePath      string `mapstructure:"sample_path" yaml:"sample_path"`
	FetchTimeoutSec int    `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	DataCacheSec    int    `mapstructure:"data_cache_sec" yaml:"data_cache_sec"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Gateway guards
	LLMTimeoutSec int `mapstructure:"llm_timeout_sec" yaml:"llm_timeout_sec"`
	LLMRatePerMin int `mapstructure:"llm_rate_per_min" yaml:"llm_rate_per_min"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Web UI
	ListenAddr    string `mapstructure:"listen_addr" yaml:"listen_addr"`
	UploadMaxMB   int    `mapstructure:"upload_max_mb" yaml:"upload_max_mb"`
	SessionTTLMin int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

func setDefaults(v *viper.Viper) {
	// every key needs a default so AutomaticEnv reaches it on Unmarshal
	v.SetDefault("api_key", "")
	v.SetDefault("default_model", "openai/gpt-4o-mini")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("max_tokens", 1500)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("data_url", "")
	v.SetDefault("sample_path", filepath.Join("data", "sample_racecard.csv"))
	v.SetDefault("fetch_timeout_sec", 15)
	v.SetDefault("data_cache_sec", 300)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("llm_timeout_sec", 90)
	v.SetDefault("llm_rate_per_min", 20)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("upload_max_mb", 10)
	v.SetDefault("session_ttl_min", 60)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Defaults returns the configuration with only built-in defaults applied.
func Defaults() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

// Dir resolves ~/.keiba.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.keiba/config.yaml.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("KEIBA")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, a broken one is not
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Keys lists the settable keys in display order.
var Keys = []string{
	"api_key", "default_model", "default_provider", "max_tokens", "temperature",
	"data_url", "sample_path", "fetch_timeout_sec", "data_cache_sec",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"llm_timeout_sec", "llm_rate_per_min", "ollama_host",
	"listen_addr", "upload_max_mb", "session_ttl_min",
	"log_level", "log_format",
}

// Set assigns a single key from its string form, validating the value.
func (c *Global) Set(key, val string) error {
	posInt := func(dst *int) error {
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for %s: %q", key, val)
		}
		*dst = i
		return nil
	}
	switch key {
	case "api_key":
		c.APIKey = val
	case "default_model":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("default_model cannot be empty")
		}
		c.DefaultModel = val
	case "default_provider":
		p, err := NormalizeProvider(val)
		if err != nil {
			return err
		}
		c.DefaultProvider = p
	case "max_tokens":
		return posInt(&c.MaxTokens)
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid temperature %q (0..2)", val)
		}
		c.Temperature = f
	case "data_url":
		if val != "" && !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
			return fmt.Errorf("data_url must be http(s): %q", val)
		}
		c.DataURL = val
	case "sample_path":
		c.SamplePath = val
	case "fetch_timeout_sec":
		return posInt(&c.FetchTimeoutSec)
	case "data_cache_sec":
		// 0 disables the cache
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid non-negative int for %s: %q", key, val)
		}
		c.DataCacheSec = i
	case "http_timeout_sec":
		return posInt(&c.HTTPTimeoutSec)
	case "retry_max_attempts":
		return posInt(&c.RetryMaxAttempts)
	case "retry_base_delay_ms":
		return posInt(&c.RetryBaseDelayMs)
	case "retry_max_delay_ms":
		return posInt(&c.RetryMaxDelayMs)
	case "llm_timeout_sec":
		return posInt(&c.LLMTimeoutSec)
	case "llm_rate_per_min":
		return posInt(&c.LLMRatePerMin)
	case "ollama_host":
		c.OllamaHost = val
	case "listen_addr":
		c.ListenAddr = val
	case "upload_max_mb":
		return posInt(&c.UploadMaxMB)
	case "session_ttl_min":
		return posInt(&c.SessionTTLMin)
	case "log_level":
		switch strings.ToLower(val) {
		case "trace", "debug", "info", "warn", "warning", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "text", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the string form of key.
func (c *Global) Get(key string) (string, bool) {
	switch key {
	case "api_key":
		return c.APIKey, true
	case "default_model":
		return c.DefaultModel, true
	case "default_provider":
		return c.DefaultProvider, true
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens), true
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'f', -1, 64), true
	case "data_url":
		return c.DataURL, true
	case "sample_path":
		return c.SamplePath, true
	case "fetch_timeout_sec":
		return strconv.Itoa(c.FetchTimeoutSec), true
	case "data_cache_sec":
		return strconv.Itoa(c.DataCacheSec), true
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), true
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), true
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), true
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), true
	case "llm_timeout_sec":
		return strconv.Itoa(c.LLMTimeoutSec), true
	case "llm_rate_per_min":
		return strconv.Itoa(c.LLMRatePerMin), true
	case "ollama_host":
		return c.OllamaHost, true
	case "listen_addr":
		return c.ListenAddr, true
	case "upload_max_mb":
		return strconv.Itoa(c.UploadMaxMB), true
	case "session_ttl_min":
		return strconv.Itoa(c.SessionTTLMin), true
	case "log_level":
		return c.LogLevel, true
	case "log_format":
		return c.LogFormat, true
	}
	return "", false
}

// NormalizeProvider maps user spellings onto a registered runtime name.
func NormalizeProvider(val string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "openrouter":
		return "openrouter", nil
	case "ollama", "local":
		return "ollama", nil
	}
	return "", fmt.Errorf("invalid default_provider: %s (use openrouter or ollama)", val)
}

// FetchTimeout is the bounded wait for the remote race card.
func (c *Global) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// DataCacheTTL is how long a loaded race card is reused.
func (c *Global) DataCacheTTL() time.Duration {
	return time.Duration(c.DataCacheSec) * time.Second
}

// LLMTimeout bounds one gateway call.
func (c *Global) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// SessionTTL is how long an uploaded dataset is kept for a browser session.
func (c *Global) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// UploadLimit is the multipart size cap in bytes.
func (c *Global) UploadLimit() int64 {
	return int64(c.UploadMaxMB) << 20
}
