package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration. Only cmd reads it; every other package
// receives plain values.
type Config struct {
	OpenAI            OpenAIConfig  `mapstructure:"openai"`
	ParamPrefix       string        `mapstructure:"param_prefix"`
	ProfilesPath      string        `mapstructure:"profiles_path"`
	InteractionTable  string        `mapstructure:"interaction_table"`
	ClassifierTimeout time.Duration `mapstructure:"classifier_timeout"`
	ResponderTimeout  time.Duration `mapstructure:"responder_timeout"`
	MaxMessageLength  int           `mapstructure:"max_message_length"`
	HTTP              HTTPConfig    `mapstructure:"http"`
	Log               LogConfig     `mapstructure:"log"`
}

type OpenAIConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	ClassifierModel string  `mapstructure:"classifier_model"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
}

type HTTPConfig struct {
	Addr            string `mapstructure:"addr"`
	ChatPath        string `mapstructure:"chat_path"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// envAliases are the short environment names accepted next to the derived
// ones (http.chat_path is read from HTTP_CHAT_PATH and CHAT_PATH).
var envAliases = map[string]string{
	"http.chat_path":          "CHAT_PATH",
	"http.rate_limit_per_min": "RATE_LIMIT_PER_MIN",
	"http.addr":               "HTTP_ADDR",
	"log.level":               "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.classifier_model", "")
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("param_prefix", "")
	v.SetDefault("profiles_path", "")
	v.SetDefault("interaction_table", "")
	v.SetDefault("classifier_timeout", "10s")
	v.SetDefault("responder_timeout", "25s")
	v.SetDefault("max_message_length", 2000)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.chat_path", "/api/chat")
	v.SetDefault("http.rate_limit_per_min", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
}

// Load reads defaults, then the YAML file at path when path is not empty,
// then the environment. Nested keys map to upper-case names with "." replaced
// by "_" (openai.api_key is OPENAI_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), alias); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	c.OpenAI.ClassifierModel = strings.TrimSpace(c.OpenAI.ClassifierModel)
	if c.OpenAI.ClassifierModel == "" {
		c.OpenAI.ClassifierModel = c.OpenAI.Model
	}
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
	c.ProfilesPath = strings.TrimSpace(c.ProfilesPath)
	c.InteractionTable = strings.TrimSpace(c.InteractionTable)
	c.HTTP.ChatPath = strings.TrimSpace(c.HTTP.ChatPath)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Encoding = strings.ToLower(strings.TrimSpace(c.Log.Encoding))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAI.Model == "" {
		errs = append(errs, errors.New("openai.model must not be empty"))
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("openai.temperature must be within [0, 2], got %v", c.OpenAI.Temperature))
	}
	if c.OpenAI.MaxTokens <= 0 {
		errs = append(errs, errors.New("openai.max_tokens must be positive"))
	}
	if c.ClassifierTimeout <= 0 {
		errs = append(errs, errors.New("classifier_timeout must be positive"))
	}
	if c.ResponderTimeout <= 0 {
		errs = append(errs, errors.New("responder_timeout must be positive"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("max_message_length must be positive"))
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if !strings.HasPrefix(c.HTTP.ChatPath, "/") {
		errs = append(errs, fmt.Errorf("http.chat_path must start with /, got %q", c.HTTP.ChatPath))
	}
	if c.HTTP.RateLimitPerMin < 0 {
		errs = append(errs, errors.New("http.rate_limit_per_min must not be negative"))
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
