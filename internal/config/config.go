// Package config handles loading and validating the thirdeye configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the thirdeye daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Torch      TorchConfig      `mapstructure:"torch"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	Emergency  EmergencyConfig  `mapstructure:"emergency"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Locale     LocaleConfig     `mapstructure:"locale"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
	MQTT MQTTConfig `mapstructure:"mqtt"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // WebSocket origins; empty allows any
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// ProvidersConfig lists the analysis backends in cascade order.
type ProvidersConfig struct {
	Primary   ProviderConfig `mapstructure:"primary"`
	Secondary ProviderConfig `mapstructure:"secondary"`
	Tertiary  ProviderConfig `mapstructure:"tertiary"`
}

// Ordered returns the providers in the order the cascade tries them.
// Providers with an empty Kind are left out.
func (p ProvidersConfig) Ordered() []ProviderConfig {
	var out []ProviderConfig
	for _, pc := range []ProviderConfig{p.Primary, p.Secondary, p.Tertiary} {
		if pc.Kind != "" {
			out = append(out, pc)
		}
	}
	return out
}

// ProviderConfig configures a single vision backend. It is immutable once loaded.
type ProviderConfig struct {
	Kind        string            `mapstructure:"kind"` // "gemini", "openai" or "relay"
	Name        string            `mapstructure:"name"`
	Model       string            `mapstructure:"model"`
	APIKey      string            `mapstructure:"api_key"`
	Endpoint    string            `mapstructure:"endpoint"`
	MaxTokens   int               `mapstructure:"max_tokens"`
	Temperature float64           `mapstructure:"temperature"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	MinInterval time.Duration     `mapstructure:"min_interval"` // minimum spacing between calls; 0 disables
	JSONMode    bool              `mapstructure:"json_mode"`    // request response_format=json_object
	Headers     map[string]string `mapstructure:"headers"`      // extra request headers (e.g., OpenRouter X-Title)
}

// AnalysisConfig tunes the orchestrator.
type AnalysisConfig struct {
	Interval     time.Duration `mapstructure:"interval"`      // polling interval while a mode is active
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"` // upper bound for one full cascade
	FrameMaxAge  time.Duration `mapstructure:"frame_max_age"` // older frames are not analyzed
	FocusDelay   time.Duration `mapstructure:"focus_delay"`   // delay before re-analysis after a box is focused
}

// TorchConfig holds the hysteresis thresholds on a 0-255 luma scale.
type TorchConfig struct {
	LowThreshold   float64       `mapstructure:"low_threshold"`
	HighThreshold  float64       `mapstructure:"high_threshold"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

// SpeechConfig controls the speech output channel.
type SpeechConfig struct {
	Rate  float64   `mapstructure:"rate"`
	Pitch float64   `mapstructure:"pitch"`
	TTS   TTSConfig `mapstructure:"tts"`
}

// TTSConfig selects and configures the optional server-side text-to-speech backend.
type TTSConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Backend string      `mapstructure:"backend"` // "piper"
	Piper   PiperConfig `mapstructure:"piper"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// Endpoints maps ISO-639-1 codes to per-language Wyoming TCP endpoints and
// takes precedence over Endpoint.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // Default Wyoming TCP endpoint (host:port)
	Endpoints map[string]string `mapstructure:"endpoints"` // ISO-639-1 language code -> Wyoming TCP endpoint
	Voices    map[string]string `mapstructure:"voices"`    // ISO-639-1 language code -> Piper voice model name
}

// EmergencyConfig configures the one-shot alert sent when Emergency mode is entered.
// An empty Contact disables the alert.
type EmergencyConfig struct {
	Channel  string         `mapstructure:"channel"` // "telegram" or "webhook"
	Contact  string         `mapstructure:"contact"` // telegram chat ID or webhook recipient
	Timeout  time.Duration  `mapstructure:"timeout"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	Token    string `mapstructure:"token"`
	Endpoint string `mapstructure:"endpoint"` // Bot API endpoint format; empty uses the public API
}

// WebhookConfig holds the generic HTTP alert settings.
type WebhookConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// DetectionConfig filters on-device detector output.
type DetectionConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// LocaleConfig selects the language tables.
type LocaleConfig struct {
	Code string `mapstructure:"code"` // built-in locale ("tr", "en")
	File string `mapstructure:"file"` // optional YAML file replacing the built-in locale
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Polling interval bounds. Shorter intervals exceed free-tier rate limits.
const (
	MinInterval = 7 * time.Second
	MaxInterval = 12 * time.Second
)

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./thirdeye.yaml, ./configs/thirdeye.yaml, /etc/thirdeye/thirdeye.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("thirdeye")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/thirdeye")
	}

	// Environment variables: THIRDEYE_SERVER_HEALTH_PORT, THIRDEYE_PROVIDERS_PRIMARY_API_KEY, etc.
	v.SetEnvPrefix("THIRDEYE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${GEMINI_API_KEY}")
	for _, pc := range []*ProviderConfig{&cfg.Providers.Primary, &cfg.Providers.Secondary, &cfg.Providers.Tertiary} {
		pc.APIKey = resolveEnvRef(pc.APIKey)
	}
	cfg.Emergency.Contact = resolveEnvRef(cfg.Emergency.Contact)
	cfg.Emergency.Telegram.Token = resolveEnvRef(cfg.Emergency.Telegram.Token)
	cfg.Emergency.Webhook.Token = resolveEnvRef(cfg.Emergency.Webhook.Token)
	cfg.Transports.MQTT.Password = resolveEnvRef(cfg.Transports.MQTT.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.mqtt.enabled", false)
	v.SetDefault("transports.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("transports.mqtt.topic_prefix", "thirdeye")

	v.SetDefault("providers.primary.kind", "gemini")
	v.SetDefault("providers.primary.name", "gemini")
	v.SetDefault("providers.primary.model", "gemini-2.0-flash")
	v.SetDefault("providers.primary.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("providers.primary.max_tokens", 300)
	v.SetDefault("providers.primary.temperature", 0.1)
	v.SetDefault("providers.primary.timeout", "20s")
	v.SetDefault("providers.primary.min_interval", "1s")
	v.SetDefault("providers.primary.json_mode", true)

	v.SetDefault("providers.secondary.kind", "openai")
	v.SetDefault("providers.secondary.name", "groq")
	v.SetDefault("providers.secondary.endpoint", "https://api.groq.com/openai/v1")
	v.SetDefault("providers.secondary.model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("providers.secondary.api_key", "${GROQ_API_KEY}")
	v.SetDefault("providers.secondary.max_tokens", 300)
	v.SetDefault("providers.secondary.temperature", 0.1)
	v.SetDefault("providers.secondary.timeout", "20s")
	v.SetDefault("providers.secondary.json_mode", true)

	v.SetDefault("providers.tertiary.kind", "relay")
	v.SetDefault("providers.tertiary.name", "relay")
	v.SetDefault("providers.tertiary.endpoint", "http://localhost:3000/api/analyze")
	v.SetDefault("providers.tertiary.max_tokens", 800)
	v.SetDefault("providers.tertiary.temperature", 0.1)
	v.SetDefault("providers.tertiary.timeout", "30s")

	v.SetDefault("analysis.interval", "7s")
	v.SetDefault("analysis.cycle_timeout", "45s")
	v.SetDefault("analysis.frame_max_age", "10s")
	v.SetDefault("analysis.focus_delay", "800ms")

	v.SetDefault("torch.low_threshold", 100)
	v.SetDefault("torch.high_threshold", 180)
	v.SetDefault("torch.sample_interval", "2s")

	v.SetDefault("speech.rate", 0.9)
	v.SetDefault("speech.pitch", 0.9)
	v.SetDefault("speech.tts.enabled", false)
	v.SetDefault("speech.tts.backend", "piper")
	v.SetDefault("speech.tts.piper.endpoint", "localhost:10200")

	v.SetDefault("emergency.channel", "telegram")
	v.SetDefault("emergency.contact", "")
	v.SetDefault("emergency.timeout", "15s")
	v.SetDefault("emergency.telegram.token", "${TELEGRAM_BOT_TOKEN}")

	v.SetDefault("detection.min_confidence", 0.3)

	v.SetDefault("locale.code", "tr")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks cross-field constraints and clamps tunables into their supported ranges.
func (c *Config) Validate() error {
	if c.Analysis.Interval < MinInterval {
		slog.Warn("analysis interval below minimum, clamping", "interval", c.Analysis.Interval, "min", MinInterval)
		c.Analysis.Interval = MinInterval
	}
	if c.Analysis.Interval > MaxInterval {
		slog.Warn("analysis interval above maximum, clamping", "interval", c.Analysis.Interval, "max", MaxInterval)
		c.Analysis.Interval = MaxInterval
	}

	if c.Torch.LowThreshold < 0 || c.Torch.HighThreshold > 255 {
		return fmt.Errorf("torch thresholds must be within 0-255 (got %v/%v)", c.Torch.LowThreshold, c.Torch.HighThreshold)
	}
	if c.Torch.LowThreshold >= c.Torch.HighThreshold {
		return fmt.Errorf("torch low_threshold (%v) must be below high_threshold (%v)", c.Torch.LowThreshold, c.Torch.HighThreshold)
	}
	if c.Torch.SampleInterval <= 0 {
		c.Torch.SampleInterval = 2 * time.Second
	}

	for _, pc := range []*ProviderConfig{&c.Providers.Primary, &c.Providers.Secondary, &c.Providers.Tertiary} {
		switch pc.Kind {
		case "", "gemini", "openai", "relay":
		default:
			return fmt.Errorf("provider %q: unknown kind %q", pc.Name, pc.Kind)
		}
		if pc.Name == "" {
			pc.Name = pc.Kind
		}
		pc.MaxTokens = clampInt(pc.MaxTokens, 300, 800)
	}

	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection.min_confidence must be within 0-1 (got %v)", c.Detection.MinConfidence)
	}

	switch c.Emergency.Channel {
	case "telegram", "webhook":
	default:
		return fmt.Errorf("emergency.channel: unknown channel %q", c.Emergency.Channel)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to the empty string so the dependent feature stays disabled.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
