// Package config provides configuration types and loading for voxrelay.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Voice, Channels, Providers, Gateway, Audit.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Voice     VoiceConfig     `json:"voice"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Gateway   GatewayConfig   `json:"gateway"`
	Audit     AuditConfig     `json:"audit"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ---------------------------------------------------------------------------
// Model – completion service behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups completion model and prompt settings.
type ModelConfig struct {
	Name               string        `json:"name" envconfig:"MODEL"`
	MaxTokens          int           `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature        float64       `json:"temperature" envconfig:"TEMPERATURE"`
	PromptWindow       int           `json:"promptWindow" envconfig:"PROMPT_WINDOW"`
	RequestTimeout     time.Duration `json:"requestTimeout" envconfig:"REQUEST_TIMEOUT"`
	DefaultPersonality string        `json:"defaultPersonality" envconfig:"DEFAULT_PERSONALITY"`
}

// ---------------------------------------------------------------------------
// Voice – transcription and synthesis behaviour
// ---------------------------------------------------------------------------

// VoiceConfig groups speech-service settings.
type VoiceConfig struct {
	Name         string `json:"name" envconfig:"VOICE"`
	TTSModel     string `json:"ttsModel" envconfig:"TTS_MODEL"`
	WhisperModel string `json:"whisperModel" envconfig:"WHISPER_MODEL"`
	FFmpegPath   string `json:"ffmpegPath" envconfig:"FFMPEG_PATH"`
	// VoiceReplies answers voice messages with synthesized speech instead of text.
	VoiceReplies bool `json:"voiceReplies" envconfig:"VOICE_REPLIES"`
}

// ---------------------------------------------------------------------------
// Channels – messaging integrations
// ---------------------------------------------------------------------------

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled     bool          `json:"enabled" envconfig:"TELEGRAM_ENABLED"`
	Token       string        `json:"token" envconfig:"TELEGRAM_TOKEN"`
	APIBase     string        `json:"apiBase,omitempty" envconfig:"TELEGRAM_API_BASE"`
	AllowFrom   []string      `json:"allowFrom"`
	PollTimeout time.Duration `json:"pollTimeout" envconfig:"TELEGRAM_POLL_TIMEOUT"`
}

// SlackConfig configures the Slack channel (socket mode).
type SlackConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"SLACK_ENABLED"`
	BotToken  string   `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	AppToken  string   `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
	AllowFrom []string `json:"allowFrom"`
}

// WhatsAppConfig configures the native WhatsApp channel.
type WhatsAppConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"WHATSAPP_ENABLED"`
	AllowFrom []string `json:"allowFrom"`
}

// ---------------------------------------------------------------------------
// Providers – completion service API keys & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains completion-service provider configurations.
type ProvidersConfig struct {
	OpenAI ProviderConfig `json:"openai"`
}

// ProviderConfig contains settings for a single provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Gateway – liveness HTTP server
// ---------------------------------------------------------------------------

// GatewayConfig contains gateway server settings.
type GatewayConfig struct {
	Host string `json:"host" envconfig:"HOST"`
	Port int    `json:"port" envconfig:"PORT"`
}

// ---------------------------------------------------------------------------
// Audit – conversation audit trail via Kafka
// ---------------------------------------------------------------------------

// AuditConfig configures the optional Kafka audit publisher.
type AuditConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// DefaultPersonality is the system instruction used for users who never set one.
const DefaultPersonality = "You are a helpful assistant."

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.voxrelay",
		},
		Model: ModelConfig{
			Name:               "gpt-4o",
			MaxTokens:          4096,
			Temperature:        0.7,
			PromptWindow:       40,
			RequestTimeout:     120 * time.Second,
			DefaultPersonality: DefaultPersonality,
		},
		Voice: VoiceConfig{
			Name:         "nova",
			TTSModel:     "tts-1",
			WhisperModel: "whisper-1",
			VoiceReplies: false,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				PollTimeout: 30 * time.Second,
			},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Audit: AuditConfig{
			Enabled: false,
			Topic:   "voxrelay.audit",
		},
	}
}
