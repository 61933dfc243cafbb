// Package config provides configuration loading and structs for the Agent Lee server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Assets  AssetsConfig  `yaml:"assets"`
	Search  SearchConfig  `yaml:"search"`
	Prefs   PrefsConfig   `yaml:"prefs"`
	Models  ModelsConfig  `yaml:"models"`
	Answers AnswersConfig `yaml:"answers"`
	Speech  SpeechConfig  `yaml:"speech"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AssetFile names one evidence file to ingest. ID becomes the file-level
// document id; rows of tabular files get "<id>::row::<n>".
type AssetFile struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

// AssetsConfig describes where evidence files come from. When BaseURL is set,
// files are fetched over HTTP from that static root; otherwise they are read
// from DataDir. Watch enables reload on local file changes.
type AssetsConfig struct {
	BaseURL string      `yaml:"base_url"`
	DataDir string      `yaml:"data_dir"`
	Files   []AssetFile `yaml:"files"`
	Watch   bool        `yaml:"watch"`
}

// SearchConfig holds evidence retrieval settings.
type SearchConfig struct {
	Backend      string `yaml:"backend"` // "memory" (default) or "bleve"
	DefaultLimit int    `yaml:"default_limit"`
	MaxLimit     int    `yaml:"max_limit"`
}

// PrefsConfig holds the preference store location.
type PrefsConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RemoteModelConfig configures the remote chat-completion client.
type RemoteModelConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	SiteURL     string `yaml:"site_url"`
	SiteTitle   string `yaml:"site_title"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ModelsConfig configures the ensemble's model clients.
type ModelsConfig struct {
	Gemma        RemoteModelConfig `yaml:"gemma"`
	LlamaEnabled *bool             `yaml:"llama_enabled"`
	Phi3Enabled  *bool             `yaml:"phi3_enabled"`
}

// InsightFamily is one keyword family for the offline answer: when any of
// Terms appears in the retrieved evidence, Insight is emitted as a bullet.
type InsightFamily struct {
	Name    string   `yaml:"name"`
	Terms   []string `yaml:"terms"`
	Insight string   `yaml:"insight"`
}

// AnswersConfig tunes offline answer generation.
type AnswersConfig struct {
	Families     []InsightFamily `yaml:"families"`
	PreviewChars int             `yaml:"preview_chars"`
}

// NativeSpeechConfig configures the local OS synthesizer path.
type NativeSpeechConfig struct {
	Command      string `yaml:"command"` // synthesizer binary, e.g. "espeak" or "say"
	MaxChunk     int    `yaml:"max_chunk"`
	StartGuardMS int    `yaml:"start_guard_ms"`
}

// AzureSpeechConfig configures the Azure TTS provider.
type AzureSpeechConfig struct {
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	Voice    string `yaml:"voice"`
	Style    string `yaml:"style"`
	MaxChunk int    `yaml:"max_chunk"`
}

// GeminiSpeechConfig configures the Gemini TTS provider.
type GeminiSpeechConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	MaxChunk int    `yaml:"max_chunk"`
}

// OrpheusSpeechConfig configures a self-hosted Orpheus TTS proxy.
type OrpheusSpeechConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	MaxChunk int    `yaml:"max_chunk"`
}

// SpeechConfig holds all speech engine settings. ProviderOrder is the cloud
// failover policy when the native engine fails and fallback is allowed.
type SpeechConfig struct {
	DefaultEngine     string              `yaml:"default_engine"`
	EngineLock        bool                `yaml:"engine_lock"`
	FallbackOnFailure bool                `yaml:"fallback_on_failure"`
	ProviderOrder     []string            `yaml:"provider_order"`
	Voice             string              `yaml:"voice"`
	PlayerCommand     string              `yaml:"player_command"`
	Native            NativeSpeechConfig  `yaml:"native"`
	Azure             AzureSpeechConfig   `yaml:"azure"`
	Gemini            GeminiSpeechConfig  `yaml:"gemini"`
	Orpheus           OrpheusSpeechConfig `yaml:"orpheus"`
}

// Load reads and parses the config file at path, applies defaults, resolves
// environment overrides, and expands relative paths. Environment variables
// take precedence over file values; both are resolved exactly once here.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Prefs.DatabasePath = expandPath(cfg.Prefs.DatabasePath, configDir)
	if cfg.Assets.DataDir != "" {
		cfg.Assets.DataDir = expandPath(cfg.Assets.DataDir, configDir)
	}

	return &cfg, nil
}

// applyEnvOverrides layers process environment values over file values.
// Precedence (highest first): environment, config file, defaults.
func applyEnvOverrides(cfg *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Models.Gemma.APIKey, "OPENROUTER_API_KEY")
	set(&cfg.Models.Gemma.Model, "OPENROUTER_MODEL")
	set(&cfg.Speech.Azure.Key, "AZURE_TTS_KEY")
	set(&cfg.Speech.Azure.Region, "AZURE_TTS_REGION")
	set(&cfg.Speech.Azure.Voice, "AZURE_TTS_VOICE")
	set(&cfg.Speech.Gemini.APIKey, "GEMINI_API_KEY")
	set(&cfg.Speech.Gemini.Voice, "GEMINI_TTS_VOICE")
	set(&cfg.Speech.Orpheus.Endpoint, "ORPHEUS_API_URL")
	set(&cfg.Speech.Orpheus.APIKey, "ORPHEUS_API_KEY")
	set(&cfg.Speech.DefaultEngine, "AGENTLEE_TTS_DEFAULT_ENGINE")
	set(&cfg.Speech.Voice, "AGENTLEE_TTS_VOICE")
	if v := os.Getenv("AGENTLEE_TTS_ENGINE_LOCK"); v != "" {
		cfg.Speech.EngineLock = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("AGENTLEE_TTS_FALLBACK_ON_FAILURE"); v != "" {
		cfg.Speech.FallbackOnFailure = strings.EqualFold(v, "true")
	}
	// Placeholder keys from templated .env files are treated as unset.
	if strings.HasPrefix(strings.ToUpper(cfg.Speech.Azure.Key), "REPLACE_") {
		cfg.Speech.Azure.Key = ""
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
