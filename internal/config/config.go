package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cuecard/internal/domain"
)

const defaultSystemPrompt = "You are a live interview copilot. Answer the interviewer's current question in the first person, as the candidate, in plain spoken language."

// Config stores runtime configuration.
type Config struct {
	Deepgram   DeepgramConfig
	Audio      AudioConfig
	Vocabulary VocabularyConfig
	Session    SessionConfig
	Backend    BackendConfig
	Generation GenerationConfig
	Store      StoreConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	Container       string
	SampleRate      int
	Channels        int
	ChunkInterval   time.Duration
	DevicePoll      time.Duration
}

type VocabularyConfig struct {
	Path           string
	IterationLimit int
}

type SessionConfig struct {
	MinTranscriptChars int
	FlushTimeout       time.Duration
}

// BackendConfig points at the hosted collaborators. An empty BaseURL selects
// the local store.
type BackendConfig struct {
	BaseURL       string
	AuthToken     string
	CompletionURL string
}

type GenerationConfig struct {
	Provider     string
	Verbosity    string
	MaxLines     int
	SystemPrompt string
}

type StoreConfig struct {
	Path string
}

// Preferences is the user-editable preferences.yaml.
type Preferences struct {
	Provider     string `yaml:"provider"`
	Verbosity    string `yaml:"verbosity"`
	MaxLines     int    `yaml:"max_lines"`
	Language     string `yaml:"language"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Dir returns the cuecard configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".config", "cuecard"), nil
}

// Load resolves configuration from the environment, .env files, the
// preferences file and defaults, in that order of precedence.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "cuecard")

	if err := loadDotEnv(".env", filepath.Join(configDir, ".env")); err != nil {
		return Config{}, err
	}

	prefs, err := LoadPreferences(filepath.Join(configDir, "preferences.yaml"))
	if err != nil {
		return Config{}, err
	}

	vocabularyPath := strings.TrimSpace(os.Getenv("CUECARD_VOCABULARY_FILE"))
	if vocabularyPath == "" {
		vocabularyPath = firstExisting(
			filepath.Join(configDir, "vocabulary.yaml"),
			filepath.Join(configDir, "vocabulary.yml"),
		)
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    firstNonEmpty(os.Getenv("DEEPGRAM_LANGUAGE"), prefs.Language),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("CUECARD_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("CUECARD_AUDIO_INPUT_FORMAT", "pulse"),
			Container:       strings.ToLower(envOrDefault("CUECARD_AUDIO_CONTAINER", "s16le")),
			SampleRate:      envOrDefaultInt("CUECARD_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("CUECARD_CHANNELS", 1),
			ChunkInterval:   time.Duration(envOrDefaultInt("CUECARD_CHUNK_INTERVAL_MS", 250)) * time.Millisecond,
			DevicePoll:      time.Duration(envOrDefaultInt("CUECARD_DEVICE_POLL_MS", 2000)) * time.Millisecond,
		},
		Vocabulary: VocabularyConfig{
			Path:           vocabularyPath,
			IterationLimit: envOrDefaultInt("CUECARD_VOCABULARY_ITERATION_LIMIT", 30),
		},
		Session: SessionConfig{
			MinTranscriptChars: envOrDefaultInt("CUECARD_MIN_TRANSCRIPT_CHARS", 3),
			FlushTimeout:       time.Duration(envOrDefaultInt("CUECARD_FLUSH_TIMEOUT_MS", 2000)) * time.Millisecond,
		},
		Backend: BackendConfig{
			BaseURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("CUECARD_BACKEND_URL")), "/"),
			AuthToken:     strings.TrimSpace(os.Getenv("CUECARD_AUTH_TOKEN")),
			CompletionURL: strings.TrimSpace(os.Getenv("CUECARD_COMPLETION_URL")),
		},
		Generation: GenerationConfig{
			Provider:     firstNonEmpty(os.Getenv("CUECARD_PROVIDER"), prefs.Provider, "openai"),
			Verbosity:    firstNonEmpty(os.Getenv("CUECARD_VERBOSITY"), prefs.Verbosity, "balanced"),
			MaxLines:     envOrDefaultInt("CUECARD_MAX_LINES", prefs.MaxLines),
			SystemPrompt: firstNonEmpty(prefs.SystemPrompt, defaultSystemPrompt),
		},
		Store: StoreConfig{
			Path: envOrDefault("CUECARD_STORE_PATH", filepath.Join(home, ".local", "state", "cuecard", "cuecard.db")),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkInterval <= 0 {
		cfg.Audio.ChunkInterval = 250 * time.Millisecond
	}
	if cfg.Audio.DevicePoll <= 0 {
		cfg.Audio.DevicePoll = 2 * time.Second
	}
	switch cfg.Audio.Container {
	case "s16le", "webm":
	default:
		return Config{}, fmt.Errorf("%w: unsupported CUECARD_AUDIO_CONTAINER %q", domain.ErrConfiguration, cfg.Audio.Container)
	}
	if cfg.Vocabulary.IterationLimit <= 0 {
		cfg.Vocabulary.IterationLimit = 30
	}
	if cfg.Session.MinTranscriptChars <= 0 {
		cfg.Session.MinTranscriptChars = 3
	}
	if cfg.Session.FlushTimeout <= 0 {
		cfg.Session.FlushTimeout = 2 * time.Second
	}
	if cfg.Generation.MaxLines < 0 {
		cfg.Generation.MaxLines = 0
	}
	if cfg.Backend.CompletionURL == "" && cfg.Backend.BaseURL != "" {
		cfg.Backend.CompletionURL = cfg.Backend.BaseURL + "/api/generate/stream"
	}

	return cfg, nil
}

// Offline reports whether no hosted backend is configured.
func (c Config) Offline() bool {
	return c.Backend.BaseURL == ""
}

// LoadPreferences reads path. A missing file yields zero preferences.
func LoadPreferences(path string) (Preferences, error) {
	var prefs Preferences
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return prefs, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
	}
	return prefs, nil
}

// SavePreferences writes prefs to path, creating its directory.
func SavePreferences(path string, prefs Preferences) error {
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// loadDotEnv loads each existing file. Earlier files and the process
// environment win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: load %s: %v", domain.ErrConfiguration, p, err)
		}
	}
	return nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
