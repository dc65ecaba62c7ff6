package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"voxbridge/internal/logging"
)

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DuckConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Factor    float64  `yaml:"factor"`
	MinVolume int      `yaml:"min_volume"`
	FadeMS    int      `yaml:"fade_ms"`
	SelfNames []string `yaml:"self_names"`
}

type CaptureConfig struct {
	Backend    string            `yaml:"backend"` // arecord, portaudio
	Binary     string            `yaml:"binary"`
	Device     string            `yaml:"device"`
	MinBytes   int64             `yaml:"min_bytes"`
	MaxSeconds int               `yaml:"max_seconds"`
	TempDir    string            `yaml:"temp_dir"`
	BusyPolicy string            `yaml:"busy_policy"` // queue, reject
	Env        map[string]string `yaml:"env"`
	CuePath    string            `yaml:"cue_path"`
	Duck       DuckConfig        `yaml:"duck"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	Proxy  string `yaml:"proxy"`
}

type TranscribeConfig struct {
	Engine        string       `yaml:"engine"` // whisper, openai, exec, mock
	ModelPath     string       `yaml:"model_path"`
	Language      string       `yaml:"language"`
	Threads       int          `yaml:"threads"`
	InitialPrompt string       `yaml:"initial_prompt"` // whisper and openai
	BeamSize      int          `yaml:"beam_size"`      // whisper; 0 = greedy
	Command       string       `yaml:"command"`
	MinBytes      int64        `yaml:"min_bytes"`
	OpenAI        OpenAIConfig `yaml:"openai"`
}

type HistoryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Capture    CaptureConfig    `yaml:"capture"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	History    HistoryConfig    `yaml:"history"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 5555,
		},
		Log: LogConfig{
			Level: "info",
		},
		Capture: CaptureConfig{
			Backend:    "arecord",
			Binary:     "arecord",
			Device:     "pulse",
			MinBytes:   1000,
			MaxSeconds: 30,
			BusyPolicy: "queue",
			Duck: DuckConfig{
				Factor:    0.3,
				MinVolume: 10,
				FadeMS:    150,
				SelfNames: []string{"voxbridge"},
			},
		},
		Transcribe: TranscribeConfig{
			Engine:    "whisper",
			ModelPath: "models/ggml-base.en.bin",
			Language:  "en",
			MinBytes:  1000,
			OpenAI: OpenAIConfig{
				Model: "whisper-1",
			},
		},
		History: HistoryConfig{
			Enabled:    false,
			Path:       "./data/voxbridge.db",
			MaxEntries: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads defaults, then the optional YAML file at path, then environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyFlags layers command-line overrides on cfg and validates the result.
// Empty values leave cfg untouched.
func ApplyFlags(cfg *Config, addr, level string) error {
	if level != "" {
		cfg.Log.Level = level
	}
	if addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("--addr %q: %w", addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("--addr %q: invalid port", addr)
		}
		cfg.HTTP.Bind, cfg.HTTP.Port = host, p
	}
	return Validate(*cfg)
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Bind, c.HTTP.Port)
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.HTTP.Bind, "VOXBRIDGE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOXBRIDGE_HTTP_PORT")
	overrideString(&cfg.Log.Level, "VOXBRIDGE_LOG_LEVEL")
	overrideString(&cfg.Capture.Backend, "VOXBRIDGE_CAPTURE_BACKEND")
	overrideString(&cfg.Capture.Binary, "VOXBRIDGE_CAPTURE_BINARY")
	overrideString(&cfg.Capture.Device, "VOXBRIDGE_CAPTURE_DEVICE")
	overrideInt64(&cfg.Capture.MinBytes, "VOXBRIDGE_CAPTURE_MIN_BYTES")
	overrideInt(&cfg.Capture.MaxSeconds, "VOXBRIDGE_CAPTURE_MAX_SECONDS")
	overrideString(&cfg.Capture.TempDir, "VOXBRIDGE_CAPTURE_TEMP_DIR")
	overrideString(&cfg.Capture.BusyPolicy, "VOXBRIDGE_CAPTURE_BUSY_POLICY")
	overrideString(&cfg.Capture.CuePath, "VOXBRIDGE_CAPTURE_CUE_PATH")
	overrideBool(&cfg.Capture.Duck.Enabled, "VOXBRIDGE_CAPTURE_DUCK_ENABLED")
	overrideFloat(&cfg.Capture.Duck.Factor, "VOXBRIDGE_CAPTURE_DUCK_FACTOR")
	overrideInt(&cfg.Capture.Duck.FadeMS, "VOXBRIDGE_CAPTURE_DUCK_FADE_MS")
	overrideString(&cfg.Transcribe.Engine, "VOXBRIDGE_TRANSCRIBE_ENGINE")
	overrideString(&cfg.Transcribe.ModelPath, "VOXBRIDGE_TRANSCRIBE_MODEL_PATH")
	overrideString(&cfg.Transcribe.Language, "VOXBRIDGE_TRANSCRIBE_LANGUAGE")
	overrideInt(&cfg.Transcribe.Threads, "VOXBRIDGE_TRANSCRIBE_THREADS")
	overrideString(&cfg.Transcribe.InitialPrompt, "VOXBRIDGE_TRANSCRIBE_INITIAL_PROMPT")
	overrideInt(&cfg.Transcribe.BeamSize, "VOXBRIDGE_TRANSCRIBE_BEAM_SIZE")
	overrideString(&cfg.Transcribe.Command, "VOXBRIDGE_TRANSCRIBE_COMMAND")
	overrideInt64(&cfg.Transcribe.MinBytes, "VOXBRIDGE_TRANSCRIBE_MIN_BYTES")
	overrideString(&cfg.Transcribe.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Transcribe.OpenAI.APIKey, "VOXBRIDGE_OPENAI_API_KEY")
	overrideString(&cfg.Transcribe.OpenAI.Model, "VOXBRIDGE_OPENAI_MODEL")
	overrideString(&cfg.Transcribe.OpenAI.Proxy, "VOXBRIDGE_OPENAI_PROXY")
	overrideBool(&cfg.History.Enabled, "VOXBRIDGE_HISTORY_ENABLED")
	overrideString(&cfg.History.Path, "VOXBRIDGE_HISTORY_PATH")
	overrideInt(&cfg.History.MaxEntries, "VOXBRIDGE_HISTORY_MAX_ENTRIES")
	overrideBool(&cfg.Metrics.Enabled, "VOXBRIDGE_METRICS_ENABLED")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func Validate(cfg Config) error {
	if !IsLoopback(cfg.HTTP.Bind) {
		return fmt.Errorf("http.bind must be a loopback address, got %q", cfg.HTTP.Bind)
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Capture.Backend {
	case "arecord":
		if strings.TrimSpace(cfg.Capture.Binary) == "" {
			return errors.New("capture.binary must not be empty for the arecord backend")
		}
	case "portaudio":
	default:
		return fmt.Errorf("capture.backend must be arecord or portaudio, got %q", cfg.Capture.Backend)
	}
	if cfg.Capture.MaxSeconds <= 0 {
		return errors.New("capture.max_seconds must be positive")
	}
	if cfg.Capture.MinBytes < 0 {
		return errors.New("capture.min_bytes must not be negative")
	}
	switch cfg.Capture.BusyPolicy {
	case "queue", "reject":
	default:
		return fmt.Errorf("capture.busy_policy must be queue or reject, got %q", cfg.Capture.BusyPolicy)
	}
	if cfg.Capture.Duck.Enabled && (cfg.Capture.Duck.Factor < 0 || cfg.Capture.Duck.Factor > 1) {
		return errors.New("capture.duck.factor must be between 0 and 1")
	}
	switch cfg.Transcribe.Engine {
	case "whisper":
		if cfg.Transcribe.ModelPath == "" {
			return errors.New("transcribe.model_path must not be empty for the whisper engine")
		}
	case "exec":
		if strings.TrimSpace(cfg.Transcribe.Command) == "" {
			return errors.New("transcribe.command must not be empty for the exec engine")
		}
	case "openai":
		if cfg.Transcribe.OpenAI.APIKey == "" {
			return errors.New("OPENAI_API_KEY not set")
		}
	case "mock":
	default:
		return fmt.Errorf("transcribe.engine must be whisper, openai, exec or mock, got %q", cfg.Transcribe.Engine)
	}
	if cfg.Transcribe.BeamSize < 0 {
		return errors.New("transcribe.beam_size must not be negative")
	}
	if cfg.Transcribe.MinBytes < 0 {
		return errors.New("transcribe.min_bytes must not be negative")
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return errors.New("history.path must not be empty when history is enabled")
	}
	return nil
}

// IsLoopback reports whether bind only accepts local connections.
func IsLoopback(bind string) bool {
	if strings.EqualFold(bind, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(bind, "[]"))
	return ip != nil && ip.IsLoopback()
}
