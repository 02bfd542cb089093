package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Mockingbird environment variables.
const EnvPrefix = "MOCKINGBIRD_"

// Config holds all application configuration. Secrets (API tokens) are
// loaded exclusively from environment variables and never appear in the
// config file.
type Config struct {
	BackendURL            string `yaml:"backend_url"`
	MediaGatewayURL       string `yaml:"media_gateway_url"`
	PushGatewayURL        string `yaml:"push_gateway_url"`
	ListenAddr            string `yaml:"listen_addr"`
	DBPath                string `yaml:"db_path"`
	CaptureDir            string `yaml:"capture_dir"`
	JournalDir            string `yaml:"journal_dir"`
	UserName              string `yaml:"user_name"`
	QuestionBudget        int    `yaml:"question_budget"`
	HeartbeatInterval     string `yaml:"heartbeat_interval"`
	ReconnectMaxAttempts  int    `yaml:"reconnect_max_attempts"`
	MicSampleRate         int    `yaml:"mic_sample_rate"`
	MicSampleRates        []int  `yaml:"mic_sample_rates"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secret — env var only, never serialized to YAML.
	APIToken string `yaml:"-"`
}

func defaults() Config {
	return Config{
		BackendURL:            "https://api.mockingbird.dev",
		MediaGatewayURL:       "wss://media.mockingbird.dev/rtc",
		PushGatewayURL:        "wss://push.mockingbird.dev/ws",
		ListenAddr:            "127.0.0.1:8791",
		DBPath:                "data/mockingbird.db",
		CaptureDir:            "data/capture",
		JournalDir:            "data/journal",
		QuestionBudget:        60,
		HeartbeatInterval:     "30s",
		ReconnectMaxAttempts:  10,
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100, 32000, 24000},
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedHeartbeatInterval returns HeartbeatInterval as a time.Duration,
// falling back to 30s if the value is invalid.
func (c *Config) ParsedHeartbeatInterval() time.Duration {
	d, err := time.ParseDuration(c.HeartbeatInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv(EnvPrefix + "MEDIA_GATEWAY_URL"); v != "" {
		cfg.MediaGatewayURL = v
	}
	if v := os.Getenv(EnvPrefix + "PUSH_GATEWAY_URL"); v != "" {
		cfg.PushGatewayURL = v
	}
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "CAPTURE_DIR"); v != "" {
		cfg.CaptureDir = v
	}
	if v := os.Getenv(EnvPrefix + "JOURNAL_DIR"); v != "" {
		cfg.JournalDir = v
	}
	if v := os.Getenv(EnvPrefix + "USER_NAME"); v != "" {
		cfg.UserName = v
	}
	if v := os.Getenv(EnvPrefix + "QUESTION_BUDGET"); v != "" {
		if budget, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && budget > 0 {
			cfg.QuestionBudget = budget
		}
	}
	if v := os.Getenv(EnvPrefix + "HEARTBEAT_INTERVAL"); v != "" {
		cfg.HeartbeatInterval = v
	}
	if v := os.Getenv(EnvPrefix + "RECONNECT_MAX_ATTEMPTS"); v != "" {
		if attempts, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && attempts > 0 {
			cfg.ReconnectMaxAttempts = attempts
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.APIToken = os.Getenv(EnvPrefix + "API_TOKEN")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.APIToken == "" {
		warnings = append(warnings, "API token not configured — backend calls and result notifications are disabled. Set "+EnvPrefix+"API_TOKEN.")
	}
	if _, err := time.ParseDuration(cfg.HeartbeatInterval); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid heartbeat_interval %q — using default 30s.", cfg.HeartbeatInterval))
	}
	if cfg.QuestionBudget <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid question_budget %d — using default 60.", cfg.QuestionBudget))
		cfg.QuestionBudget = 60
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
