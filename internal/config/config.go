package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the onboarding control plane.
type Config struct {
	Port      int
	Version   string
	LogLevel  string
	State     StateConfig
	Broker    BrokerConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
}

// StateConfig locates the persisted configuration document and agent files.
type StateConfig struct {
	Dir           string // root state directory, e.g. ~/.openclaw
	ConfigPath    string // persisted configuration document
	WorkspaceRoot string // parent of every agent workspace
}

// BrokerConfig tunes the connection orchestrator.
type BrokerConfig struct {
	BaseURL         string
	MaxAppsPerBatch int
	DefaultEntityID string
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	// SampleRatio is the fraction of root spans kept, 0 to 1.
	SampleRatio float64
	// Insecure disables TLS to the collector.
	Insecure bool
}

type AuthConfig struct {
	// Comma-separated API keys; empty disables auth on /rpc.
	APIKeys string
}

// Keys splits APIKeys on commas, dropping blanks.
func (a AuthConfig) Keys() []string {
	var keys []string
	for _, k := range strings.Split(a.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	stateDir := envStr("OPENCLAW_STATE_DIR", defaultStateDir())
	return &Config{
		Port:     envInt("OPENCLAW_PORT", 18790),
		Version:  envStr("OPENCLAW_VERSION", "0.1.0"),
		LogLevel: envStr("OPENCLAW_LOG_LEVEL", "info"),
		State: StateConfig{
			Dir:           stateDir,
			ConfigPath:    envStr("OPENCLAW_CONFIG_PATH", filepath.Join(stateDir, "openclaw.json")),
			WorkspaceRoot: envStr("OPENCLAW_WORKSPACE_ROOT", filepath.Join(stateDir, "workspaces")),
		},
		Broker: BrokerConfig{
			BaseURL:         envStr("COMPOSIO_BASE_URL", ""),
			MaxAppsPerBatch: envInt("OPENCLAW_CONNECT_MAX_APPS", 20),
			DefaultEntityID: envStr("OPENCLAW_DEFAULT_ENTITY", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "openclaw-onboard"),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Insecure:     envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Auth: AuthConfig{
			APIKeys: envStr("OPENCLAW_API_KEYS", ""),
		},
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".openclaw"
	}
	return filepath.Join(home, ".openclaw")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
