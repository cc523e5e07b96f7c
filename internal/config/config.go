package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL              string `yaml:"base_url"`
	SocketURL            string `yaml:"socket_url"`
	StatePath            string `yaml:"state_path"`
	EnableSound          bool   `yaml:"enable_sound"`
	EnableDesktopNotify  bool   `yaml:"enable_desktop_notify"`
	OpenAIAPIKey         string `yaml:"openai_api_key"`
	TokenCheckIntervalMS int    `yaml:"token_check_interval_ms"`
}

func Load() *Config {
	cfg := &Config{
		BaseURL:              getEnv("SPHERE_BASE_URL", "http://localhost:3001/api"),
		SocketURL:            getEnv("SPHERE_SOCKET_URL", ""),
		StatePath:            getEnv("SPHERE_STATE_PATH", defaultStatePath()),
		EnableSound:          getEnvBool("SPHERE_SOUND", true),
		EnableDesktopNotify:  getEnvBool("SPHERE_DESKTOP_NOTIFY", true),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		TokenCheckIntervalMS: 60_000,
	}
	if cfg.SocketURL == "" {
		cfg.SocketURL = deriveSocketURL(cfg.BaseURL)
	}
	return cfg
}

// LoadFile merges a YAML config file over the env-derived defaults.
// A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.SocketURL == "" {
		cfg.SocketURL = deriveSocketURL(cfg.BaseURL)
	}
	return cfg, nil
}

// deriveSocketURL maps the REST base URL onto the websocket endpoint.
func deriveSocketURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/socket"
	return u.String()
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sphere.db"
	}
	return filepath.Join(home, ".sphere", "state.db")
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
