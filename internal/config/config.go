package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	APIURL    string        `json:"api_url" env:"API_URL"`
	DBPath    string        `json:"db_path" env:"DB_PATH"`
	LogPath   string        `json:"log_path" env:"LOG_PATH"`
	LogLevel  string        `json:"log_level" env:"LOG_LEVEL"`
	Timeout   time.Duration `json:"timeout" env:"TIMEOUT"`
	ServeAddr string        `json:"serve_addr" env:"SERVE_ADDR"`
	// Token seeds the session when set; it is never written back to disk.
	Token string `json:"-" env:"TOKEN"`
}

const envPrefix = "CLUTCHDESK_"

func Default() Config {
	return Config{
		APIURL:    "http://localhost:8080",
		LogLevel:  "info",
		Timeout:   30 * time.Second,
		ServeAddr: ":8080",
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "clutchdesk", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the config file at path, then applies CLUTCHDESK_* variables
// from the environment and from any .env file in the working directory.
// A missing config file yields the defaults.
func Load(path string) (Config, error) {
	config, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}
	if err := env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}

	config.fillPaths(path)
	return config, nil
}

func loadFile(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return config, nil
}

// fillPaths puts the database and log next to the config file unless set.
func (c *Config) fillPaths(configPath string) {
	dir := filepath.Dir(configPath)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "clutchdesk.db")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(dir, "clutchdesk.log")
	}
}

// MarshalJSON writes Timeout as a duration string such as "30s".
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return json.Marshal(struct {
		plain
		Timeout string `json:"timeout"`
	}{plain: plain(c), Timeout: c.Timeout.String()})
}

// UnmarshalJSON reads Timeout as a duration string. Integer nanoseconds from
// older files are still accepted.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		Timeout json.RawMessage `json:"timeout"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Timeout) == 0 || string(aux.Timeout) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(aux.Timeout, &text); err == nil {
		timeout, err := time.ParseDuration(text)
		if err != nil {
			return errors.Wrap(err, "parse timeout")
		}
		c.Timeout = timeout
		return nil
	}
	var nanos int64
	if err := json.Unmarshal(aux.Timeout, &nanos); err != nil {
		return errors.Errorf("timeout must be a duration such as \"30s\", got %s", aux.Timeout)
	}
	c.Timeout = time.Duration(nanos)
	return nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
