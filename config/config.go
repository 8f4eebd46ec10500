// Package config loads wgsync configuration from a JSON file or straight
// from the environment. File values may reference environment variables with
// ${VAR} syntax, which keeps secrets out of the file itself.
package config

import (
	"encoding/json"
	"os"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Withings holds the OAuth application credentials for the Withings API.
type Withings struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	CallbackURL  string `json:"callback_url,omitempty"`
}

// Garmin holds the Garmin Connect account credentials.
type Garmin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Config is the full application configuration.
type Config struct {
	Withings Withings `json:"withings"`
	Garmin   Garmin   `json:"garmin"`

	// TokenPath and SessionPath are where per-user API state is persisted
	// between runs.
	TokenPath   string `json:"token_path,omitempty"`
	SessionPath string `json:"session_path,omitempty"`

	// LogDir, when set, adds a rotating log file next to console output.
	LogDir string `json:"log_dir,omitempty"`
}

const (
	defaultTokenPath   = ".withings_tokens.json"
	defaultSessionPath = ".garmin_session.json"
	defaultCallbackURL = "http://localhost:8080/callback"
)

// Read loads configuration from a JSON file, substituting ${VAR} references
// from the environment before parsing.
func Read(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	cfg := &Config{}
	if err := json.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// FromEnv builds configuration from environment variables alone, the way
// container deployments usually run.
func FromEnv() *Config {
	cfg := &Config{
		Withings: Withings{
			ClientID:     os.Getenv("WITHINGS_CLIENT_ID"),
			ClientSecret: os.Getenv("WITHINGS_CLIENT_SECRET"),
			CallbackURL:  os.Getenv("WITHINGS_CALLBACK_URL"),
		},
		Garmin: Garmin{
			Username: os.Getenv("GARMIN_USERNAME"),
			Password: os.Getenv("GARMIN_PASSWORD"),
		},
		LogDir: os.Getenv("WGSYNC_LOG_DIR"),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.TokenPath == "" {
		c.TokenPath = defaultTokenPath
	}
	if c.SessionPath == "" {
		c.SessionPath = defaultSessionPath
	}
	if c.Withings.CallbackURL == "" {
		c.Withings.CallbackURL = defaultCallbackURL
	}
}
