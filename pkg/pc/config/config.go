package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string         `yaml:"env"` // "dev" or "prod"
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Offers   OffersConfig   `yaml:"offers"`
	Forms    FormsConfig    `yaml:"forms"`
	Attempts AttemptsConfig `yaml:"attempts"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// APIConfig points at the remote patient service that receives submissions.
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	CreatePath string `yaml:"create_path"`
	Timeout    string `yaml:"timeout"`
}

// CreateURL joins BaseURL and CreatePath.
func (a APIConfig) CreateURL() string {
	base := strings.TrimSuffix(a.BaseURL, "/")
	path := a.CreatePath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// TimeoutDuration parses Timeout, falling back to 10s.
func (a APIConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

type OffersConfig struct {
	Path string `yaml:"path"` // empty: embedded catalog
}

type FormsConfig struct {
	RateLimit      int      `yaml:"rate_limit"` // submissions per IP per minute
	AllowedOrigins []string `yaml:"allowed_origins"`
	ViewTTL        string   `yaml:"view_ttl"`
}

// ViewTTLDuration parses ViewTTL, falling back to 30m.
func (f FormsConfig) ViewTTLDuration() time.Duration {
	d, err := time.ParseDuration(f.ViewTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// AttemptsConfig configures the submission attempt log.
type AttemptsConfig struct {
	// DigestKey keys the phone digest. Empty: a random key is generated once
	// and kept in the database.
	DigestKey string `yaml:"digest_key"`
}

// Load builds the configuration from defaults, an optional config.yaml in the
// working directory and CARE_* environment variables, in that order.
func Load() *Config {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit YAML path.
func LoadFile(path string) *Config {
	env := os.Getenv("CARE_ENV")
	if env == "" {
		env = "dev"
	}

	var dbPath string
	if env == "dev" {
		dbPath = "_workspace/db/offers.db"
	} else {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".careoffers", "offers.db")
	}

	cfg := &Config{
		Env:      env,
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: dbPath},
		Log:      LogConfig{Level: "info"},
		API: APIConfig{
			BaseURL:    "http://localhost:8085",
			CreatePath: "/ht/create",
			Timeout:    "10s",
		},
		Forms: FormsConfig{RateLimit: 10, ViewTTL: "30m"},
	}

	if data, err := os.ReadFile(path); err == nil {
		yaml.Unmarshal(data, cfg)
	}

	if v := os.Getenv("CARE_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CARE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CARE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CARE_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CARE_API_CREATE_PATH"); v != "" {
		cfg.API.CreatePath = v
	}
	if v := os.Getenv("CARE_API_TIMEOUT"); v != "" {
		cfg.API.Timeout = v
	}
	if v := os.Getenv("CARE_OFFERS_PATH"); v != "" {
		cfg.Offers.Path = v
	}
	if v := os.Getenv("CARE_FORMS_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Forms.RateLimit = n
		}
	}
	if v := os.Getenv("CARE_FORMS_ALLOWED_ORIGINS"); v != "" {
		cfg.Forms.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Forms.AllowedOrigins = append(cfg.Forms.AllowedOrigins, o)
			}
		}
	}
	if v := os.Getenv("CARE_VIEW_TTL"); v != "" {
		cfg.Forms.ViewTTL = v
	}
	if v := os.Getenv("CARE_ATTEMPTS_DIGEST_KEY"); v != "" {
		cfg.Attempts.DigestKey = v
	}

	return cfg
}
