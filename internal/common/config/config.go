package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Storage backend modes.
const (
	ModoLocal  = "local"
	ModoRemoto = "remoto"
)

// Config is the full application configuration. Values come from an optional
// JSON file, with environment variables taking precedence, and are passed
// explicitly to the components that need them.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Database DatabaseConfig `json:"database"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Auth     AuthConfig     `json:"auth"`
	Log      LogConfig      `json:"log"`
}

type ServerConfig struct {
	Name     string `json:"name" env:"SERVER_NAME"`
	Host     string `json:"host" env:"SERVER_HOST"`
	HTTPPort int    `json:"http_port" env:"HTTP_PORT"`
}

// StorageConfig selects which backend the adapter constructs at startup.
type StorageConfig struct {
	Modo      string `json:"modo" env:"STORAGE_MODE"`        // local | remoto
	RutaLocal string `json:"ruta_local" env:"LOCAL_DB_PATH"` // SQLite file for the local backend
}

type DatabaseConfig struct {
	Host     string `json:"host" env:"DB_HOST"`
	Port     int    `json:"port" env:"DB_PORT"`
	User     string `json:"user" env:"DB_USER"`
	Password string `json:"password" env:"DB_PASSWORD"`
	Database string `json:"database" env:"DB_NAME"`
	MaxIdle  int    `json:"max_idle"`
	MaxOpen  int    `json:"max_open"`
}

type ConsulConfig struct {
	Host string `json:"host" env:"CONSUL_HOST"`
	Port int    `json:"port" env:"CONSUL_PORT"`
}

type JaegerConfig struct {
	Endpoint string  `json:"endpoint" env:"JAEGER_ENDPOINT"`
	Sampler  float64 `json:"sampler"` // sample rate 0.0-1.0
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `json:"issuer"`
	Audience  string `json:"audience"`
	TTLHours  int    `json:"ttl_hours"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL"`   // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT"` // json, text
	Output string `json:"output"`                  // stdout, file
	Path   string `json:"path"`
}

// Load reads the configuration file at path (defaults apply when it does not
// exist) and then overlays environment variables.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults + environment
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.Storage.Modo != ModoLocal && cfg.Storage.Modo != ModoRemoto {
		return nil, fmt.Errorf("storage.modo inválido: %q", cfg.Storage.Modo)
	}
	return cfg, nil
}

// defaultConfig is the development setup: local backend, verbose text logs.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "taller-service",
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Storage: StorageConfig{
			Modo:      ModoLocal,
			RutaLocal: "data/taller.db",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "tallerlink",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Auth: AuthConfig{
			Issuer:   "tallerlink",
			Audience: "taller-service",
			TTLHours: 24,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
	}
}
