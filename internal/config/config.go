package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor FINDMYSEAT_CONFIG is set
const DefaultPath = "config/config.yml"

type AppConfig struct {
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	GinMode  string `yaml:"gin_mode"`
	LogLevel string `yaml:"log_level"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "memory", "redis", "sqlite", "postgres"
	DSN    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OTPConfig struct {
	Duration string `yaml:"duration"`
	Length   int    `yaml:"length"`
}

type UIConfig struct {
	SuccessDisplay string `yaml:"success_display"`
}

type ConfigFile struct {
	App     AppConfig     `yaml:"app"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	OTP     OTPConfig     `yaml:"otp"`
	UI      UIConfig      `yaml:"ui"`
	Rules   Rules         `yaml:"rules"`
}

type Config struct {
	Env            string
	Port           string
	GinMode        string
	LogLevel       string
	APIBaseURL     string
	APITimeout     time.Duration
	StorageDriver  string
	StorageDSN     string
	StoragePrefix  string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	OTPDuration    time.Duration
	OTPLength      int
	SuccessDisplay time.Duration
	Rules          Rules
}

func defaults() ConfigFile {
	return ConfigFile{
		App:     AppConfig{Env: "development", Port: 8081, GinMode: "release", LogLevel: "info"},
		API:     APIConfig{BaseURL: "http://localhost:8000/api/v1", Timeout: "30s"},
		Storage: StorageConfig{Driver: "memory", Prefix: "findmyseat:"},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		OTP:     OTPConfig{Duration: "120s", Length: 6},
		UI:      UIConfig{SuccessDisplay: "5s"},
		Rules:   DefaultRules(),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads .env (if present), then the YAML file at path (if present), then
// applies environment overrides. A missing file falls back to defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = env("FINDMYSEAT_CONFIG", DefaultPath)
	}

	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	applyEnv(configFile)

	apiTimeout, err := time.ParseDuration(configFile.API.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid API timeout: %w", err)
	}

	otpDuration, err := time.ParseDuration(configFile.OTP.Duration)
	if err != nil {
		return nil, fmt.Errorf("invalid OTP duration: %w", err)
	}
	if otpDuration <= 0 {
		return nil, fmt.Errorf("invalid OTP duration: must be positive, got %s", otpDuration)
	}

	successDisplay, err := time.ParseDuration(configFile.UI.SuccessDisplay)
	if err != nil {
		return nil, fmt.Errorf("invalid success display duration: %w", err)
	}

	if err := configFile.Rules.Compile(); err != nil {
		return nil, err
	}

	switch configFile.Storage.Driver {
	case "memory", "redis", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", configFile.Storage.Driver)
	}

	return &Config{
		Env:            configFile.App.Env,
		Port:           fmt.Sprintf("%d", configFile.App.Port),
		GinMode:        configFile.App.GinMode,
		LogLevel:       configFile.App.LogLevel,
		APIBaseURL:     configFile.API.BaseURL,
		APITimeout:     apiTimeout,
		StorageDriver:  configFile.Storage.Driver,
		StorageDSN:     configFile.Storage.DSN,
		StoragePrefix:  configFile.Storage.Prefix,
		RedisAddr:      configFile.Redis.Addr,
		RedisPassword:  configFile.Redis.Password,
		RedisDB:        configFile.Redis.DB,
		OTPDuration:    otpDuration,
		OTPLength:      configFile.OTP.Length,
		SuccessDisplay: successDisplay,
		Rules:          configFile.Rules,
	}, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	config := defaults()

	bytes, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func applyEnv(c *ConfigFile) {
	c.App.Env = env("APP_ENV", c.App.Env)
	c.App.LogLevel = env("LOG_LEVEL", c.App.LogLevel)
	c.App.GinMode = env("GIN_MODE", c.App.GinMode)
	if port, err := strconv.Atoi(os.Getenv("FINDMYSEAT_PORT")); err == nil {
		c.App.Port = port
	}
	c.API.BaseURL = env("FINDMYSEAT_API_URL", c.API.BaseURL)
	c.Storage.Driver = env("FINDMYSEAT_STORAGE", c.Storage.Driver)
	c.Storage.DSN = env("FINDMYSEAT_STORAGE_DSN", c.Storage.DSN)
	c.Redis.Addr = env("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = env("REDIS_PASSWORD", c.Redis.Password)
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		c.Redis.DB = db
	}
}
