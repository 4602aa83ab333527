// Package config provides persistent configuration for the salahnow CLI.
//
// Configuration is stored as YAML at ~/.config/salahnow/config.yaml
// (XDG-compliant). The merge priority is: CLI flags > environment
// (SALAHNOW_*, optionally from a .env file) > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "salahnow"
	configFileName = "config.yaml"
	envFileName    = ".env"

	// EnvPrefix prefixes every environment override, e.g. SALAHNOW_CITY.
	EnvPrefix = "SALAHNOW_"
)

// ValidKeys lists all config keys that can be set via `config set`.
var ValidKeys = []string{
	"city", "country", "country_code",
	"latitude", "longitude",
	"district_id",
	"source",
	"method", "school",
	"time_format",
	"countdown_mode",
	"cache_backend", "cache_dir",
	"redis_address", "redis_username", "redis_password",
	"log_level",
	"district_base_url", "coordinate_base_url",
}

// Config holds all user-configurable settings.
// Zero values mean "not set" (use defaults or auto-detect).
type Config struct {
	City        string  `yaml:"city,omitempty"`
	Country     string  `yaml:"country,omitempty"`
	CountryCode string  `yaml:"country_code,omitempty" validate:"omitempty,len=2,alpha"`
	Latitude    float64 `yaml:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude   float64 `yaml:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	DistrictID  string  `yaml:"district_id,omitempty" validate:"omitempty,numeric"`

	Source        string `yaml:"source,omitempty" validate:"omitempty,oneof=diyanet mwl"`
	Method        *int   `yaml:"method,omitempty" validate:"omitempty,min=0,max=23"` // pointer so we can distinguish "not set" from 0
	School        *int   `yaml:"school,omitempty" validate:"omitempty,oneof=0 1"`
	TimeFormat    string `yaml:"time_format,omitempty" validate:"omitempty,oneof=12h 24h"`
	CountdownMode string `yaml:"countdown_mode,omitempty" validate:"omitempty,oneof=next-prayer pre-dawn sunset"`

	CacheBackend  string `yaml:"cache_backend,omitempty" validate:"omitempty,oneof=file sqlite redis none"`
	CacheDir      string `yaml:"cache_dir,omitempty"`
	RedisAddress  string `yaml:"redis_address,omitempty" validate:"omitempty,hostname_port"`
	RedisUsername string `yaml:"redis_username,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`

	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	DistrictBaseURL   string `yaml:"district_base_url,omitempty" validate:"omitempty,url"`
	CoordinateBaseURL string `yaml:"coordinate_base_url,omitempty" validate:"omitempty,url"`
}

// Defaults returns a Config with all default values applied.
func Defaults() Config {
	return Config{
		Source:        "diyanet",
		TimeFormat:    "24h",
		CountdownMode: "next-prayer",
		CacheBackend:  "file",
		LogLevel:      "warn",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	key := fe.Field()
	rv := reflect.ValueOf(fe.Value())
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	val := fmt.Sprint(rv)
	switch fe.Tag() {
	case "min", "max":
		return fmt.Sprintf("invalid %s %q: out of range", key, val)
	case "oneof":
		return fmt.Sprintf("invalid %s %q: must be one of %s", key, val, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("invalid %s %q: must be a URL", key, val)
	case "hostname_port":
		return fmt.Sprintf("invalid %s %q: must be host:port", key, val)
	}
	return fmt.Sprintf("invalid %s %q: failed %s", key, val, fe.Tag())
}

// Dir returns the config directory path.
// It respects $XDG_CONFIG_HOME if set, otherwise uses ~/.config/.
func Dir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file, then applies .env files and SALAHNOW_*
// environment overrides.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}

	if err := LoadEnvFiles(filepath.Join(filepath.Dir(path), envFileName), envFileName); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads only the config file. Commands that save the config use it
// so environment overrides are never written back.
func LoadFile() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from a specific file path.
// If the file does not exist, it returns an empty Config (not an error).
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadEnvFiles loads each existing .env file into the process environment.
// Variables already set are not overridden; missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// ApplyEnv overrides keys from SALAHNOW_* variables.
func (c *Config) ApplyEnv() error {
	for _, key := range ValidKeys {
		v, ok := os.LookupEnv(EnvName(key))
		if !ok || v == "" {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return fmt.Errorf("%s: %w", EnvName(key), err)
		}
	}
	return nil
}

// Save writes the config to disk, creating the directory if needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to a specific file path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold a Redis password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Reset deletes the config file.
func Reset() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return ResetAt(path)
}

// ResetAt deletes the config file at a specific path.
func ResetAt(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// Set sets a config key to the given value.
// The value is parsed into the field's type and validated; on error c is
// left unchanged.
func (c *Config) Set(key, value string) error {
	next := *c
	value = strings.TrimSpace(value)

	switch key {
	case "city":
		next.City = value
	case "country":
		next.Country = value
	case "country_code":
		next.CountryCode = strings.ToUpper(value)
	case "latitude":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: must be a number", value)
		}
		next.Latitude = v
	case "longitude":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: must be a number", value)
		}
		next.Longitude = v
	case "district_id":
		next.DistrictID = value
	case "source":
		next.Source = strings.ToLower(value)
	case "method":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid method %q: must be an integer", value)
		}
		next.Method = &v
	case "school":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid school %q: must be an integer", value)
		}
		next.School = &v
	case "time_format":
		next.TimeFormat = value
	case "countdown_mode":
		next.CountdownMode = value
	case "cache_backend":
		next.CacheBackend = value
	case "cache_dir":
		next.CacheDir = value
	case "redis_address":
		next.RedisAddress = value
	case "redis_username":
		next.RedisUsername = value
	case "redis_password":
		next.RedisPassword = value
	case "log_level":
		next.LogLevel = strings.ToLower(value)
	case "district_base_url":
		next.DistrictBaseURL = value
	case "coordinate_base_url":
		next.CoordinateBaseURL = value
	default:
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys, ", "))
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Get returns the string value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "city":
		return c.City, nil
	case "country":
		return c.Country, nil
	case "country_code":
		return c.CountryCode, nil
	case "latitude":
		return formatCoord(c.Latitude), nil
	case "longitude":
		return formatCoord(c.Longitude), nil
	case "district_id":
		return c.DistrictID, nil
	case "source":
		return c.Source, nil
	case "method":
		return formatOptional(c.Method), nil
	case "school":
		return formatOptional(c.School), nil
	case "time_format":
		return c.TimeFormat, nil
	case "countdown_mode":
		return c.CountdownMode, nil
	case "cache_backend":
		return c.CacheBackend, nil
	case "cache_dir":
		return c.CacheDir, nil
	case "redis_address":
		return c.RedisAddress, nil
	case "redis_username":
		return c.RedisUsername, nil
	case "redis_password":
		return c.RedisPassword, nil
	case "log_level":
		return c.LogLevel, nil
	case "district_base_url":
		return c.DistrictBaseURL, nil
	case "coordinate_base_url":
		return c.CoordinateBaseURL, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// IsSecret reports whether key should be masked when displayed.
func IsSecret(key string) bool {
	return key == "redis_password"
}

func formatCoord(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// MethodOrDefault returns the method value, falling back to the given default.
func (c *Config) MethodOrDefault(def int) int {
	if c.Method != nil {
		return *c.Method
	}
	return def
}

// SchoolOrDefault returns the school value, falling back to the given default.
func (c *Config) SchoolOrDefault(def int) int {
	if c.School != nil {
		return *c.School
	}
	return def
}
