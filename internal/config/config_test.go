package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// tempConfigPath returns a path to a config file inside a temp directory.
func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func intPtr(v int) *int { return &v }

// clearEnv unsets every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range ValidKeys {
		t.Setenv(EnvName(k), "")
	}
}

// --- Defaults ---

func TestDefaults(t *testing.T) {
	want := Config{
		Source:        "diyanet",
		TimeFormat:    "24h",
		CountdownMode: "next-prayer",
		CacheBackend:  "file",
		LogLevel:      "warn",
	}
	if diff := cmp.Diff(want, Defaults()); diff != "" {
		t.Errorf("Defaults() mismatch (-want +got):\n%s", diff)
	}
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Errorf("Defaults() invalid: %v", err)
	}
}

// --- Dir and Path with XDG ---

func TestDir_XDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	want := filepath.Join("/tmp/xdg-test", "salahnow")
	if dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestDir_FallbackToHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".config", "salahnow")
	if dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestPath_XDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	p, err := Path()
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	want := filepath.Join("/tmp/xdg-test", "salahnow", "config.yaml")
	if p != want {
		t.Errorf("Path() = %q, want %q", p, want)
	}
}

// --- LoadFrom ---

func TestLoadFrom_NonExistentFile(t *testing.T) {
	cfg, err := LoadFrom("/no/such/file.yaml")
	if err != nil {
		t.Fatalf("LoadFrom non-existent should not error, got: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Errorf("LoadFrom non-existent mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_ValidYAML(t *testing.T) {
	path := tempConfigPath(t)
	raw := `city: Ankara
country_code: TR
district_id: "9206"
source: diyanet
method: 0
time_format: 12h
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	want := &Config{
		City:        "Ankara",
		CountryCode: "TR",
		DistrictID:  "9206",
		Source:      "diyanet",
		Method:      intPtr(0),
		TimeFormat:  "12h",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadFrom mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("city: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("LoadFrom with invalid YAML should error")
	}
}

func TestLoadFrom_FailsValidation(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("source: isna\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), "source") {
		t.Fatalf("LoadFrom error = %v, want source validation error", err)
	}
}

// --- SaveTo ---

func TestSaveTo_CreatesDirectoryAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "config.yaml")
	cfg := &Config{City: "London", Method: intPtr(2)}

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("saved file has invalid YAML: %v", err)
	}
	if diff := cmp.Diff(*cfg, loaded); diff != "" {
		t.Errorf("saved config mismatch (-want +got):\n%s", diff)
	}

	info, _ := os.Stat(path)
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := tempConfigPath(t)
	original := &Config{
		City:              "Istanbul",
		Country:           "Türkiye",
		CountryCode:       "TR",
		Latitude:          41.0082,
		Longitude:         28.9784,
		DistrictID:        "9541",
		Source:            "mwl",
		Method:            intPtr(0),
		School:            intPtr(1),
		TimeFormat:        "12h",
		CountdownMode:     "sunset",
		CacheBackend:      "sqlite",
		CacheDir:          "/tmp/cache",
		RedisAddress:      "localhost:6379",
		RedisUsername:     "default",
		RedisPassword:     "secret",
		LogLevel:          "debug",
		DistrictBaseURL:   "https://ezanvakti.example.com",
		CoordinateBaseURL: "https://api.example.com/v1",
	}

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if diff := cmp.Diff(original, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_OmitEmpty_YAML(t *testing.T) {
	data, err := yaml.Marshal(&Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "{}" {
		t.Errorf("empty config YAML = %q, want {}", got)
	}

	data, _ = yaml.Marshal(&Config{Method: intPtr(0)})
	if !strings.Contains(string(data), "method: 0") {
		t.Errorf("method=0 should be present, got %q", data)
	}
}

// --- ResetAt ---

func TestResetAt_DeletesFile(t *testing.T) {
	path := tempConfigPath(t)
	cfg := &Config{City: "London"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}

	if err := ResetAt(path); err != nil {
		t.Fatalf("ResetAt error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("ResetAt should have deleted the file")
	}
}

func TestResetAt_NonExistentFile(t *testing.T) {
	if err := ResetAt("/no/such/file.yaml"); err != nil {
		t.Errorf("ResetAt on non-existent file should not error, got: %v", err)
	}
}

// --- Set ---

func TestSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"latitude", "51.5074", false},
		{"latitude", "-90", false},
		{"latitude", "91", true},
		{"latitude", "abc", true},
		{"longitude", "180", false},
		{"longitude", "-181", true},
		{"country_code", "tr", false},
		{"country_code", "TUR", true},
		{"country_code", "T1", true},
		{"district_id", "9541", false},
		{"district_id", "istanbul", true},
		{"source", "diyanet", false},
		{"source", "MWL", false},
		{"source", "isna", true},
		{"method", "0", false},
		{"method", "23", false},
		{"method", "24", true},
		{"method", "-1", true},
		{"method", "abc", true},
		{"school", "0", false},
		{"school", "1", false},
		{"school", "2", true},
		{"time_format", "12h", false},
		{"time_format", "invalid", true},
		{"countdown_mode", "pre-dawn", false},
		{"countdown_mode", "noon", true},
		{"cache_backend", "redis", false},
		{"cache_backend", "memcached", true},
		{"redis_address", "localhost:6379", false},
		{"redis_address", "localhost", true},
		{"log_level", "DEBUG", false},
		{"log_level", "trace", true},
		{"district_base_url", "http://127.0.0.1:8080", false},
		{"district_base_url", "not a url", true},
		{"unknown_key", "value", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set(%s, %q) error = %v, wantErr = %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSet_InvalidLeavesConfigUnchanged(t *testing.T) {
	cfg := &Config{Source: "mwl", Method: intPtr(3)}
	before := *cfg

	if err := cfg.Set("method", "99"); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff(before, *cfg); diff != "" {
		t.Errorf("config changed on failed Set (-want +got):\n%s", diff)
	}
}

func TestSet_ErrorNamesKey(t *testing.T) {
	cfg := &Config{}
	err := cfg.Set("cache_backend", "memcached")
	if err == nil {
		t.Fatal("expected error")
	}
	want := `invalid cache_backend "memcached": must be one of file, sqlite, redis, none`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestSet_EmptyClearsValue(t *testing.T) {
	cfg := &Config{TimeFormat: "12h"}
	if err := cfg.Set("time_format", ""); err != nil {
		t.Fatalf("clearing time_format: %v", err)
	}
	if cfg.TimeFormat != "" {
		t.Errorf("TimeFormat = %q, want empty", cfg.TimeFormat)
	}
}

func TestSet_Normalizes(t *testing.T) {
	cfg := &Config{}
	cfg.Set("country_code", "tr")
	cfg.Set("source", " MWL ")
	cfg.Set("log_level", "Info")
	if cfg.CountryCode != "TR" || cfg.Source != "mwl" || cfg.LogLevel != "info" {
		t.Errorf("normalized = %q/%q/%q", cfg.CountryCode, cfg.Source, cfg.LogLevel)
	}
}

// --- Get ---

func TestGet_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	for _, key := range ValidKeys {
		got, err := cfg.Get(key)
		if err != nil {
			t.Errorf("Get(%q) error: %v", key, err)
		}
		if got != "" {
			t.Errorf("Get(%q) = %q, want empty for empty config", key, got)
		}
	}
}

func TestGet_UnknownKey(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.Get("unknown_key"); err == nil {
		t.Fatal("Get with unknown key should error")
	}
}

func TestSetThenGet_RoundTrip(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"city", "Istanbul"},
		{"country", "Türkiye"},
		{"country_code", "TR"},
		{"latitude", "41.0082"},
		{"longitude", "28.9784"},
		{"district_id", "9541"},
		{"source", "mwl"},
		{"method", "0"},
		{"school", "1"},
		{"time_format", "12h"},
		{"countdown_mode", "sunset"},
		{"cache_backend", "sqlite"},
		{"cache_dir", "/tmp/cache"},
		{"redis_address", "localhost:6379"},
		{"redis_username", "default"},
		{"redis_password", "secret"},
		{"log_level", "debug"},
		{"district_base_url", "https://ezanvakti.example.com"},
		{"coordinate_base_url", "https://api.example.com/v1"},
	}
	if len(tests) != len(ValidKeys) {
		t.Fatalf("round trip covers %d keys, ValidKeys has %d", len(tests), len(ValidKeys))
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := &Config{}
			if err := cfg.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) error: %v", tt.key, tt.value, err)
			}
			got, err := cfg.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%q) error: %v", tt.key, err)
			}
			if got != tt.value {
				t.Errorf("Set/Get round-trip: got %q, want %q", got, tt.value)
			}
		})
	}
}

func TestIsSecret(t *testing.T) {
	if !IsSecret("redis_password") || IsSecret("redis_username") {
		t.Error("only redis_password is secret")
	}
}

// --- MethodOrDefault / SchoolOrDefault ---

func TestMethodOrDefault(t *testing.T) {
	if got := (&Config{Method: intPtr(0)}).MethodOrDefault(3); got != 0 {
		t.Errorf("MethodOrDefault = %d, want 0", got)
	}
	if got := (&Config{}).MethodOrDefault(3); got != 3 {
		t.Errorf("MethodOrDefault = %d, want 3 (default)", got)
	}
}

func TestSchoolOrDefault(t *testing.T) {
	if got := (&Config{School: intPtr(0)}).SchoolOrDefault(1); got != 0 {
		t.Errorf("SchoolOrDefault = %d, want 0", got)
	}
	if got := (&Config{}).SchoolOrDefault(1); got != 1 {
		t.Errorf("SchoolOrDefault = %d, want 1 (default)", got)
	}
}

// --- Environment ---

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SALAHNOW_CITY", "Izmir")
	t.Setenv("SALAHNOW_METHOD", "2")
	t.Setenv("SALAHNOW_CACHE_BACKEND", "none")

	cfg := &Config{City: "Ankara", Source: "diyanet"}
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	want := &Config{City: "Izmir", Source: "diyanet", Method: intPtr(2), CacheBackend: "none"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ApplyEnv mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnv_InvalidNamesVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("SALAHNOW_SOURCE", "isna")

	err := (&Config{}).ApplyEnv()
	if err == nil || !strings.Contains(err.Error(), "SALAHNOW_SOURCE") {
		t.Errorf("ApplyEnv() error = %v, want it to name SALAHNOW_SOURCE", err)
	}
}

func TestLoad_DotEnvAndFile(t *testing.T) {
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := filepath.Join(xdg, "salahnow")
	cfg := &Config{City: "Ankara", LogLevel: "info"}
	if err := cfg.SaveTo(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SALAHNOW_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides a variable that exists, even when empty.
	os.Unsetenv("SALAHNOW_LOG_LEVEL")

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.City != "Ankara" || loaded.LogLevel != "debug" {
		t.Errorf("Load() = %+v, want file city and .env log level", loaded)
	}
}

func TestLoadEnvFiles_SkipsMissing(t *testing.T) {
	if err := LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("LoadEnvFiles() error: %v", err)
	}
}

func TestLoadFile_IgnoresEnv(t *testing.T) {
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("SALAHNOW_CITY", "Konya")

	cfg := &Config{City: "Ankara"}
	if err := cfg.SaveTo(filepath.Join(xdg, "salahnow", "config.yaml")); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if loaded.City != "Ankara" {
		t.Errorf("LoadFile().City = %q, want %q", loaded.City, "Ankara")
	}
}
