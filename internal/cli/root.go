// Package cli implements the salahnow command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smokyabdulrahman/salahnow/internal/config"
)

// Global flags shared across all subcommands.
var (
	FlagCity         string
	FlagCountry      string
	FlagCountryCode  string
	FlagLatitude     float64
	FlagLongitude    float64
	FlagDistrict     string
	FlagSource       string
	FlagMethod       int
	FlagSchool       int
	FlagJSON         bool
	FlagCacheDir     string
	FlagCacheBackend string
	FlagTimeFormat   string
	FlagMode         string
	FlagLogLevel     string
)

// loadedConfig holds the config loaded during PersistentPreRunE.
var loadedConfig *config.Config

// NewRootCmd creates the root command for the salahnow CLI.
// The version parameter is set by the calling binary via ldflags.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "salahnow",
		Short:   "Prayer times and a live countdown to the next prayer",
		Long:    "Prayer times from the official Diyanet schedule inside Türkiye and from the\nAl Adhan computation everywhere else, with a local cache for offline use.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			loadedConfig = cfg
			return nil
		},
		// Default action: show today's prayer schedule.
		RunE:          runToday,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&FlagCity, "city", "", "Override city (takes precedence over config)")
	pf.StringVar(&FlagCountry, "country", "", "Override country name")
	pf.StringVar(&FlagCountryCode, "country-code", "", "Override ISO country code, e.g. TR")
	pf.Float64Var(&FlagLatitude, "latitude", 0, "Override latitude")
	pf.Float64Var(&FlagLongitude, "longitude", 0, "Override longitude")
	pf.StringVar(&FlagDistrict, "district", "", "Diyanet district id")
	pf.StringVar(&FlagSource, "source", "", "Prayer time source: diyanet or mwl")
	pf.IntVar(&FlagMethod, "method", -1, "Override calculation method for the mwl source (0-23)")
	pf.IntVar(&FlagSchool, "school", -1, "Override school for the mwl source (0=Shafi, 1=Hanafi)")
	pf.BoolVar(&FlagJSON, "json", false, "Output as JSON (where supported)")
	pf.StringVar(&FlagCacheDir, "cache-dir", "", "Cache directory (default: ~/.cache/salahnow/)")
	pf.StringVar(&FlagCacheBackend, "cache-backend", "", "Cache backend: file, sqlite, redis or none")
	pf.StringVar(&FlagTimeFormat, "time-format", "", "Time format: 12h or 24h (overrides config)")
	pf.StringVar(&FlagMode, "mode", "", "Countdown target: next-prayer, pre-dawn or sunset")
	pf.StringVar(&FlagLogLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newNextCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newWeekCmd())
	rootCmd.AddCommand(newMonthCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newSourceCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMethodsCmd())

	return rootCmd
}

// PrintVersion prints the version string in the expected format.
func PrintVersion(version string) string {
	return fmt.Sprintf("salahnow %s\n", version)
}

// effectiveConfig returns the merged configuration values,
// applying the priority: CLI flags > config file (with env) > defaults.
// It uses cobra's Changed() to detect whether a flag was explicitly set.
// Flag values are validated through config.Set.
func effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Config{}
	if loadedConfig != nil {
		cfg = *loadedConfig
	}

	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()

	overrides := []struct {
		flag, key string
		value     func() string
	}{
		{"city", "city", func() string { return FlagCity }},
		{"country", "country", func() string { return FlagCountry }},
		{"country-code", "country_code", func() string { return FlagCountryCode }},
		{"latitude", "latitude", func() string { return fmt.Sprint(FlagLatitude) }},
		{"longitude", "longitude", func() string { return fmt.Sprint(FlagLongitude) }},
		{"district", "district_id", func() string { return FlagDistrict }},
		{"source", "source", func() string { return FlagSource }},
		{"method", "method", func() string { return fmt.Sprint(FlagMethod) }},
		{"school", "school", func() string { return fmt.Sprint(FlagSchool) }},
		{"cache-dir", "cache_dir", func() string { return FlagCacheDir }},
		{"cache-backend", "cache_backend", func() string { return FlagCacheBackend }},
		{"time-format", "time_format", func() string { return FlagTimeFormat }},
		{"mode", "countdown_mode", func() string { return FlagMode }},
		{"log-level", "log_level", func() string { return FlagLogLevel }},
	}
	for _, o := range overrides {
		if !flagWasSet(flags, root, o.flag) {
			continue
		}
		if err := cfg.Set(o.key, o.value()); err != nil {
			return nil, fmt.Errorf("--%s: %w", o.flag, err)
		}
	}

	// A city given on the command line replaces any stored position.
	if flagWasSet(flags, root, "city") && !flagWasSet(flags, root, "latitude") && !flagWasSet(flags, root, "longitude") {
		cfg.Latitude, cfg.Longitude = 0, 0
		if !flagWasSet(flags, root, "district") {
			cfg.DistrictID = ""
		}
	}

	defaults := config.Defaults()
	if cfg.Source == "" {
		cfg.Source = defaults.Source
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = defaults.TimeFormat
	}
	if cfg.CountdownMode == "" {
		cfg.CountdownMode = defaults.CountdownMode
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = defaults.CacheBackend
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	return &cfg, nil
}

// flagWasSet checks if a flag was explicitly set on either the local or persistent flag set.
func flagWasSet(local, persistent *pflag.FlagSet, name string) bool {
	if f := local.Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := persistent.Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}
