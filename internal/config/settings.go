package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/phobologic/stepguide/internal/lang"
)

// Log format constants
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogSettings configuration for the process logger
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SearchSettings configuration for step search
type SearchSettings struct {
	MaxResults int `mapstructure:"max_results"`
}

// Settings application settings
type Settings struct {
	ProjectRoot string         `mapstructure:"project_root"`
	Languages   []string       `mapstructure:"languages"`
	MaxFileSize int64          `mapstructure:"max_file_size"`
	Workers     int            `mapstructure:"workers"`
	CacheSize   int            `mapstructure:"cache_size"`
	Log         LogSettings    `mapstructure:"log"`
	Search      SearchSettings `mapstructure:"search"`
}

// LoadSettings loads settings from environment variables and an optional
// stepguide.yaml file.
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > stepguide.yaml > defaults.
// stepguide.yaml is read from the project root given by flag or environment,
// falling back to the working directory.
// If flags is nil, only the file, env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("project_root", ".")
	v.SetDefault("languages", []string{})
	v.SetDefault("max_file_size", int64(1_000_000)) // 1 MB
	v.SetDefault("workers", 0)
	v.SetDefault("cache_size", 4096)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", LogFormatText)
	v.SetDefault("search.max_results", 10)

	// Environment variables
	v.SetEnvPrefix("STEPGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The project root is also published by the test host.
	_ = v.BindEnv("project_root", "STEPGUIDE_PROJECT_ROOT", "GAUGE_PROJECT_ROOT")
	_ = v.BindEnv("log.level", "STEPGUIDE_LOG_LEVEL")
	_ = v.BindEnv("log.format", "STEPGUIDE_LOG_FORMAT")
	_ = v.BindEnv("search.max_results", "STEPGUIDE_SEARCH_MAX_RESULTS")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("project_root", flags.Lookup("project-root"))
		_ = v.BindPFlag("languages", flags.Lookup("languages"))
		_ = v.BindPFlag("max_file_size", flags.Lookup("max-file-size"))
		_ = v.BindPFlag("workers", flags.Lookup("workers"))
		_ = v.BindPFlag("cache_size", flags.Lookup("cache-size"))
		_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
		_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	}

	// The project's own stepguide.yaml wins over one in the working directory.
	v.SetConfigName("stepguide")
	v.SetConfigType("yaml")
	if root := v.GetString("project_root"); root != "" {
		v.AddConfigPath(root)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading stepguide.yaml")
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, errors.Wrap(err, "decoding settings")
	}

	settings.Languages = splitList(settings.Languages)
	settings.Log.Level = strings.ToLower(strings.TrimSpace(settings.Log.Level))
	settings.Log.Format = strings.ToLower(strings.TrimSpace(settings.Log.Format))

	return &settings, nil
}

// splitList flattens comma-separated entries, trims them and drops empties.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ValidateSettings rejects settings the tool cannot run with.
func ValidateSettings(s *Settings) error {
	if s.ProjectRoot == "" {
		return errors.New("project-root cannot be empty")
	}

	for _, name := range s.Languages {
		if _, ok := lang.Languages[name]; !ok {
			return errors.Errorf("unsupported language %q", name)
		}
	}

	if s.MaxFileSize <= 0 {
		return errors.New("max-file-size must be positive")
	}
	if s.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	if s.CacheSize <= 0 {
		return errors.New("cache-size must be positive")
	}
	if s.Search.MaxResults <= 0 {
		return errors.New("search max-results must be positive")
	}

	if _, err := ParseLevel(s.Log.Level); err != nil {
		return err
	}
	switch s.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return errors.New("log-format must be 'text' or 'json', got: " + s.Log.Format)
	}

	return nil
}
