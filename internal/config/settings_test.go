package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		ProjectRoot: ".",
		MaxFileSize: 1000,
		CacheSize:   10,
		Log:         LogSettings{Level: "info", Format: LogFormatText},
		Search:      SearchSettings{MaxResults: 5},
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	settings, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, ".", settings.ProjectRoot)
	assert.Empty(t, settings.Languages)
	assert.Equal(t, int64(1_000_000), settings.MaxFileSize)
	assert.Equal(t, 0, settings.Workers)
	assert.Equal(t, 4096, settings.CacheSize)
	assert.Equal(t, "warn", settings.Log.Level)
	assert.Equal(t, LogFormatText, settings.Log.Format)
	assert.Equal(t, 10, settings.Search.MaxResults)
	assert.NoError(t, ValidateSettings(settings))
}

func TestLoadSettings_EnvVars(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STEPGUIDE_WORKERS", "3")
	t.Setenv("STEPGUIDE_LANGUAGES", "csharp, python")
	t.Setenv("STEPGUIDE_LOG_LEVEL", "DEBUG")
	t.Setenv("STEPGUIDE_SEARCH_MAX_RESULTS", "7")

	settings, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 3, settings.Workers)
	assert.Equal(t, []string{"csharp", "python"}, settings.Languages)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, 7, settings.Search.MaxResults)
}

func TestLoadSettings_GaugeProjectRoot(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GAUGE_PROJECT_ROOT", "/work/project")

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "/work/project", settings.ProjectRoot)

	t.Setenv("STEPGUIDE_PROJECT_ROOT", "/work/override")
	settings, err = LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "/work/override", settings.ProjectRoot)
}

func TestLoadSettings_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	config := "workers: 2\ncache_size: 64\nlog:\n  format: json\nlanguages:\n  - java\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stepguide.yaml"), []byte(config), 0o644))

	settings, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 2, settings.Workers)
	assert.Equal(t, 64, settings.CacheSize)
	assert.Equal(t, LogFormatJSON, settings.Log.Format)
	assert.Equal(t, []string{"java"}, settings.Languages)
}

func TestLoadSettings_ConfigFileInProjectRoot(t *testing.T) {
	cwd := t.TempDir()
	chdir(t, cwd)
	require.NoError(t, os.WriteFile(filepath.Join(cwd, "stepguide.yaml"), []byte("workers: 1\n"), 0o644))

	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "stepguide.yaml"), []byte("workers: 5\ncache_size: 32\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("project-root", "C", ".", "")
	require.NoError(t, flags.Parse([]string{"-C", project}))

	settings, err := LoadSettingsWithFlags(flags)
	require.NoError(t, err)
	assert.Equal(t, project, settings.ProjectRoot)
	assert.Equal(t, 5, settings.Workers)
	assert.Equal(t, 32, settings.CacheSize)
}

func TestLoadSettings_BadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stepguide.yaml"), []byte("workers: [1\n"), 0o644))

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestLoadSettings_FlagsOverrideEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STEPGUIDE_WORKERS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	flags.String("log-level", "warn", "")
	flags.StringSlice("languages", nil, "")
	require.NoError(t, flags.Parse([]string{"--workers", "8", "--languages", "python"}))

	settings, err := LoadSettingsWithFlags(flags)
	require.NoError(t, err)

	assert.Equal(t, 8, settings.Workers)
	assert.Equal(t, []string{"python"}, settings.Languages)
	assert.Equal(t, "warn", settings.Log.Level, "unchanged flags fall back to lower layers")
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"known languages", func(s *Settings) { s.Languages = []string{"csharp", "java"} }, ""},
		{"unknown language", func(s *Settings) { s.Languages = []string{"cobol"} }, `unsupported language "cobol"`},
		{"empty root", func(s *Settings) { s.ProjectRoot = "" }, "project-root"},
		{"zero max size", func(s *Settings) { s.MaxFileSize = 0 }, "max-file-size"},
		{"negative workers", func(s *Settings) { s.Workers = -1 }, "workers"},
		{"zero cache", func(s *Settings) { s.CacheSize = 0 }, "cache-size"},
		{"zero results", func(s *Settings) { s.Search.MaxResults = 0 }, "max-results"},
		{"bad level", func(s *Settings) { s.Log.Level = "loud" }, "unknown log level"},
		{"bad format", func(s *Settings) { s.Log.Format = "xml" }, "log-format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
