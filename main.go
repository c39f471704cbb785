// stepguide indexes the step implementations of a test project and rewrites
// them when a step's wording changes.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/stepguide/internal/config"
	"github.com/phobologic/stepguide/internal/discover"
	"github.com/phobologic/stepguide/internal/loader"
	"github.com/phobologic/stepguide/internal/registry"
)

var version = "dev"

// Output formats
const (
	formatTOON = "toon"
	formatYAML = "yaml"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	settings *config.Settings
	root     string
	logger   *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "stepguide",
		Short:         "Index and refactor step implementations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd.Flags())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("stepguide {{.Version}}\n")

	registerFlags(cmd.PersistentFlags())
	cmd.AddCommand(
		newStepsCmd(a),
		newRefactorCmd(a),
		newSearchCmd(a),
		newWatchCmd(a),
	)
	return cmd
}

func registerFlags(flags *pflag.FlagSet) {
	flags.StringP("project-root", "C", ".", "project directory to scan; its stepguide.yaml is preferred")
	flags.StringSliceP("languages", "l", nil, "languages to include (csharp, java, python)")
	flags.Int64("max-file-size", 1_000_000, "skip files larger than this many bytes")
	flags.Int("workers", 0, "parser goroutines (0 = GOMAXPROCS)")
	flags.Int("cache-size", 4096, "parsed files kept in memory")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", config.LogFormatText, "log format (text, json)")
}

func (a *app) configure(flags *pflag.FlagSet) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return err
	}
	if err := config.ValidateSettings(settings); err != nil {
		return err
	}

	logger, err := config.NewLogger(settings.Log, a.stderr)
	if err != nil {
		return err
	}
	config.LogWithLogger(settings, logger)

	root, err := filepath.Abs(settings.ProjectRoot)
	if err != nil {
		return errors.Wrap(err, "resolving project root")
	}
	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrap(err, "project root")
	}
	if !info.IsDir() {
		return errors.Errorf("%s: not a directory", root)
	}

	a.settings = settings
	a.root = root
	a.logger = logger
	return nil
}

func (a *app) newLoader() (*loader.Loader, error) {
	return loader.New(a.root,
		loader.WithWorkers(a.settings.Workers),
		loader.WithCacheSize(a.settings.CacheSize),
		loader.WithDiscovery(discover.Options{
			Languages:   a.settings.Languages,
			MaxFileSize: a.settings.MaxFileSize,
		}),
		loader.WithLogger(a.logger),
	)
}

// load scans the project into a fresh registry.
func (a *app) load(ctx context.Context) (*registry.Registry, *loader.Loader, error) {
	l, err := a.newLoader()
	if err != nil {
		return nil, nil, err
	}
	reg := registry.New()
	if _, err := l.Load(ctx, reg); err != nil {
		return nil, nil, err
	}
	return reg, l, nil
}

func checkFormat(format string) error {
	switch format {
	case formatTOON, formatYAML:
		return nil
	}
	return errors.Errorf("unknown format %q (want toon or yaml)", format)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encoding yaml")
	}
	return enc.Close()
}
