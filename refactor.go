package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/phobologic/stepguide/internal/model"
	"github.com/phobologic/stepguide/internal/refactor"
	"github.com/phobologic/stepguide/internal/registry"
	"github.com/phobologic/stepguide/internal/source"
	"github.com/phobologic/stepguide/internal/toon"
)

func newRefactorCmd(a *app) *cobra.Command {
	var (
		from   string
		to     string
		write  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "refactor",
		Short: "Rewrite a step implementation to match new step text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			reg, l, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			m, err := reg.MethodFor(model.StepValueOf(from))
			if err != nil {
				var nf *registry.NotFoundError
				if errors.As(err, &nf) {
					return errors.Errorf("no step implementation matches %q", from)
				}
				return err
			}

			positions := model.ParameterPositions(m.StepText, to)
			names := model.ParameterNames(to)

			engine := refactor.New(source.NewTreeSitter(), refactor.WithLogger(a.logger))
			change, err := engine.Refactor(m, positions, names, to)
			if err != nil {
				return err
			}

			if write && len(change.Diffs) > 0 {
				if err := writeChange(change); err != nil {
					return err
				}
				if err := l.Reload(change.FileName, reg); err != nil {
					return err
				}
				a.logger.Info("refactored step", "file", change.FileName, "from", m.StepText, "to", to)
			}

			if format == formatYAML {
				return writeYAML(a.stdout, change)
			}
			_, _ = fmt.Fprintln(a.stdout, toon.EncodeChange(change))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "current step text")
	cmd.Flags().StringVar(&to, "to", "", "new step text")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the change to disk")
	cmd.Flags().StringVar(&format, "format", formatTOON, "output format (toon, yaml)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func writeChange(change *model.RefactoringChange) error {
	info, err := os.Stat(change.FileName)
	if err != nil {
		return errors.Wrap(err, "stat refactored file")
	}
	if err := os.WriteFile(change.FileName, []byte(change.FileContent), info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "writing %s", change.FileName)
	}
	return nil
}
