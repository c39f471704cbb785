package main

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/phobologic/stepguide/internal/model"
	"github.com/phobologic/stepguide/internal/toon"
)

func newStepsCmd(a *app) *cobra.Command {
	var (
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the steps implemented in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			reg, _, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			if file != "" {
				path := file
				if !filepath.IsAbs(path) {
					path = filepath.Join(a.root, path)
				}
				if !reg.IsFileCached(path) {
					return errors.Errorf("%s: no steps found", file)
				}
				positions := reg.GetStepPositions(path)
				if format == formatYAML {
					return writeYAML(a.stdout, struct {
						File      string               `yaml:"file"`
						Positions []model.StepPosition `yaml:"positions"`
					}{file, positions})
				}
				_, _ = fmt.Fprintln(a.stdout, toon.EncodePositions(file, positions))
				return nil
			}

			methods := reg.Methods()
			if format == formatYAML {
				return writeYAML(a.stdout, struct {
					Project string         `yaml:"project"`
					Steps   []model.Method `yaml:"steps"`
				}{a.root, methods})
			}
			_, _ = fmt.Fprintln(a.stdout, toon.EncodeSteps(a.root, methods))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "list the step positions of one file")
	cmd.Flags().StringVar(&format, "format", formatTOON, "output format (toon, yaml)")
	return cmd
}
