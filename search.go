package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/stepguide/internal/search"
	"github.com/phobologic/stepguide/internal/toon"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Find steps by approximate wording",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			reg, _, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			idx, err := search.Build(reg.Methods())
			if err != nil {
				return err
			}
			defer idx.Close()

			if limit <= 0 {
				limit = a.settings.Search.MaxResults
			}
			query := strings.Join(args, " ")
			hits, err := idx.Search(query, limit)
			if err != nil {
				return err
			}

			if format == formatYAML {
				return writeYAML(a.stdout, struct {
					Query string       `yaml:"query"`
					Hits  []search.Hit `yaml:"hits"`
				}{query, hits})
			}
			_, _ = fmt.Fprintln(a.stdout, toon.EncodeHits(query, hits))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-results", "n", 0, "maximum number of hits (default from settings)")
	cmd.Flags().StringVar(&format, "format", formatTOON, "output format (toon, yaml)")
	return cmd
}
