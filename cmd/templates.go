package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTemplatesCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the story templates in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTITLE\tPAGES\tDEFAULT MODEL")
			for _, s := range a.catalog.Stories() {
				model := s.DefaultModel
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Key, s.Title, len(s.Pages), model)
			}
			return tw.Flush()
		},
	}
}
