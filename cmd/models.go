package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	storybook "github.com/opd-ai/storybook/src"
)

func newModelsCmd(root *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Check the API key and list Leonardo platform models",
		Long: `Diagnostics. Checks that LEONARDO_API_KEY is usable, lists platform
models from Leonardo and shows which model ID each catalog model resolves to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			if _, err := storybook.CheckAPIKey(a.settings.APIKey); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API host: %s\n", a.client.Host())

			models, err := a.client.ListPlatformModels(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "API key OK, %d platform models:\n", len(models))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, m := range models {
				fmt.Fprintf(tw, "  %s\t%s\n", m.ID, m.Name)
			}
			tw.Flush()

			fmt.Fprintln(out, "\nCatalog models:")
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, m := range a.catalog.Models() {
				id := m.ModelID()
				if id == "" {
					id = "(no usable model_id)"
				}
				fmt.Fprintf(tw, "  %s\t%s\t%dx%d\n", m.Key, id, m.Width, m.Height)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 1, "Number of platform models to fetch")

	return cmd
}
