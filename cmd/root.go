package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	catalog string
	output  string
}

func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "storybook",
		Short: "Personalized picture books illustrated with Leonardo",
		Long: `Storybook turns a story template and a child's name into an illustrated
PDF picture book. Each page is illustrated by the Leonardo image API and laid
out with its caption.

Configuration comes from the environment (or a .env file):
  LEONARDO_API_KEY       bearer token for the Leonardo API
  STORYBOOK_CATALOG_PATH story and model catalog (default config/storybook.yaml)
  STORYBOOK_OUTPUT_DIR   where PDFs are written (default output)
  STORYBOOK_REDIS_ADDR   optional Redis for the book history`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.catalog, "catalog", "", "Catalog file (overrides STORYBOOK_CATALOG_PATH)")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output directory (overrides STORYBOOK_OUTPUT_DIR)")

	cmd.AddCommand(newGenerateCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newModelsCmd(flags))
	cmd.AddCommand(newTemplatesCmd(flags))

	return cmd
}
