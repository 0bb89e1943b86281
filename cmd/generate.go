package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	storybook "github.com/opd-ai/storybook/src"
)

func newGenerateCmd(root *rootFlags) *cobra.Command {
	var (
		req        storybook.Request
		keepImages bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one personalized storybook PDF",
		Long: `Generates every page of a story template with Leonardo, one page at a
time, and writes the PDF to <output>/<ChildName>_<story>.pdf.

The model is chosen in this order: --model-key, the story's default_model,
then --model-id on its own. --model-id also overrides the ID of a chosen model.`,
		Example: `  # Use the catalog model for the story
  storybook generate --story dragons_20 --child-name Alex --model-key boy_model

  # Try a different trained model ID
  storybook generate --story vacation_20 --child-name Alex --model-id 6b645e3a-d64f-4341-a6d8-7a3690fbf042`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("keep-images") {
				a.settings.KeepImages = keepImages
			}
			gen, err := a.generator(cmd.Context())
			if err != nil {
				return err
			}

			progress := storybook.LogProgressor{Logger: log.New(cmd.ErrOrStderr(), "", log.Ltime)}
			res, err := gen.CreateBook(cmd.Context(), req, progress)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved PDF: %s (%d pages)\n", res.PDFPath, res.PageCount)
			if res.AssetDir != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Page images: %s\n", res.AssetDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.StoryKey, "story", "s", "", "Story template key (see storybook templates)")
	cmd.Flags().StringVarP(&req.ChildName, "child-name", "n", "", "Child's name placed in the title and captions")
	cmd.Flags().StringVarP(&req.ModelKey, "model-key", "m", "", "Catalog model key")
	cmd.Flags().StringVar(&req.ModelID, "model-id", "", "Leonardo model ID, overrides the catalog")
	cmd.Flags().BoolVar(&keepImages, "keep-images", true, "Keep downloaded page images next to the PDF")
	_ = cmd.MarkFlagRequired("story")
	_ = cmd.MarkFlagRequired("child-name")

	return cmd
}
