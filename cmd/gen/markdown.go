package gen

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var (
	markdownDir string
)

var MarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Generate markdown docs for beacon",
	Long: `This command generates one markdown file per beacon command, linked
	together. By default, it creates them in the "docs" directory under the
	current directory.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := prepareDir(cmd, markdownDir)
		if err != nil {
			return err
		}

		cmd.Root().DisableAutoGenTag = true

		fmt.Fprintln(cmd.OutOrStdout(), "Generating beacon markdown docs in", dir, "...")

		if err := doc.GenMarkdownTree(cmd.Root(), dir); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Done.")

		return nil
	},
}

func init() {
	dirFlag(MarkdownCmd, &markdownDir, "docs/", "the directory to write the markdown files.")
}
