package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mdfold/internal/presentation"
	"github.com/zjrosen/mdfold/internal/sched"
)

var foldersJSON bool

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List fold types and code renderers",
	Long: `List every fold type and fenced code renderer with the state the current
config gives it.

Examples:
  mdfold folders
  mdfold folders --json | jq '.[] | select(.enabled) | .name'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		n, err := openNote("", cfg, sched.NewManual(time.Now()), nil)
		if err != nil {
			return err
		}
		defer n.editor.Unload()

		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		dtos := presentation.FromSessionFolders(n.session)
		if foldersJSON {
			return formatter.FormatFolders(dtos)
		}
		return formatter.FormatFoldersText(dtos)
	},
}

func init() {
	foldersCmd.Flags().BoolVar(&foldersJSON, "json", false, "print JSON")
	rootCmd.AddCommand(foldersCmd)
}
