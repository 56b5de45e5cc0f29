package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/presentation"
	"github.com/zjrosen/mdfold/internal/sched"
)

var scanCursor string

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Print the folds and hidden markup of a note as JSON",
	Long: `Fold a note without opening the preview and print the result as JSON:
every fold with its range, folded text and widget label, the hidden token
offsets of every line, and the active lines.

The cursor sits at the end of the note unless --cursor places it; folds
never cover the cursor, and markup under it stays visible.

Examples:
  mdfold scan notes/today.md
  mdfold scan notes/today.md --cursor 3:1
  mdfold scan notes/today.md | jq '.folds[].type'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		closeLog, err := setupLogging(cfg.Log, false)
		if err != nil {
			return err
		}
		defer closeLog()

		clock := sched.NewManual(time.Now())
		n, err := openNote(args[0], cfg, clock, nil)
		if err != nil {
			return err
		}
		defer n.editor.Unload()

		cur, err := parseCursor(n.editor, scanCursor)
		if err != nil {
			return err
		}
		n.editor.SetCursor(cur)
		clock.Advance(time.Minute)

		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		return formatter.FormatScan(presentation.FromSession(args[0], n.session))
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanCursor, "cursor", "", "cursor position as line:column, both 1-based")
	rootCmd.AddCommand(scanCmd)
}

// parseCursor reads a 1-based "line:column" position. Column counts bytes.
// An empty position means the end of the document.
func parseCursor(ed *editor.Editor, at string) (editor.Pos, error) {
	if at == "" {
		last := ed.LastLine()
		return editor.P(last, len(ed.Line(last))), nil
	}
	var line, col int
	if _, err := fmt.Sscanf(at, "%d:%d", &line, &col); err != nil || line < 1 || col < 1 {
		return editor.Pos{}, fmt.Errorf("invalid cursor %q: want line:column", at)
	}
	return ed.ClipPos(editor.P(line-1, col-1)), nil
}
