package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskman/internal/cli/appctx"
	"taskman/internal/ui"
)

var themeCmd = &cobra.Command{
	Use:   "theme [name]",
	Short: "List the themes, or switch to one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  appctx.WithApp(runTheme),
}

func init() {
	rootCmd.AddCommand(themeCmd)
}

func runTheme(app *appctx.App, cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		if _, ok := ui.ThemeByName(args[0]); !ok {
			return fmt.Errorf("unknown theme %q", args[0])
		}
		if err := app.Store.SetTheme(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Theme set to %s\n", args[0])
		return nil
	}

	current, err := app.Store.Theme(app.Config.Theme)
	if err != nil {
		return err
	}
	for _, name := range ui.ThemeNames() {
		mark := " "
		if name == current {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s\n", mark, name)
	}
	return nil
}
