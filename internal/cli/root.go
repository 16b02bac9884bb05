package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskman/internal/cli/appctx"
	"taskman/internal/clipboard"
	"taskman/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "taskman",
	Short: "Track tasks, deliveries and bookings in a local database",
	Long: `taskman keeps tasks, subtasks and everything attached to them
(deliveries, links, tags, origins, bookings, notes) in a SQLite file.
Run without a command to open the terminal UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          appctx.WithApp(runTUI),
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal UI",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(runTUI),
}

// newClipboard is swapped out in tests.
var newClipboard = func(log *zap.Logger) clipboard.Writer {
	return clipboard.New(log)
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides TASKMAN_CONFIG)")
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides db_path and TASKMAN_DB_PATH)")
}

func runTUI(app *appctx.App, cmd *cobra.Command, args []string) error {
	return ui.Run(ui.Options{
		Store:     app.Store,
		Config:    app.Config,
		Logger:    app.Log,
		Clipboard: newClipboard(app.Log),
	})
}
