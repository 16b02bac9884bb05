package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"taskman/internal/cli/appctx"
	"taskman/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole database as a YAML snapshot",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(runExport),
}

var exportVerifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Read a snapshot back and check it is complete",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportVerify,
}

var exportOutput string

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportVerifyCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
}

func runExport(app *appctx.App, cmd *cobra.Command, args []string) error {
	snap, err := export.Build(app.Store, time.Now())
	if err != nil {
		return err
	}
	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, snap); err != nil {
		return err
	}
	if exportOutput != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d task(s) to %s\n", snap.Meta.TaskCount, exportOutput)
	}
	return nil
}

func runExportVerify(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	snap, err := export.Read(f)
	if err != nil {
		return err
	}
	if err := export.Verify(snap); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s from %s: %d task(s), %d at the top level\n",
		snap.Meta.ID, snap.Meta.GeneratedAt, snap.Meta.TaskCount, len(snap.Tasks))
	return nil
}
