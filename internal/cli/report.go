package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"taskman/internal/cli/appctx"
	"taskman/internal/clipboard"
	"taskman/internal/clipfmt"
	"taskman/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <task-id>...",
	Short: "Copy a delivery report of the given tasks to the clipboard",
	Args:  cobra.MinimumNArgs(1),
	RunE:  appctx.WithApp(runReport),
}

var clipCmd = &cobra.Command{
	Use:   "clip [file]",
	Short: "Put Markdown (or HTML with --html) on the clipboard as RTF, text and HTML",
	Long: `clip converts Markdown from a file, or stdin when no file is given,
into the three clipboard formats office programs paste from.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(runClip),
}

var clipInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "List the formats currently on the clipboard",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(runClipInfo),
}

var (
	reportPrint bool
	clipHTML    bool
	clipPrint   bool
	clipData    bool
)

func init() {
	rootCmd.AddCommand(reportCmd, clipCmd)
	clipCmd.AddCommand(clipInfoCmd)
	reportCmd.Flags().BoolVar(&reportPrint, "print", false, "Print the HTML report instead of copying it")
	clipCmd.Flags().BoolVar(&clipHTML, "html", false, "Input is an HTML fragment")
	clipCmd.Flags().BoolVar(&clipPrint, "print", false, "Print the payload instead of copying it")
	clipInfoCmd.Flags().BoolVar(&clipData, "data", false, "Also print the content of the text formats")
}

func runReport(app *appctx.App, cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if reportPrint {
		fragment, err := report.Build(app.Store, ids)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), fragment)
		return nil
	}
	if _, err := report.Copy(newClipboard(app.Log), app.Store, ids); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Copied report for %d task(s)\n", len(ids))
	return nil
}

func runClip(app *appctx.App, cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	var p clipfmt.Payload
	if clipHTML {
		p, err = clipfmt.FromHTML(string(data))
	} else {
		p, err = clipfmt.FromMarkdown(string(data))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if clipPrint {
		fmt.Fprintf(out, "== RTF ==\n%s\n\n== Text ==\n%s\n\n== HTML ==\n%s\n", p.RTF, p.Text, p.HTML)
		return nil
	}
	if err := newClipboard(app.Log).Write(p); err != nil {
		return err
	}
	fmt.Fprintf(out, "Copied %d bytes of text\n", len(p.Text))
	return nil
}

func runClipInfo(app *appctx.App, cmd *cobra.Command, args []string) error {
	clip := newClipboard(app.Log)
	formats, err := clip.Formats()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(formats) == 0 {
		fmt.Fprintln(out, "Clipboard is empty")
		return nil
	}
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFORMAT\tSIZE")
	for _, f := range formats {
		fmt.Fprintf(w, "%d\t%s\t%d\n", f.ID, f.Name, f.Size)
	}
	if err := w.Flush(); err != nil || !clipData {
		return err
	}

	for _, f := range formats {
		text, err := clip.Text(f)
		if errors.Is(err, clipboard.ErrNotText) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n== %s ==\n%s\n", f.Name, text)
	}
	return nil
}
