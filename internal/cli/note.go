package cli

import (
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"taskman/internal/cli/appctx"
	"taskman/internal/editor"
	"taskman/internal/ui"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Write, edit and read Markdown notes on tasks",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <task-id>",
	Short: "Add a note, from --text or the editor",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(runNoteAdd),
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a note and print what changed",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(runNoteEdit),
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <id> | --task <task-id>",
	Short: "Delete a note, or every note of a task",
	Args:  cobra.MaximumNArgs(1),
	RunE:  appctx.WithApp(runNoteRm),
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Render a note",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(runNoteShow),
}

var (
	noteText  string
	noteRaw   bool
	noteWidth int
	noteTask  int
)

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteAddCmd, noteEditCmd, noteRmCmd, noteShowCmd)
	for _, c := range []*cobra.Command{noteAddCmd, noteEditCmd} {
		c.Flags().StringVar(&noteText, "text", "", "Note content instead of opening the editor")
	}
	noteRmCmd.Flags().IntVar(&noteTask, "task", 0, "Delete every note of this task")
	noteShowCmd.Flags().BoolVar(&noteRaw, "raw", false, "Print the Markdown source")
	noteShowCmd.Flags().IntVar(&noteWidth, "width", 80, "Wrap width")
}

// noteContent returns --text when given, otherwise the editor's result.
func noteContent(app *appctx.App, cmd *cobra.Command, current string) (string, error) {
	if cmd.Flags().Changed("text") {
		return noteText, nil
	}
	return editor.Edit(app.Config.EditorCommand(), current)
}

func runNoteAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	taskID, err := parseID(args[0])
	if err != nil {
		return err
	}
	if _, err := app.Store.GetTask(taskID); err != nil {
		return err
	}
	content, err := noteContent(app, cmd, "")
	if err != nil {
		return err
	}
	if content == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Empty note discarded")
		return nil
	}
	id, err := app.Store.AddNote(taskID, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added note #%d to task #%d\n", id, taskID)
	return nil
}

func runNoteEdit(app *appctx.App, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	n, err := app.Store.GetNote(id)
	if err != nil {
		return err
	}
	content, err := noteContent(app, cmd, n.Content)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if content == n.Content {
		fmt.Fprintf(out, "Note #%d unchanged\n", id)
		return nil
	}
	if err := app.Store.UpdateNote(id, content); err != nil {
		return err
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(n.Content),
		B:        difflib.SplitLines(content),
		FromFile: fmt.Sprintf("note #%d", id),
		ToFile:   "edited",
		Context:  3,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(out, diff)
	fmt.Fprintf(out, "Updated note #%d\n", id)
	return nil
}

func runNoteRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("task") {
		if len(args) > 0 {
			return errors.New("give a note id or --task, not both")
		}
		if _, err := app.Store.GetTask(noteTask); err != nil {
			return err
		}
		n, err := app.Store.DeleteTaskNotes(noteTask)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d note(s) of task #%d\n", n, noteTask)
		return nil
	}
	if len(args) == 0 {
		return errors.New("note id or --task is required")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Store.DeleteNote(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted note #%d\n", id)
	return nil
}

func runNoteShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	n, err := app.Store.GetNote(id)
	if err != nil {
		return err
	}
	if noteRaw {
		fmt.Fprintln(cmd.OutOrStdout(), n.Content)
		return nil
	}
	name, err := app.Store.Theme(app.Config.Theme)
	if err != nil {
		return err
	}
	theme, _ := ui.ThemeByName(name)
	rendered, err := ui.RenderMarkdown(n.Content, noteWidth, theme.Dark)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
