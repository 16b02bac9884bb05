package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"taskman/internal/cli/appctx"
	"taskman/internal/storage"
	"taskman/internal/ui"
)

var errNameRequired = errors.New("task name is required")

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Add, edit, move, remove and show tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task, or a subtask with --parent",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(runTaskAdd),
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the fields given as flags",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(runTaskEdit),
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task with its notes, bookings and attachments",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(runTaskRm),
}

var taskMvCmd = &cobra.Command{
	Use:   "mv <id> [parent-id]",
	Short: "Move a task under another task, or to the top level",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  appctx.WithApp(runTaskMv),
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and what is attached to it",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(runTaskShow),
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the task hierarchy",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(runTree),
}

var taskParent int

func init() {
	rootCmd.AddCommand(taskCmd, treeCmd)
	taskCmd.AddCommand(taskAddCmd, taskEditCmd, taskRmCmd, taskMvCmd, taskShowCmd)

	for _, c := range []*cobra.Command{taskAddCmd, taskEditCmd} {
		c.Flags().String("customer", "", "Customer")
		c.Flags().String("name", "", "Task name")
		c.Flags().String("description", "", "Description")
		c.Flags().String("started", "", "Start time (YYYY-MM-DD HH:MM)")
		c.Flags().String("finished", "", "Finish time (YYYY-MM-DD HH:MM)")
	}
	taskAddCmd.Flags().IntVar(&taskParent, "parent", 0, "Parent task id")
}

// fields overlays the flags a user set on the current values.
type fields struct {
	cmd *cobra.Command
	err error
}

func (f *fields) str(name, current string) string {
	if !f.cmd.Flags().Changed(name) {
		return current
	}
	v, _ := f.cmd.Flags().GetString(name)
	return strings.TrimSpace(v)
}

func (f *fields) time(name string, current sql.NullTime) sql.NullTime {
	if !f.cmd.Flags().Changed(name) {
		return current
	}
	v, _ := f.cmd.Flags().GetString(name)
	t, err := storage.ParseTime(v)
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("--%s: %w", name, err)
	}
	return t
}

func taskInput(cmd *cobra.Command, in storage.TaskInput) (storage.TaskInput, error) {
	f := &fields{cmd: cmd}
	in = storage.TaskInput{
		Customer:    f.str("customer", in.Customer),
		Name:        f.str("name", in.Name),
		Description: f.str("description", in.Description),
		StartedAt:   f.time("started", in.StartedAt),
		FinishedAt:  f.time("finished", in.FinishedAt),
	}
	if f.err != nil {
		return in, f.err
	}
	if in.Name == "" {
		return in, errNameRequired
	}
	return in, nil
}

func runTaskAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	in, err := taskInput(cmd, storage.TaskInput{})
	if err != nil {
		return err
	}
	id, err := app.Store.AddTask(in, taskParent)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task #%d\n", id)
	return nil
}

func runTaskEdit(app *appctx.App, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t, err := app.Store.GetTask(id)
	if err != nil {
		return err
	}
	in, err := taskInput(cmd, t.Input())
	if err != nil {
		return err
	}
	if err := app.Store.UpdateTask(id, in); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task #%d\n", id)
	return nil
}

func runTaskRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Store.DeleteTask(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d\n", id)
	return nil
}

func runTaskMv(app *appctx.App, cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	parent := 0
	if len(ids) == 2 {
		parent = ids[1]
	}
	if err := app.Store.MoveTask(ids[0], parent); err != nil {
		return err
	}
	if parent == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Moved task #%d to the top level\n", ids[0])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Moved task #%d under #%d\n", ids[0], parent)
	}
	return nil
}

func runTaskShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t, err := app.Store.GetTask(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "#%d %s\n", t.ID, t.Name)
	if t.Customer != "" {
		fmt.Fprintf(out, "customer:    %s\n", t.Customer)
	}
	if t.Description != "" {
		fmt.Fprintf(out, "description: %s\n", t.Description)
	}
	printTime(out, "started:    ", t.StartedAt)
	printTime(out, "finished:   ", t.FinishedAt)

	ancestors, err := app.Store.Ancestors(id)
	if err != nil {
		return err
	}
	if len(ancestors) > 0 {
		path := make([]string, 0, len(ancestors))
		for i := len(ancestors) - 1; i >= 0; i-- {
			path = append(path, fmt.Sprintf("#%d %s", ancestors[i].ID, ancestors[i].Name))
		}
		fmt.Fprintf(out, "parents:     %s\n", strings.Join(path, " > "))
	}

	rel, err := app.Store.Related(id)
	if err != nil {
		return err
	}
	if !rel.Empty() {
		fmt.Fprintln(out)
		printRelated(out, rel)
	}
	return nil
}

func printTime(w io.Writer, label string, t sql.NullTime) {
	if !t.Valid {
		return
	}
	fmt.Fprintf(w, "%s %s (%s)\n", label, storage.FormatTime(t), humanize.Time(t.Time))
}

func runTree(app *appctx.App, cmd *cobra.Command, args []string) error {
	rows, err := app.Store.TaskTree()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No tasks")
		return nil
	}
	for _, r := range rows {
		label := r.Name
		if r.Customer != "" {
			label = r.Customer + ": " + r.Name
		}
		if r.FinishedAt.Valid {
			label += " ✓"
		}
		fmt.Fprintf(out, "%s #%d %s\n", ui.TreeIndicator(r.Depth), r.ID, label)
	}
	return nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
