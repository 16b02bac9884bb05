package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"taskman/internal/cli/appctx"
	"taskman/internal/storage"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <table> <column> [fragment]",
	Short: "List existing values of a column, as forms autocomplete them",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  appctx.WithApp(runSuggest),
}

var searchCmd = &cobra.Command{
	Use:   "search <table> <field> <operator> <value>",
	Short: "Search any table and show the task each hit belongs to",
	Long: `Search compares one field of a table against a value.
Tables: ` + strings.Join(storage.SearchTables, ", ") + `
Operators: ` + strings.Join(storage.SearchOperators, " ") + `
LIKE matches the value anywhere in the field.`,
	Args: cobra.ExactArgs(4),
	RunE: appctx.WithApp(runSearch),
}

func init() {
	rootCmd.AddCommand(suggestCmd, searchCmd)
}

func runSuggest(app *appctx.App, cmd *cobra.Command, args []string) error {
	fragment := ""
	if len(args) == 3 {
		fragment = args[2]
	}
	values, err := app.Store.Suggest(args[0], args[1], fragment)
	if err != nil {
		return err
	}
	for _, v := range values {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}

func runSearch(app *appctx.App, cmd *cobra.Command, args []string) error {
	res, err := app.Store.Search(storage.SearchQuery{
		Table:    args[0],
		Field:    args[1],
		Operator: args[2],
		Value:    args[3],
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(res.Rows) == 0 {
		fmt.Fprintln(out, "No matches")
		return nil
	}

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\t"+strings.ToUpper(strings.Join(res.Columns, "\t")))
	for i, row := range res.Rows {
		owner := "-"
		if id, err := res.RowID(i); err == nil {
			if taskID, err := app.Store.OwnerTask(res.Table, id); err == nil {
				owner = fmt.Sprintf("#%d", taskID)
			}
		}
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.ReplaceAll(c, "\n", " ")
		}
		fmt.Fprintf(w, "%s\t%s\n", owner, strings.Join(cells, "\t"))
	}
	return w.Flush()
}
