package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"taskman/internal/cli/appctx"
	"taskman/internal/storage"
)

var errOriginNameRequired = errors.New("origin name is required")

// attachKind describes one kind of entity hung off a task. add gets a zero
// id; edit gets the id of the row to change.
type attachKind struct {
	name   string
	flags  [][2]string
	add    func(s *storage.Store, taskID int, f *fields) (int, error)
	edit   func(s *storage.Store, id int, f *fields) error
	remove func(s *storage.Store, id int) error
}

var attachKinds = []attachKind{
	{
		name:  "delivery",
		flags: [][2]string{{"version", "Delivered version"}, {"server", "Server"}, {"environment", "Environment, e.g. TEST or PROD"}, {"at", "Delivery time (YYYY-MM-DD HH:MM)"}},
		add: func(s *storage.Store, taskID int, f *fields) (int, error) {
			d := deliveryFields(f, storage.Delivery{})
			if f.err != nil {
				return 0, f.err
			}
			return s.AddDelivery(taskID, d)
		},
		edit: func(s *storage.Store, id int, f *fields) error {
			cur, err := s.GetDelivery(id)
			if err != nil {
				return err
			}
			d := deliveryFields(f, cur)
			if f.err != nil {
				return f.err
			}
			return s.UpdateDelivery(id, d)
		},
		remove: (*storage.Store).DeleteDelivery,
	},
	{
		name:  "link",
		flags: [][2]string{{"type", "Link type"}, {"url", "Address"}},
		add: func(s *storage.Store, taskID int, f *fields) (int, error) {
			return s.AddLink(taskID, storage.Link{Type: f.str("type", ""), RawLink: f.str("url", "")})
		},
		edit: func(s *storage.Store, id int, f *fields) error {
			cur, err := s.GetLink(id)
			if err != nil {
				return err
			}
			return s.UpdateLink(id, storage.Link{Type: f.str("type", cur.Type), RawLink: f.str("url", cur.RawLink)})
		},
		remove: (*storage.Store).DeleteLink,
	},
	{
		name:  "tag",
		flags: [][2]string{{"type", "Tag type"}, {"keywords", "Keywords"}},
		add: func(s *storage.Store, taskID int, f *fields) (int, error) {
			return s.AddTag(taskID, storage.Tag{Type: f.str("type", ""), Keywords: f.str("keywords", "")})
		},
		edit: func(s *storage.Store, id int, f *fields) error {
			cur, err := s.GetTag(id)
			if err != nil {
				return err
			}
			return s.UpdateTag(id, storage.Tag{Type: f.str("type", cur.Type), Keywords: f.str("keywords", cur.Keywords)})
		},
		remove: (*storage.Store).DeleteTag,
	},
	{
		name:  "origin",
		flags: [][2]string{{"name", "Origin name"}, {"type", "Origin type"}, {"url", "Address"}},
		add: func(s *storage.Store, taskID int, f *fields) (int, error) {
			o := storage.Origin{Name: f.str("name", ""), Type: f.str("type", ""), RawLink: f.str("url", "")}
			if o.Name == "" {
				return 0, errOriginNameRequired
			}
			return s.AddOrigin(taskID, o)
		},
		edit: func(s *storage.Store, id int, f *fields) error {
			cur, err := s.GetOrigin(id)
			if err != nil {
				return err
			}
			o := storage.Origin{Name: f.str("name", cur.Name), Type: f.str("type", cur.Type), RawLink: f.str("url", cur.RawLink)}
			if o.Name == "" {
				return errOriginNameRequired
			}
			return s.UpdateOrigin(id, o)
		},
		remove: (*storage.Store).DeleteOrigin,
	},
	{
		name:  "booking",
		flags: [][2]string{{"origin", "Name of the origin to book on"}, {"description", "Description"}, {"started", "Start (YYYY-MM-DD HH:MM)"}, {"ended", "End (YYYY-MM-DD HH:MM)"}, {"duration", "Duration, computed from the times when empty"}},
		add: func(s *storage.Store, taskID int, f *fields) (int, error) {
			in := bookingFields(f, storage.BookingInput{})
			if f.err != nil {
				return 0, f.err
			}
			return s.AddBooking(taskID, in)
		},
		edit: func(s *storage.Store, id int, f *fields) error {
			cur, err := s.GetBooking(id)
			if err != nil {
				return err
			}
			in := cur.Input()
			if f.cmd.Flags().Changed("started") || f.cmd.Flags().Changed("ended") {
				// recompute unless a duration is given explicitly
				in.Duration = ""
			}
			in = bookingFields(f, in)
			if f.err != nil {
				return f.err
			}
			return s.UpdateBooking(id, in)
		},
		remove: (*storage.Store).DeleteBooking,
	},
}

func deliveryFields(f *fields, d storage.Delivery) storage.Delivery {
	return storage.Delivery{
		Version:     f.str("version", d.Version),
		Server:      f.str("server", d.Server),
		Environment: f.str("environment", d.Environment),
		DeliveredAt: f.time("at", d.DeliveredAt),
	}
}

func bookingFields(f *fields, in storage.BookingInput) storage.BookingInput {
	return storage.BookingInput{
		Origin:      f.str("origin", in.Origin),
		Description: f.str("description", in.Description),
		StartedAt:   f.time("started", in.StartedAt),
		EndedAt:     f.time("ended", in.EndedAt),
		Duration:    f.str("duration", in.Duration),
	}
}

func newAttachCmd(k attachKind) *cobra.Command {
	parent := &cobra.Command{
		Use:   k.name,
		Short: fmt.Sprintf("Add, edit and remove %s entries", k.name),
	}
	add := &cobra.Command{
		Use:   "add <task-id>",
		Short: fmt.Sprintf("Attach a new %s to a task", k.name),
		Args:  cobra.ExactArgs(1),
		RunE: appctx.WithApp(func(app *appctx.App, cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			id, err := k.add(app.Store, taskID, &fields{cmd: cmd})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s #%d to task #%d\n", k.name, id, taskID)
			return nil
		}),
	}
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the fields given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: appctx.WithApp(func(app *appctx.App, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := k.edit(app.Store, id, &fields{cmd: cmd}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s #%d\n", k.name, id)
			return nil
		}),
	}
	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: fmt.Sprintf("Delete a %s", k.name),
		Args:  cobra.ExactArgs(1),
		RunE: appctx.WithApp(func(app *appctx.App, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := k.remove(app.Store, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s #%d\n", k.name, id)
			return nil
		}),
	}
	for _, c := range []*cobra.Command{add, edit} {
		for _, fl := range k.flags {
			c.Flags().String(fl[0], "", fl[1])
		}
	}
	parent.AddCommand(add, edit, rm)
	return parent
}

var linkTagCmd = &cobra.Command{
	Use:   "tag <link-id> <tag-id>",
	Short: "Label a link with a tag",
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(runLinkTag),
}

var relatedCmd = &cobra.Command{
	Use:   "related <task-id>...",
	Short: "List everything attached to the given tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  appctx.WithApp(runRelated),
}

func init() {
	for _, k := range attachKinds {
		c := newAttachCmd(k)
		if k.name == "link" {
			c.AddCommand(linkTagCmd)
		}
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(relatedCmd)
}

func runLinkTag(app *appctx.App, cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if err := app.Store.TagLink(ids[1], ids[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tagged link #%d with tag #%d\n", ids[0], ids[1])
	return nil
}

func runRelated(app *appctx.App, cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := app.Store.GetTask(id); err != nil {
			return err
		}
	}
	rel, err := app.Store.Related(ids...)
	if err != nil {
		return err
	}
	if rel.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing attached")
		return nil
	}
	printRelated(cmd.OutOrStdout(), rel)
	return nil
}

func printRelated(w io.Writer, rel storage.Related) {
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(w, "%s:\n", title)
		for _, l := range lines {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}

	var lines []string
	for _, d := range rel.Deliveries {
		line := fmt.Sprintf("#%d V %s, %s, %s", d.ID, d.Version, d.Server, d.Environment)
		if d.DeliveredAt.Valid {
			line += ", " + storage.FormatTime(d.DeliveredAt)
		}
		lines = append(lines, line)
	}
	section("Deliveries", lines)

	lines = nil
	for _, l := range rel.Links {
		line := fmt.Sprintf("#%d [%s] %s", l.ID, l.Type, l.RawLink)
		if len(l.Tags) > 0 {
			line += " (" + strings.Join(l.TagLabels(), ", ") + ")"
		}
		lines = append(lines, line)
	}
	section("Links", lines)

	lines = nil
	for _, t := range rel.Tags {
		lines = append(lines, fmt.Sprintf("#%d %s: %s", t.ID, t.Type, t.Keywords))
	}
	section("Tags", lines)

	lines = nil
	for _, o := range rel.Origins {
		line := fmt.Sprintf("#%d %s", o.ID, o.Name)
		if o.Type != "" {
			line += " (" + o.Type + ")"
		}
		if o.RawLink != "" {
			line += " " + o.RawLink
		}
		lines = append(lines, line)
	}
	section("Origins", lines)

	lines = nil
	for _, b := range rel.Bookings {
		parts := []string{fmt.Sprintf("#%d %s", b.ID, b.OriginName)}
		if b.Description != "" {
			parts = append(parts, b.Description)
		}
		parts = append(parts, storage.FormatTime(b.StartedAt)+" - "+storage.FormatTime(b.EndedAt), b.Duration)
		lines = append(lines, strings.Join(parts, ", "))
	}
	section("Bookings", lines)

	lines = nil
	for _, n := range rel.Notes {
		lines = append(lines, fmt.Sprintf("#%d %s", n.ID, n.Title()))
	}
	section("Notes", lines)
}
