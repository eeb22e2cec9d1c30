package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/shelf/internal/core"
	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/services"
	"github.com/randalmurphal/shelf/internal/taskstate"
)

// newItemCmd creates the item command with subcommands.
func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage items",
		Long: `Manage tasks, bookmarks, notes and files.

Items are filed under a holder given as kind:id, where kind is context,
project or section. Items without a holder are unfiled and live in the
inbox until they are done or archived.`,
	}

	cmd.AddCommand(newItemAddCmd())
	cmd.AddCommand(newItemMvCmd())
	cmd.AddCommand(newItemEditCmd())
	cmd.AddCommand(newItemRmCmd())
	cmd.AddCommand(newItemShowCmd())

	return cmd
}

// detailFlags are the flags shared by item add and item edit.
type detailFlags struct {
	link string
	note string
	file string
}

func (f *detailFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.link, "link", "", "bookmark URL")
	cmd.Flags().StringVar(&f.note, "note", "", "note text")
	cmd.Flags().StringVar(&f.file, "file", "", "path of a file to attach")
}

// detail builds the item detail named by the flags, or nil if none is set.
func (f *detailFlags) detail() (*db.Detail, error) {
	set := 0
	for _, v := range []string{f.link, f.note, f.file} {
		if v != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return nil, nil
	case set > 1:
		return nil, shelferrors.Validation("an item has at most one detail", "pass only one of --link, --note or --file")
	case f.link != "":
		return &db.Detail{Kind: db.DetailLink, Link: &db.LinkDetail{URL: f.link}}, nil
	case f.note != "":
		return &db.Detail{Kind: db.DetailNote, Note: &db.NoteDetail{Body: f.note}}, nil
	}

	info, err := os.Stat(f.file)
	if err != nil {
		return nil, shelferrors.Validation(fmt.Sprintf("cannot read file %s", f.file), err.Error())
	}
	if info.IsDir() {
		return nil, shelferrors.Validation(fmt.Sprintf("%s is a directory", f.file), "attach a regular file")
	}
	mimeType := mime.TypeByExtension(filepath.Ext(f.file))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &db.Detail{Kind: db.DetailFile, File: &db.FileDetail{
		FileName: filepath.Base(f.file),
		FileSize: info.Size(),
		MimeType: mimeType,
	}}, nil
}

func newItemAddCmd() *cobra.Command {
	var (
		in         string
		before     string
		controller string
		due        string
		details    detailFlags
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an item",
		Long: `Create an item, unfiled or under a holder.

Examples:
  shelf item add "Read paper"
  shelf item add "Docs" --in project:<id> --link https://go.dev/doc
  shelf item add "Renew passport" --task manual --due 2026-11-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.currentUser(ctx)
				if err != nil {
					return err
				}
				holder, err := parseHolder(in)
				if err != nil {
					return err
				}
				detail, err := details.detail()
				if err != nil {
					return err
				}

				n := core.NewItem{UserID: u.ID, Title: args[0], Holder: holder, BeforeID: before, Detail: detail}
				if controller != "" || due != "" {
					task := &core.TaskSpec{Controller: db.ControllerManual}
					if controller != "" {
						if task.Controller, err = db.ParseController(controller); err != nil {
							return shelferrors.Validation(err.Error(), "expected manual, service or servicelist")
						}
					}
					if task.ManualDue, err = parseWhen(due, db.Now()); err != nil {
						return err
					}
					n.Task = task
				}

				it, err := a.svc.CreateItem(ctx, n)
				if err != nil {
					return err
				}
				return a.emit(it, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Created item %s (%s)\n", it.Title, it.ID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "holder as kind:id (context, project or section)")
	cmd.Flags().StringVar(&before, "before", "", "sibling item id to insert before")
	cmd.Flags().StringVar(&controller, "task", "", "make the item a task with this controller (manual, service, servicelist)")
	cmd.Flags().StringVar(&due, "due", "", "manual due time (implies --task manual)")
	details.register(cmd)

	return cmd
}

func newItemMvCmd() *cobra.Command {
	var (
		in     string
		before string
		unfile bool
	)

	cmd := &cobra.Command{
		Use:   "mv <item-id>",
		Short: "Move an item to a holder, or back to the inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (in == "") == !unfile {
				return shelferrors.Validation("nowhere to move the item", "pass exactly one of --in or --unfile")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				holder, err := parseHolder(in)
				if err != nil {
					return err
				}
				if err := a.svc.MoveItem(ctx, args[0], holder, before); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Moved item %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "holder as kind:id (context, project or section)")
	cmd.Flags().StringVar(&before, "before", "", "sibling item id to move before")
	cmd.Flags().BoolVar(&unfile, "unfile", false, "move the item to the inbox")

	return cmd
}

func newItemEditCmd() *cobra.Command {
	var (
		title       string
		archive     bool
		unarchive   bool
		snooze      string
		unsnooze    bool
		clearDetail bool
		details     detailFlags
	)

	cmd := &cobra.Command{
		Use:   "edit <item-id>",
		Short: "Edit an item's title, archive/snooze state or detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := db.Now()
			var c core.ItemChanges
			if cmd.Flags().Changed("title") {
				c.Title = &title
			}
			switch {
			case archive && unarchive:
				return shelferrors.Validation("conflicting archive flags", "pass --archive or --unarchive, not both")
			case archive:
				c.Archived = taskstate.SetTime(now)
			case unarchive:
				c.Archived = taskstate.ClearTime()
			}
			switch {
			case snooze != "" && unsnooze:
				return shelferrors.Validation("conflicting snooze flags", "pass --snooze or --unsnooze, not both")
			case snooze != "":
				t, err := parseWhen(snooze, now)
				if err != nil {
					return err
				}
				if t == nil {
					c.Snoozed = taskstate.ClearTime()
				} else {
					c.Snoozed = taskstate.SetTime(*t)
				}
			case unsnooze:
				c.Snoozed = taskstate.ClearTime()
			}

			detail, err := details.detail()
			if err != nil {
				return err
			}
			if detail != nil && clearDetail {
				return shelferrors.Validation("conflicting detail flags", "pass a new detail or --clear-detail, not both")
			}
			c.Detail = detail
			c.ClearDetail = clearDetail

			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.EditItem(ctx, args[0], c); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Updated item %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().BoolVar(&archive, "archive", false, "archive the item now")
	cmd.Flags().BoolVar(&unarchive, "unarchive", false, "clear the archive time")
	cmd.Flags().StringVar(&snooze, "snooze", "", "snooze until this time (e.g. +2d)")
	cmd.Flags().BoolVar(&unsnooze, "unsnooze", false, "clear the snooze time")
	cmd.Flags().BoolVar(&clearDetail, "clear-detail", false, "remove the item's detail")
	details.register(cmd)

	return cmd
}

func newItemRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <item-id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.DeleteItem(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Deleted item %s\n", args[0])
				return nil
			})
		},
	}
}

func newItemShowCmd() *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show an item with its detail, task state and list placements",
		Long: `Show an item with its detail, task state and list placements.

For items mirrored from a service, --field reads a value from the remote
item's raw fields with a gjson path, e.g. --field fields.priority.name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				v, err := a.svc.GetItem(ctx, args[0])
				if err != nil {
					return err
				}

				if field != "" {
					if v.Detail == nil || v.Detail.Service == nil {
						return shelferrors.Validation("item has no service detail", "--field reads mirrored service items only")
					}
					res := services.DetailField(v.Detail.Service, field)
					if !res.Exists() {
						return shelferrors.NotFound("field", field)
					}
					_, _ = fmt.Fprintln(a.out, res.String())
					return nil
				}

				return a.emit(v, func(w io.Writer) { printItemView(w, v) })
			})
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "gjson path into a service item's raw fields")

	return cmd
}

func printItemView(w io.Writer, v *core.ItemView) {
	it := v.Item
	_, _ = fmt.Fprintf(w, "%s\n", it.Title)
	_, _ = fmt.Fprintf(w, "  id:        %s\n", it.ID)
	if it.SectionID == "" {
		_, _ = fmt.Fprintf(w, "  filed:     inbox\n")
	} else {
		_, _ = fmt.Fprintf(w, "  filed:     section %s at %d\n", it.SectionID, it.SectionIndex)
	}
	if it.Archived != nil {
		_, _ = fmt.Fprintf(w, "  archived:  %s\n", formatWhen(it.Archived))
	}
	if it.Snoozed != nil {
		_, _ = fmt.Fprintf(w, "  snoozed:   %s\n", formatWhen(it.Snoozed))
	}

	if d := v.Detail; d != nil {
		switch d.Kind {
		case db.DetailLink:
			_, _ = fmt.Fprintf(w, "  link:      %s\n", d.Link.URL)
		case db.DetailNote:
			_, _ = fmt.Fprintf(w, "  note:      %s\n", strings.ReplaceAll(d.Note.Body, "\n", "\n             "))
		case db.DetailFile:
			_, _ = fmt.Fprintf(w, "  file:      %s (%d bytes, %s)\n", d.File.FileName, d.File.FileSize, d.File.MimeType)
		case db.DetailService:
			_, _ = fmt.Fprintf(w, "  remote:    %s %s\n", d.Service.RemoteKey, d.Service.URL)
		}
	}

	if ts := v.Task; ts != nil {
		_, _ = fmt.Fprintf(w, "  task:      %s, due %s, done %s\n", ts.Controller, formatWhen(ts.Due), formatWhen(ts.Done))
		if ts.ManualDue != nil || ts.ManualDone != nil {
			_, _ = fmt.Fprintf(w, "  override:  due %s, done %s\n", formatWhen(ts.ManualDue), formatWhen(ts.ManualDone))
		}
	}

	for _, p := range v.Placements {
		state := "open"
		if !p.IsOpen() {
			state = "closed " + formatWhen(p.Done)
		}
		_, _ = fmt.Fprintf(w, "  list %s:  joined %s, due %s, %s\n", p.ListID, formatWhen(&p.Present), formatWhen(p.Due), state)
	}
}
