package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/shelf/internal/core"
	"github.com/randalmurphal/shelf/internal/db"
)

// treeStyles renders each part of the tree.
type treeStyles struct {
	Title   func(...string) string
	Project func(...string) string
	Section func(...string) string
	Overdue func(...string) string
	Done    func(...string) string
	Subtle  func(...string) string
}

func colorStyles() treeStyles {
	return treeStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render,
		Project: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170")).Render,
		Section: lipgloss.NewStyle().Underline(true).Render,
		Overdue: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render,
		Done:    lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render,
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render,
	}
}

func plainStyles() treeStyles {
	plain := func(s ...string) string { return strings.Join(s, " ") }
	return treeStyles{Title: plain, Project: plain, Section: plain, Overdue: plain, Done: plain, Subtle: plain}
}

// treeOptions controls which items renderTree shows.
type treeOptions struct {
	All bool
	Now time.Time
}

// newTreeCmd creates the tree command.
func newTreeCmd() *cobra.Command {
	var (
		all     bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the inbox and every context, project and section",
		Long: `Show the inbox and the user's hierarchy with items in order.

Tasks show as [ ] or [x] with their effective due. Archived items and
items snoozed into the future are hidden unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.currentUser(ctx)
				if err != nil {
					return err
				}
				tree, err := a.svc.Tree(ctx, u.ID)
				if err != nil {
					return err
				}
				styles := plainStyles()
				if !noColor && isatty.IsTerminal(os.Stdout.Fd()) {
					styles = colorStyles()
				}
				return a.emit(tree, func(w io.Writer) {
					renderTree(w, tree, styles, treeOptions{All: all, Now: db.Now()})
				})
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include archived and snoozed items")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func renderTree(w io.Writer, t *core.Tree, st treeStyles, opts treeOptions) {
	_, _ = fmt.Fprintln(w, st.Title("Inbox"))
	shown := renderItems(w, t.Inbox, 1, st, opts)
	if shown == 0 {
		_, _ = fmt.Fprintln(w, "  "+st.Subtle("(empty)"))
	}

	for _, c := range t.Contexts {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, st.Title(c.Context.Name)+" "+st.Subtle(c.Context.ID))
		renderProject(w, c.Root, 1, st, opts)
	}
}

// renderProject writes p's sections and then its child projects. The
// anonymous project and section add no heading of their own.
func renderProject(w io.Writer, p core.ProjectNode, depth int, st treeStyles, opts treeOptions) {
	for _, s := range p.Sections {
		itemDepth := depth
		if label := sectionLabel(s.Section); label != "" {
			_, _ = fmt.Fprintln(w, indent(depth)+st.Section(label)+" "+st.Subtle(s.Section.ID))
			itemDepth++
		}
		renderItems(w, s.Items, itemDepth, st, opts)
	}
	for _, child := range p.Children {
		_, _ = fmt.Fprintln(w, indent(depth)+st.Project(child.Project.Name)+" "+st.Subtle(child.Project.ID))
		renderProject(w, child, depth+1, st, opts)
	}
}

func renderItems(w io.Writer, items []core.ItemNode, depth int, st treeStyles, opts treeOptions) int {
	shown := 0
	for _, n := range items {
		if !opts.All && hidden(n.Item, opts.Now) {
			continue
		}
		_, _ = fmt.Fprintln(w, indent(depth)+itemLine(n, st, opts.Now))
		shown++
	}
	return shown
}

func hidden(it db.Item, now time.Time) bool {
	return it.Archived != nil || (it.Snoozed != nil && it.Snoozed.After(now))
}

func itemLine(n core.ItemNode, st treeStyles, now time.Time) string {
	var b strings.Builder
	ts := n.Task
	switch {
	case ts == nil:
		b.WriteString("-   ")
	case ts.Done != nil:
		b.WriteString(st.Done("[x]") + " ")
	default:
		b.WriteString("[ ] ")
	}
	b.WriteString(n.Item.Title)

	if ts != nil && ts.Done == nil && ts.Due != nil {
		due := "due " + formatWhen(ts.Due)
		if ts.Due.Before(now) {
			due = st.Overdue(due)
		}
		b.WriteString("  " + due)
	}

	var tags []string
	if n.Item.Archived != nil {
		tags = append(tags, "archived")
	}
	if n.Item.Snoozed != nil && n.Item.Snoozed.After(now) {
		tags = append(tags, "snoozed until "+formatWhen(n.Item.Snoozed))
	}
	tags = append(tags, n.Item.ID)
	b.WriteString("  " + st.Subtle("("+strings.Join(tags, ", ")+")"))
	return b.String()
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
