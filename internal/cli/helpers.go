package cli

import (
	"fmt"
	"strings"
	"time"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/lists"
	"github.com/randalmurphal/shelf/internal/placement"
)

var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseWhen parses a time argument. "none" (or "") means no time, "now" is
// now, "+3d" is an offset from now, and dates without a zone are local.
func parseWhen(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "none":
		return nil, nil
	case "now":
		t := now.UTC()
		return &t, nil
	}
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		o, err := lists.ParseDueOffset(rest)
		if err != nil {
			return nil, err
		}
		t := o.Resolve(now).UTC()
		return &t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, shelferrors.Validation(
		fmt.Sprintf("cannot parse time %q", s),
		"use YYYY-MM-DD, YYYY-MM-DD HH:MM, RFC 3339, now, none or an offset like +3d",
	)
}

// parseHolder parses "kind:id", e.g. "section:0192...". An empty string is
// no holder.
func parseHolder(s string) (*placement.Holder, error) {
	if s == "" {
		return nil, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return nil, shelferrors.Validation(fmt.Sprintf("cannot parse holder %q", s), "expected kind:id, like project:<id>")
	}
	k, err := placement.ParseHolderKind(kind)
	if err != nil {
		return nil, err
	}
	return &placement.Holder{Kind: k, ID: id}, nil
}

func formatWhen(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
