package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/shelf/internal/core"
	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/placement"
)

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func TestParseWhen(t *testing.T) {
	local := time.Date(2026, 5, 2, 0, 0, 0, 0, time.Local).UTC()
	localMinute := time.Date(2026, 5, 2, 9, 30, 0, 0, time.Local).UTC()

	tests := []struct {
		in   string
		want *time.Time
	}{
		{"", nil},
		{"none", nil},
		{"now", &now},
		{"+3d", ptr(now.Add(72 * time.Hour))},
		{"+12h", ptr(now.Add(12 * time.Hour))},
		{"2026-05-02", &local},
		{"2026-05-02 09:30", &localMinute},
		{"2026-05-02T09:30", &localMinute},
		{"2026-05-02T09:30:00Z", ptr(time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWhen(tt.in, now)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %s, got %s", tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, bad := range []string{"someday", "+3x", "2026-13-01"} {
		_, err := parseWhen(bad, now)
		assert.True(t, shelferrors.HasCode(err, shelferrors.CodeValidation), "parseWhen(%q) = %v", bad, err)
	}
}

func TestParseHolder(t *testing.T) {
	h, err := parseHolder("")
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = parseHolder("project:abc")
	require.NoError(t, err)
	assert.Equal(t, &placement.Holder{Kind: placement.HolderProject, ID: "abc"}, h)

	for _, bad := range []string{"abc", "section:", "shelf:abc"} {
		_, err := parseHolder(bad)
		assert.True(t, shelferrors.HasCode(err, shelferrors.CodeValidation), "parseHolder(%q) = %v", bad, err)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, shelferrors.NotFound("item", "abc"))
	assert.Contains(t, buf.String(), "Error: item abc not found")
	assert.Contains(t, buf.String(), "Why: ")
	assert.NotContains(t, buf.String(), "Code:")

	buf.Reset()
	PrintError(&buf, errors.New("disk on fire"))
	assert.Equal(t, "Error: disk on fire\n", buf.String())
}

func TestRenderTree(t *testing.T) {
	later := now.Add(24 * time.Hour)
	earlier := now.Add(-24 * time.Hour)

	tree := &core.Tree{
		Inbox: []core.ItemNode{
			{Item: db.Item{ID: "i1", Title: "Read paper"}},
			{Item: db.Item{ID: "i2", Title: "Old", Archived: &earlier}},
		},
		Contexts: []core.ContextNode{{
			Context: db.Context{ID: "c1", Name: "work"},
			Root: core.ProjectNode{
				Project: db.Project{ID: "c1", ContextID: "c1"},
				Sections: []core.SectionNode{
					{
						Section: db.Section{ID: "c1", ProjectID: "c1", Index: db.AnonymousIndex},
						Items: []core.ItemNode{{
							Item: db.Item{ID: "i3", Title: "Pay invoice"},
							Task: &db.TaskState{ItemID: "i3", Controller: db.ControllerManual, Due: &earlier},
						}},
					},
					{
						Section: db.Section{ID: "s1", ProjectID: "c1", Name: "later", Index: 0},
						Items: []core.ItemNode{
							{
								Item: db.Item{ID: "i4", Title: "Ship it"},
								Task: &db.TaskState{ItemID: "i4", Controller: db.ControllerManual, Done: &earlier},
							},
							{Item: db.Item{ID: "i5", Title: "Nap", Snoozed: &later}},
						},
					},
				},
				Children: []core.ProjectNode{{
					Project: db.Project{ID: "p1", ContextID: "c1", ParentID: "c1", Name: "launch"},
				}},
			},
		}},
	}

	var buf bytes.Buffer
	renderTree(&buf, tree, plainStyles(), treeOptions{Now: now})
	out := buf.String()

	assert.Contains(t, out, "Inbox\n  -   Read paper  (i1)\n")
	assert.NotContains(t, out, "Old")
	assert.Contains(t, out, "work c1\n")
	assert.Contains(t, out, "  [ ] Pay invoice  due "+formatWhen(&earlier)+"  (i3)\n")
	assert.Contains(t, out, "  later s1\n    [x] Ship it  (i4)\n")
	assert.NotContains(t, out, "Nap")
	assert.Contains(t, out, "  launch p1\n")

	buf.Reset()
	renderTree(&buf, tree, plainStyles(), treeOptions{All: true, Now: now})
	out = buf.String()
	assert.Contains(t, out, "Old  (archived, i2)")
	assert.Contains(t, out, "Nap  (snoozed until "+formatWhen(&later)+", i5)")

	buf.Reset()
	renderTree(&buf, &core.Tree{}, plainStyles(), treeOptions{Now: now})
	assert.Equal(t, "Inbox\n  (empty)\n", buf.String())
	assert.False(t, strings.Contains(buf.String(), "work"))
}

func ptr(t time.Time) *time.Time { return &t }
