package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// runCLI executes a fresh root command and returns its combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// mustRun is runCLI that fails the test on error.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, "shelf %s: %s", strings.Join(args, " "), out)
	return out
}

// setupWorkspace initializes shelf with user ada in a fresh directory.
func setupWorkspace(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHELF_USER", "")
	mustRun(t, "init", "--create-user", "ada")
}

// decode parses the --json output of a command into v.
func decode(t *testing.T, out string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestInit(t *testing.T) {
	setupWorkspace(t)

	_, err := os.Stat(filepath.Join(".shelf", "config.yaml"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(".shelf", "shelf.db"))
	require.NoError(t, err)

	out := mustRun(t, "user", "show")
	assert.Contains(t, out, "ada")

	_, err = runCLI(t, "init")
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeAlreadyInitialized))
}

func TestCommandsRequireInit(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, err := runCLI(t, "item", "add", "x")
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeNotInitialized))
}

func TestUnknownUser(t *testing.T) {
	setupWorkspace(t)

	_, err := runCLI(t, "--user", "grace", "tree")
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeNotFound))
}

func TestItemLifecycle(t *testing.T) {
	setupWorkspace(t)

	var it db.Item
	decode(t, mustRun(t, "--json", "item", "add", "Read paper", "--note", "section 3"), &it)
	require.NotEmpty(t, it.ID)
	assert.Equal(t, "Read paper", it.Title)
	assert.Empty(t, it.SectionID)

	out := mustRun(t, "tree")
	assert.Contains(t, out, "Inbox")
	assert.Contains(t, out, "Read paper")
	assert.Contains(t, out, "personal")

	out = mustRun(t, "item", "show", it.ID)
	assert.Contains(t, out, "filed:     inbox")
	assert.Contains(t, out, "note:      section 3")

	mustRun(t, "item", "edit", it.ID, "--title", "Read the paper", "--clear-detail")
	out = mustRun(t, "item", "show", it.ID)
	assert.Contains(t, out, "Read the paper")
	assert.NotContains(t, out, "note:")

	// Done unfiled tasks leave the inbox.
	mustRun(t, "task", "done", it.ID)
	_, err := runCLI(t, "item", "show", it.ID)
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeNotFound))
}

func TestFiledItemAndTasks(t *testing.T) {
	setupWorkspace(t)

	var c db.Context
	decode(t, mustRun(t, "--json", "context", "add", "work"), &c)
	var p db.Project
	decode(t, mustRun(t, "--json", "project", "add", c.ID, "launch"), &p)
	var s db.Section
	decode(t, mustRun(t, "--json", "section", "add", p.ID, "todo"), &s)
	assert.Equal(t, 0, s.Index)

	var it db.Item
	decode(t, mustRun(t, "--json", "item", "add", "Docs",
		"--in", "section:"+s.ID, "--link", "https://go.dev/doc", "--due", "2026-11-01"), &it)
	assert.Equal(t, s.ID, it.SectionID)

	out := mustRun(t, "item", "show", it.ID)
	assert.Contains(t, out, "link:      https://go.dev/doc")
	assert.Contains(t, out, "task:      manual")

	out = mustRun(t, "tree")
	assert.Contains(t, out, "launch")
	assert.Contains(t, out, "todo")
	assert.Contains(t, out, "[ ] Docs")

	mustRun(t, "task", "done", it.ID)
	out = mustRun(t, "tree")
	assert.Contains(t, out, "[x] Docs", "filed items stay after they are done")

	mustRun(t, "task", "controller", it.ID, "none")
	out = mustRun(t, "item", "show", it.ID)
	assert.NotContains(t, out, "task:")

	mustRun(t, "item", "mv", it.ID, "--unfile")
	mustRun(t, "item", "rm", it.ID)
	_, err := runCLI(t, "item", "show", it.ID)
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeNotFound))
}

func TestItemFlagValidation(t *testing.T) {
	setupWorkspace(t)

	tests := []struct {
		name string
		args []string
	}{
		{"two details", []string{"item", "add", "x", "--link", "https://a", "--note", "b"}},
		{"bad holder", []string{"item", "add", "x", "--in", "shelf:1"}},
		{"bad due", []string{"item", "add", "x", "--due", "someday"}},
		{"bad controller", []string{"item", "add", "x", "--task", "robot"}},
		{"mv nowhere", []string{"item", "mv", "abc"}},
		{"mv both", []string{"item", "mv", "abc", "--in", "context:1", "--unfile"}},
		{"archive twice", []string{"item", "edit", "abc", "--archive", "--unarchive"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			assert.True(t, shelferrors.HasCode(err, shelferrors.CodeValidation), "got %v", err)
		})
	}
}

func TestServicesAndLists(t *testing.T) {
	setupWorkspace(t)

	var svc db.Service
	decode(t, mustRun(t, "--json", "service", "add", "jira", "work",
		"--url", "https://acme.atlassian.net", "--email", "ada@acme.com"), &svc)
	assert.Equal(t, "jira", svc.Kind)

	_, err := runCLI(t, "service", "add", "trello", "x")
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeValidation))

	var l db.List
	decode(t, mustRun(t, "--json", "list", "add", svc.ID, "sprint",
		"--query", "sprint in openSprints()", "--due-offset", "3d"), &l)
	assert.Equal(t, "3d", l.DueOffset)

	var a, b db.Item
	decode(t, mustRun(t, "--json", "item", "add", "a"), &a)
	decode(t, mustRun(t, "--json", "item", "add", "b"), &b)

	// servicelist needs a placement first.
	_, err = runCLI(t, "task", "controller", a.ID, "servicelist")
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeUnsupportedController))

	out := mustRun(t, "list", "set", l.ID, a.ID, b.ID)
	assert.Contains(t, out, "2 added")
	mustRun(t, "task", "controller", a.ID, "servicelist")
	mustRun(t, "task", "controller", b.ID, "servicelist")
	out = mustRun(t, "list", "set", l.ID, a.ID)
	assert.Contains(t, out, "1 kept")
	assert.Contains(t, out, "1 closed")

	// b left its only list, so it is done and unfiled.
	_, err = runCLI(t, "item", "show", b.ID)
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeNotFound))

	out = mustRun(t, "item", "show", a.ID)
	assert.Contains(t, out, "list "+l.ID)

	mustRun(t, "list", "edit", l.ID, "--name", "current sprint")
	out = mustRun(t, "service", "ls")
	assert.Contains(t, out, "current sprint")
	assert.Contains(t, out, "due +3d")

	mustRun(t, "list", "rm", l.ID)
	out = mustRun(t, "service", "ls")
	assert.NotContains(t, out, "current sprint")

	out = mustRun(t, "service", "clear-problems", svc.ID)
	assert.Contains(t, out, "Cleared 0 problem(s)")
}

func TestConfigCommands(t *testing.T) {
	setupWorkspace(t)

	out := mustRun(t, "config", "get", "sync.interval")
	assert.Equal(t, "15m0s\n", out)

	out = mustRun(t, "config", "set", "sync.interval", "30m")
	assert.Contains(t, out, "in .shelf/config.yaml")

	out = mustRun(t, "config", "get", "sync.interval", "--source")
	assert.Contains(t, out, "30m0s")
	assert.Contains(t, out, "project")

	out = mustRun(t, "config", "show")
	assert.Contains(t, out, "user: ada")
	assert.Contains(t, out, "interval: 30m0s")

	_, err := runCLI(t, "config", "set", "sync.interval", "5s")
	assert.True(t, shelferrors.HasCode(err, shelferrors.CodeConfigInvalid))

	mustRun(t, "config", "set", "--global", "logging.level", "debug")
	_, err = os.Stat(filepath.Join(os.Getenv("HOME"), ".shelf", "config.yaml"))
	require.NoError(t, err)
}

func TestSyncWithoutServices(t *testing.T) {
	setupWorkspace(t)

	out := mustRun(t, "sync")
	assert.Contains(t, out, "Synced 0 account(s), 0 list(s)")
}
