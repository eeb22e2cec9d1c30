package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/shelf/internal/db"
)

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestPrune(t *testing.T) {
	f := db.NewFixture(t)
	c := f.Context("home")
	svc := f.Service("jira", "work")
	l := f.List(svc.ID, "sprint")

	doneUnfiled := f.Item("done unfiled", "", 0)
	openUnfiled := f.Item("open unfiled", "", 0)
	doneFiled := f.Item("done filed", c.ID, 0)
	plain := f.Item("no task", "", 0)
	doneButListed := f.Item("done but listed", "", 0)
	doneClosedPlacement := f.Item("done, placement closed", "", 0)

	f.TaskState(&db.TaskState{ItemID: doneUnfiled.ID, Controller: db.ControllerManual, Done: ptr(t0)})
	f.TaskState(&db.TaskState{ItemID: openUnfiled.ID, Controller: db.ControllerManual})
	f.TaskState(&db.TaskState{ItemID: doneFiled.ID, Controller: db.ControllerManual, Done: ptr(t0)})
	f.TaskState(&db.TaskState{ItemID: doneButListed.ID, Controller: db.ControllerManual, Done: ptr(t0)})
	f.TaskState(&db.TaskState{ItemID: doneClosedPlacement.ID, Controller: db.ControllerServiceList, Done: ptr(t0)})
	f.Placements(
		db.Placement{ListID: l.ID, ItemID: doneButListed.ID, Present: t0},
		db.Placement{ListID: l.ID, ItemID: doneClosedPlacement.ID, Present: t0, Done: ptr(t0)},
	)

	var pruned []string
	f.Tx(func(tx *db.TxOps) error {
		var err error
		pruned, err = Prune(tx)
		return err
	})
	assert.ElementsMatch(t, []string{doneUnfiled.ID, doneClosedPlacement.ID}, pruned)

	f.Tx(func(tx *db.TxOps) error {
		ids, err := db.ItemIDsTx(tx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{openUnfiled.ID, doneFiled.ID, plain.ID, doneButListed.ID}, ids)

		// Cascades removed the pruned items' task states and placements.
		n, err := db.CountTx(tx, "task_states", db.Eq("item_id", doneUnfiled.ID))
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = db.CountTx(tx, "list_placements", db.Eq("item_id", doneClosedPlacement.ID))
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
}

func TestPrune_NothingToDo(t *testing.T) {
	f := db.NewFixture(t)
	f.Item("a", "", 0)

	f.Tx(func(tx *db.TxOps) error {
		pruned, err := Prune(tx)
		require.NoError(t, err)
		assert.Empty(t, pruned)
		return nil
	})
}
