package taskstate

import (
	"fmt"

	"github.com/randalmurphal/shelf/internal/db"
)

// Recompute rewrites the effective due/done of the non-manual task states of
// ids from their sources. An empty ids is a no-op.
func Recompute(tx *db.TxOps, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	states, err := db.FindTaskStatesTx(tx, db.In("item_id", ids), db.Ne("controller", string(db.ControllerManual)))
	if err != nil {
		return err
	}
	return recompute(tx, states)
}

// RecomputeAll rewrites every non-manual task state.
func RecomputeAll(tx *db.TxOps) error {
	states, err := db.FindTaskStatesTx(tx, db.Ne("controller", string(db.ControllerManual)))
	if err != nil {
		return err
	}
	return recompute(tx, states)
}

func recompute(tx *db.TxOps, states []db.TaskState) error {
	if len(states) == 0 {
		return nil
	}

	ids := make([]string, len(states))
	for i, ts := range states {
		ids[i] = ts.ItemID
	}

	lists, err := db.ListAggregatesTx(tx, ids)
	if err != nil {
		return err
	}
	services, err := db.ServiceAggregatesTx(tx, ids)
	if err != nil {
		return err
	}

	dates := make(map[string]db.TaskDates, len(states))
	for _, ts := range states {
		var source db.TaskDates
		switch ts.Controller {
		case db.ControllerServiceList:
			source = lists[ts.ItemID]
		case db.ControllerService:
			source = services[ts.ItemID]
		case db.ControllerManual:
			continue
		default:
			return fmt.Errorf("task state %s has unknown controller %q", ts.ItemID, ts.Controller)
		}
		dates[ts.ItemID] = merge(ts, source)
	}

	return db.SetTaskDatesTx(tx, dates)
}

// merge picks the effective values for ts: the manual due wins over the
// source's due, done always comes from the source.
func merge(ts db.TaskState, source db.TaskDates) db.TaskDates {
	out := db.TaskDates{Due: source.Due, Done: source.Done}
	if ts.ManualDue != nil {
		out.Due = ts.ManualDue
	}
	return out
}
