// Package taskstate computes each task-like item's effective due and done.
//
// The controller of a task state names its source:
//
//   - manual: due and done are the user's overrides, written directly.
//   - service: the item's service detail carries due and done.
//   - servicelist: due is the earliest placement due across the item's lists
//     and done is the latest departure once every placement is closed.
//
// A manual due override wins over the source for non-manual controllers.
// Effective values are a cache of the source and are rewritten by Recompute.
package taskstate

import (
	"fmt"
	"time"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// TimePatch is an optional change to a nullable timestamp. The zero value
// leaves the field alone; Set with a nil Value clears it.
type TimePatch struct {
	Set   bool
	Value *time.Time
}

// SetTime returns a patch writing t.
func SetTime(t time.Time) TimePatch {
	return TimePatch{Set: true, Value: &t}
}

// ClearTime returns a patch clearing the field.
func ClearTime() TimePatch {
	return TimePatch{Set: true}
}

// apply returns the patched value of prev.
func (p TimePatch) apply(prev *time.Time) *time.Time {
	if p.Set {
		return p.Value
	}
	return prev
}

// Changes is a partial change to a task state.
type Changes struct {
	Controller *db.Controller // nil keeps the current controller
	ManualDue  TimePatch
	ManualDone TimePatch
}

// Create makes itemID task-like under controller. Manual states take the
// overrides directly; other controllers are populated by a recompute.
func Create(tx *db.TxOps, itemID string, controller db.Controller, manualDue, manualDone *time.Time) error {
	it, err := db.GetItemTx(tx, itemID)
	if err != nil {
		return err
	}
	if it == nil {
		return shelferrors.NotFound("item", itemID)
	}
	existing, err := db.GetTaskStateTx(tx, itemID)
	if err != nil {
		return err
	}
	if existing != nil {
		return shelferrors.Validation(fmt.Sprintf("item %s is already a task", itemID), "edit its task controller instead")
	}
	if err := checkSupported(tx, itemID, controller); err != nil {
		return err
	}

	ts := &db.TaskState{ItemID: itemID, Controller: controller, ManualDue: manualDue, ManualDone: manualDone}
	if controller == db.ControllerManual {
		ts.Due, ts.Done = manualDue, manualDone
	}
	if err := db.CreateTaskStateTx(tx, ts); err != nil {
		return err
	}
	if controller == db.ControllerManual {
		return nil
	}
	return Recompute(tx, []string{itemID})
}

// Update changes the task state of itemID.
//
//  1. Resulting controller manual: due and done are the (patched) overrides,
//     written directly.
//  2. Controller unchanged and non-manual: clearing a previously set manual
//     due recomputes the item; otherwise due becomes the new manual due, or
//     stays as it was, and done is untouched.
//  3. Controller changed to a non-manual one: the new controller is stored
//     and the item is recomputed.
func Update(tx *db.TxOps, itemID string, u Changes) error {
	prev, err := db.GetTaskStateTx(tx, itemID)
	if err != nil {
		return err
	}
	if prev == nil {
		return shelferrors.NotFound("task state", itemID)
	}

	controller := prev.Controller
	if u.Controller != nil {
		controller = *u.Controller
	}
	manualDue := u.ManualDue.apply(prev.ManualDue)
	manualDone := u.ManualDone.apply(prev.ManualDone)

	patch := db.Patch{}
	if u.ManualDue.Set {
		patch["manual_due"] = manualDue
	}
	if u.ManualDone.Set {
		patch["manual_done"] = manualDone
	}

	recompute := false
	switch {
	case controller == db.ControllerManual:
		patch["controller"] = string(controller)
		patch["due"] = manualDue
		patch["done"] = manualDone

	case controller == prev.Controller:
		if u.ManualDue.Set && u.ManualDue.Value == nil && prev.ManualDue != nil {
			recompute = true
		} else if u.ManualDue.Set && u.ManualDue.Value != nil {
			patch["due"] = u.ManualDue.Value
		}

	default:
		if err := checkSupported(tx, itemID, controller); err != nil {
			return err
		}
		patch["controller"] = string(controller)
		recompute = true
	}

	if _, err := db.UpdateTaskStatesTx(tx, patch, db.Eq("item_id", itemID)); err != nil {
		return err
	}
	if recompute {
		return Recompute(tx, []string{itemID})
	}
	return nil
}

// Remove makes itemID no longer task-like. Removing a missing state is a no-op.
func Remove(tx *db.TxOps, itemID string) error {
	_, err := db.DeleteTaskStatesTx(tx, db.Eq("item_id", itemID))
	return err
}

// checkSupported verifies that itemID can supply the state controller needs.
func checkSupported(tx *db.TxOps, itemID string, controller db.Controller) error {
	switch controller {
	case db.ControllerManual:
		return nil
	case db.ControllerService:
		d, err := db.GetDetailTx(tx, itemID)
		if err != nil {
			return err
		}
		if d == nil || d.Kind != db.DetailService || !d.Service.HasTaskState {
			return shelferrors.UnsupportedController(itemID, string(controller), "the item has no service detail with task state")
		}
		return nil
	case db.ControllerServiceList:
		n, err := db.CountTx(tx, "list_placements", db.Eq("item_id", itemID))
		if err != nil {
			return err
		}
		if n == 0 {
			return shelferrors.UnsupportedController(itemID, string(controller), "the item was never placed in a list")
		}
		return nil
	default:
		return shelferrors.Validation(fmt.Sprintf("unknown controller %q", controller), "expected manual, service or servicelist")
	}
}
