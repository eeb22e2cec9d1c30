package core

import (
	"context"
	"time"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/taskstate"
)

// EditTaskController makes itemID task-like under controller, switching
// controllers when it already is. A nil controller removes task-ness.
func (s *Service) EditTaskController(ctx context.Context, itemID string, controller *db.Controller) error {
	return s.run(ctx, "edit task controller", func(tx *db.TxOps) error {
		if controller == nil {
			return taskstate.Remove(tx, itemID)
		}
		ts, err := db.GetTaskStateTx(tx, itemID)
		if err != nil {
			return err
		}
		if ts == nil {
			return taskstate.Create(tx, itemID, *controller, nil, nil)
		}
		return taskstate.Update(tx, itemID, taskstate.Changes{Controller: controller})
	})
}

// MarkItemDue sets the manual due override of itemID; nil clears it. An
// item that is not yet a task becomes a manual task.
func (s *Service) MarkItemDue(ctx context.Context, itemID string, due *time.Time) error {
	return s.run(ctx, "mark item due", func(tx *db.TxOps) error {
		return patchOverride(tx, itemID, taskstate.Changes{ManualDue: patchOf(due)}, due, nil)
	})
}

// MarkItemDone sets the manual done override of itemID; nil clears it.
// Only manual tasks take their done from the override.
func (s *Service) MarkItemDone(ctx context.Context, itemID string, done *time.Time) error {
	return s.run(ctx, "mark item done", func(tx *db.TxOps) error {
		return patchOverride(tx, itemID, taskstate.Changes{ManualDone: patchOf(done)}, nil, done)
	})
}

func patchOverride(tx *db.TxOps, itemID string, c taskstate.Changes, due, done *time.Time) error {
	ts, err := db.GetTaskStateTx(tx, itemID)
	if err != nil {
		return err
	}
	if ts != nil {
		return taskstate.Update(tx, itemID, c)
	}
	if due == nil && done == nil {
		it, err := db.GetItemTx(tx, itemID)
		if err != nil {
			return err
		}
		if it == nil {
			return shelferrors.NotFound("item", itemID)
		}
		return nil
	}
	return taskstate.Create(tx, itemID, db.ControllerManual, due, done)
}

func patchOf(t *time.Time) taskstate.TimePatch {
	if t == nil {
		return taskstate.ClearTime()
	}
	return taskstate.SetTime(*t)
}
