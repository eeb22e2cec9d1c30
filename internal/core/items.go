package core

import (
	"context"
	"strings"
	"time"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/placement"
	"github.com/randalmurphal/shelf/internal/taskstate"
)

// TaskSpec makes a new item task-like.
type TaskSpec struct {
	Controller db.Controller
	ManualDue  *time.Time
	ManualDone *time.Time
}

// NewItem describes an item to create.
type NewItem struct {
	UserID string
	Title  string

	// Holder is nil for an unfiled item.
	Holder   *placement.Holder
	BeforeID string

	// Detail is optional; its ItemID is filled in.
	Detail *db.Detail
	Task   *TaskSpec
}

// ItemChanges is a partial edit of an item. Nil fields are left alone.
type ItemChanges struct {
	Title    *string
	Archived taskstate.TimePatch
	Snoozed  taskstate.TimePatch

	// Detail replaces the item's detail; ClearDetail removes it.
	Detail      *db.Detail
	ClearDetail bool
}

// ItemView is an item with everything attached to it.
type ItemView struct {
	Item       db.Item
	Detail     *db.Detail
	Task       *db.TaskState
	Placements []db.Placement
}

// CreateItem creates an item, files it and attaches its detail and task
// state.
func (s *Service) CreateItem(ctx context.Context, n NewItem) (*db.Item, error) {
	if strings.TrimSpace(n.Title) == "" {
		return nil, shelferrors.Validation("item title is required", "give the item a title")
	}
	it := &db.Item{UserID: n.UserID, Title: n.Title}
	err := s.run(ctx, "create item", func(tx *db.TxOps) error {
		u, err := db.GetUserTx(tx, n.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return shelferrors.NotFound("user", n.UserID)
		}

		it.SectionID, it.SectionIndex, err = placement.Locate(tx, n.UserID, n.Holder, n.BeforeID)
		if err != nil {
			return err
		}
		if err := db.CreateItemTx(tx, it); err != nil {
			return err
		}

		if n.Detail != nil {
			d := *n.Detail
			d.ItemID = it.ID
			if err := db.SaveDetailTx(tx, &d); err != nil {
				return err
			}
		}
		if n.Task != nil {
			return taskstate.Create(tx, it.ID, n.Task.Controller, n.Task.ManualDue, n.Task.ManualDone)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// MoveItem files itemID under holder before beforeID, or last. A nil
// holder unfiles the item.
func (s *Service) MoveItem(ctx context.Context, itemID string, holder *placement.Holder, beforeID string) error {
	return s.run(ctx, "move item", func(tx *db.TxOps) error {
		return placement.MoveItem(tx, itemID, holder, beforeID)
	})
}

// EditItem applies c to itemID.
func (s *Service) EditItem(ctx context.Context, itemID string, c ItemChanges) error {
	return s.run(ctx, "edit item", func(tx *db.TxOps) error {
		it, err := db.GetItemTx(tx, itemID)
		if err != nil {
			return err
		}
		if it == nil {
			return shelferrors.NotFound("item", itemID)
		}

		patch := db.Patch{}
		if c.Title != nil {
			if strings.TrimSpace(*c.Title) == "" {
				return shelferrors.Validation("item title is required", "give the item a title")
			}
			patch["title"] = *c.Title
		}
		if c.Archived.Set {
			patch["archived"] = c.Archived.Value
		}
		if c.Snoozed.Set {
			patch["snoozed"] = c.Snoozed.Value
		}
		if _, err := db.UpdateItemsTx(tx, patch, db.Eq("id", itemID)); err != nil {
			return err
		}

		switch {
		case c.ClearDetail:
			if _, err := db.DeleteDetailsTx(tx, db.Eq("item_id", itemID)); err != nil {
				return err
			}
		case c.Detail != nil:
			d := *c.Detail
			d.ItemID = itemID
			if err := db.SaveDetailTx(tx, &d); err != nil {
				return err
			}
		default:
			return nil
		}

		// The service source may have changed under a service-controlled task.
		ts, err := db.GetTaskStateTx(tx, itemID)
		if err != nil || ts == nil || ts.Controller != db.ControllerService {
			return err
		}
		return taskstate.Recompute(tx, []string{itemID})
	})
}

// DeleteItem deletes itemID with its detail, task state and placements.
func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	return s.run(ctx, "delete item", func(tx *db.TxOps) error {
		n, err := db.DeleteItemsTx(tx, db.Eq("id", itemID))
		if err != nil {
			return err
		}
		if n == 0 {
			return shelferrors.NotFound("item", itemID)
		}
		return nil
	})
}

// GetItem returns itemID with its detail, task state and placements.
func (s *Service) GetItem(ctx context.Context, itemID string) (*ItemView, error) {
	var v *ItemView
	err := s.run(ctx, "get item", func(tx *db.TxOps) error {
		it, err := db.GetItemTx(tx, itemID)
		if err != nil {
			return err
		}
		if it == nil {
			return shelferrors.NotFound("item", itemID)
		}
		v = &ItemView{Item: *it}
		if v.Detail, err = db.GetDetailTx(tx, itemID); err != nil {
			return err
		}
		if v.Task, err = db.GetTaskStateTx(tx, itemID); err != nil {
			return err
		}
		v.Placements, err = db.FindPlacementsTx(tx, db.Eq("item_id", itemID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
