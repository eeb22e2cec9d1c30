// Package lists keeps list placements in step with the remote membership of
// externally synchronized lists.
//
// A placement is never deleted when its item leaves a list; it is closed by
// stamping done. Placements go away only with their list or their item.
package lists

import (
	"fmt"
	"time"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/taskstate"
)

// Result reports what SetItems did, by item id.
type Result struct {
	Added    []string
	Kept     []string
	Reopened []string
	Closed   []string
}

// Touched returns every item id whose placement was written.
func (r *Result) Touched() []string {
	out := make([]string, 0, len(r.Added)+len(r.Kept)+len(r.Closed))
	out = append(out, r.Added...)
	out = append(out, r.Kept...)
	out = append(out, r.Closed...)
	return out
}

// Changes is a partial edit of list metadata.
type Changes struct {
	Name      *string
	URL       *string
	Query     *string
	DueOffset *string
}

// Create adds a list to serviceID.
func Create(tx *db.TxOps, serviceID, name, url, query, dueOffset string) (*db.List, error) {
	svc, err := db.GetServiceTx(tx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, shelferrors.NotFound("service", serviceID)
	}
	if name == "" {
		return nil, shelferrors.Validation("list name is required", "give the list a name")
	}
	if dueOffset != "" {
		if _, err := ParseDueOffset(dueOffset); err != nil {
			return nil, err
		}
	}

	l := &db.List{ServiceID: serviceID, Name: name, URL: url, Query: query, DueOffset: dueOffset}
	if err := db.CreateListTx(tx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Edit changes list metadata. Membership is changed with SetItems.
func Edit(tx *db.TxOps, listID string, c Changes) error {
	if _, err := load(tx, listID); err != nil {
		return err
	}

	patch := db.Patch{}
	if c.Name != nil {
		if *c.Name == "" {
			return shelferrors.Validation("list name is required", "give the list a name")
		}
		patch["name"] = *c.Name
	}
	if c.URL != nil {
		patch["url"] = *c.URL
	}
	if c.Query != nil {
		patch["query"] = *c.Query
	}
	if c.DueOffset != nil {
		if *c.DueOffset != "" {
			if _, err := ParseDueOffset(*c.DueOffset); err != nil {
				return err
			}
		}
		patch["due_offset"] = *c.DueOffset
	}

	_, err := db.UpdateListsTx(tx, patch, db.Eq("id", listID))
	return err
}

// SetItems makes itemIDs the current membership of listID.
//
// Existing placements of members are reopened, and when offset is given
// their due is re-anchored to the placement's first-seen time. Placements of
// items that left are closed at now. New members get a fresh placement with
// present = now and due resolved from offset. The task state of every
// touched item is recomputed.
func SetItems(tx *db.TxOps, listID string, itemIDs []string, offset *DueOffset) (*Result, error) {
	if _, err := load(tx, listID); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(itemIDs))
	var order []string
	for _, id := range itemIDs {
		if !wanted[id] {
			wanted[id] = true
			order = append(order, id)
		}
	}
	if err := requireItems(tx, order); err != nil {
		return nil, err
	}

	now := db.Now()
	var due *time.Time
	if offset != nil {
		d := offset.Resolve(now)
		due = &d
	}

	existing, err := db.FindPlacementsTx(tx, db.Eq("list_id", listID))
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var rows []db.Placement
	for _, p := range existing {
		if wanted[p.ItemID] {
			if !p.IsOpen() {
				res.Reopened = append(res.Reopened, p.ItemID)
			}
			p.Done = nil
			if offset != nil {
				d := offset.Resolve(p.Present)
				p.Due = &d
			}
			delete(wanted, p.ItemID)
			res.Kept = append(res.Kept, p.ItemID)
			rows = append(rows, p)
			continue
		}
		if p.IsOpen() {
			p.Done = &now
			res.Closed = append(res.Closed, p.ItemID)
			rows = append(rows, p)
		}
	}

	for _, id := range order {
		if !wanted[id] {
			continue
		}
		rows = append(rows, db.Placement{ListID: listID, ItemID: id, Present: now, Due: due})
		res.Added = append(res.Added, id)
	}

	if err := db.UpsertPlacementsTx(tx, rows); err != nil {
		return nil, err
	}
	if err := taskstate.Recompute(tx, res.Touched()); err != nil {
		return nil, err
	}
	return res, nil
}

// Delete removes listID and its placements. Former members left without any
// placement in any list have their open servicelist task stamped done at now.
func Delete(tx *db.TxOps, listID string) error {
	if _, err := load(tx, listID); err != nil {
		return err
	}

	placements, err := db.FindPlacementsTx(tx, db.Eq("list_id", listID))
	if err != nil {
		return err
	}
	members := make([]string, 0, len(placements))
	for _, p := range placements {
		members = append(members, p.ItemID)
	}

	if _, err := db.DeletePlacementsTx(tx, db.Eq("list_id", listID)); err != nil {
		return err
	}
	if _, err := db.DeleteListsTx(tx, db.Eq("id", listID)); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	surviving, err := db.FindPlacementsTx(tx, db.In("item_id", members), db.NotNull("present"))
	if err != nil {
		return err
	}
	stillListed := make(map[string]bool, len(surviving))
	for _, p := range surviving {
		stillListed[p.ItemID] = true
	}
	var orphaned []string
	for _, id := range members {
		if !stillListed[id] {
			orphaned = append(orphaned, id)
		}
	}
	if len(orphaned) == 0 {
		return nil
	}

	_, err = db.UpdateTaskStatesTx(tx, db.Patch{"done": db.Now()},
		db.In("item_id", orphaned),
		db.IsNull("done"),
		db.Eq("controller", string(db.ControllerServiceList)),
	)
	return err
}

func load(tx *db.TxOps, listID string) (*db.List, error) {
	l, err := db.GetListTx(tx, listID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, shelferrors.NotFound("list", listID)
	}
	return l, nil
}

// requireItems fails with NotFound for the first id without an item.
func requireItems(tx *db.TxOps, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := db.ItemIDsTx(tx, db.In("id", ids))
	if err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	have := make(map[string]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	for _, id := range ids {
		if !have[id] {
			return shelferrors.NotFound("item", id)
		}
	}
	return fmt.Errorf("item lookup returned %d of %d ids", len(found), len(ids))
}
