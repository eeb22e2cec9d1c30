package syncer

import (
	"fmt"

	"github.com/randalmurphal/shelf/internal/db"
	"github.com/randalmurphal/shelf/internal/lists"
	"github.com/randalmurphal/shelf/internal/services"
	"github.com/randalmurphal/shelf/internal/taskstate"
)

// listOutcome is what applying one fetched list changed.
type listOutcome struct {
	created []string
	result  *lists.Result
}

// applyList mirrors the fetched members of l into items and reconciles the
// list's placements with them. Remote items are matched to items through
// their service detail; unknown ones become new unfiled items whose task
// state follows their lists.
func applyList(tx *db.TxOps, acct services.Account, l db.List, remote []services.RemoteItem) (*listOutcome, error) {
	var offset *lists.DueOffset
	if l.DueOffset != "" {
		o, err := lists.ParseDueOffset(l.DueOffset)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", l.Name, err)
		}
		offset = o
	}

	out := &listOutcome{}
	ids := make([]string, 0, len(remote))
	for _, r := range remote {
		id, created, err := mirrorItem(tx, acct, r)
		if err != nil {
			return nil, err
		}
		if created {
			out.created = append(out.created, id)
		}
		ids = append(ids, id)
	}

	res, err := lists.SetItems(tx, l.ID, ids, offset)
	if err != nil {
		return nil, fmt.Errorf("reconcile list %s: %w", l.Name, err)
	}
	out.result = res

	for _, id := range out.created {
		if err := taskstate.Create(tx, id, db.ControllerServiceList, nil, nil); err != nil {
			return nil, fmt.Errorf("track task for %s: %w", id, err)
		}
	}
	return out, nil
}

// mirrorItem finds or creates the item for r and refreshes its service
// detail. It reports whether the item was created.
func mirrorItem(tx *db.TxOps, acct services.Account, r services.RemoteItem) (string, bool, error) {
	existing, err := db.FindDetailsTx(tx,
		db.Eq("service_id", acct.ServiceID),
		db.Eq("remote_key", r.Key),
	)
	if err != nil {
		return "", false, err
	}

	var itemID string
	created := false
	if len(existing) > 0 {
		itemID = existing[0].ItemID
		if existing[0].Service.Summary != r.Summary && r.Summary != "" {
			if _, err := db.UpdateItemsTx(tx, db.Patch{"title": r.Summary}, db.Eq("id", itemID)); err != nil {
				return "", false, err
			}
		}
	} else {
		title := r.Summary
		if title == "" {
			title = r.Key
		}
		it := &db.Item{UserID: acct.UserID, Title: title}
		if err := db.CreateItemTx(tx, it); err != nil {
			return "", false, err
		}
		itemID = it.ID
		created = true
	}

	d := &db.Detail{ItemID: itemID, Kind: db.DetailService, Service: &db.ServiceDetail{
		ServiceID:    acct.ServiceID,
		RemoteKey:    r.Key,
		Summary:      r.Summary,
		URL:          r.URL,
		Fields:       r.Fields,
		HasTaskState: true,
		TaskDue:      r.Due,
		TaskDone:     r.Done,
	}}
	if err := db.SaveDetailTx(tx, d); err != nil {
		return "", false, err
	}
	return itemID, created, nil
}
