// Package inbox removes finished items that were never filed.
package inbox

import (
	"github.com/randalmurphal/shelf/internal/db"
)

// Prune deletes every item that is unfiled, has a done task state and has
// no open placement in any list. It runs once at the end of each
// transaction, after the operation's own mutations, and returns the ids
// it deleted.
func Prune(tx *db.TxOps) ([]string, error) {
	ids, err := db.StaleInboxItemIDsTx(tx)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	if _, err := db.DeleteItemsTx(tx, db.In("id", ids)); err != nil {
		return nil, err
	}
	return ids, nil
}
