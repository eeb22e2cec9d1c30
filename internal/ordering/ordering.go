// Package ordering assigns and shifts integer positions of siblings.
//
// A Scope is one sibling collection: the sections of a project or the items
// of a section. Indices are unique inside a scope and may contain gaps; gaps
// are never compacted. Negative indices are reserved (the anonymous section
// sits at -1) and are never shifted.
package ordering

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// Scope identifies a sibling collection in one table.
type Scope struct {
	table       string
	kind        string
	keyColumn   string
	indexColumn string
	key         string
}

// Sections is the scope of the sections owned by projectID.
func Sections(projectID string) Scope {
	return Scope{table: "sections", kind: "section", keyColumn: "project_id", indexColumn: "idx", key: projectID}
}

// Items is the scope of the items filed in sectionID.
func Items(sectionID string) Scope {
	return Scope{table: "items", kind: "item", keyColumn: "section_id", indexColumn: "section_index", key: sectionID}
}

// Key returns the scope value (project id or section id).
func (s Scope) Key() string {
	return s.key
}

// Append returns the index after the largest index in scope, or 0 if the
// scope holds no non-negative index.
func Append(tx *db.TxOps, scope Scope) (int, error) {
	var idx int
	err := tx.QueryRow(
		"SELECT COALESCE(MAX("+scope.indexColumn+"), -1) + 1 FROM "+scope.table+
			" WHERE "+scope.keyColumn+" = ?", scope.key,
	).Scan(&idx)
	if err != nil {
		return 0, fmt.Errorf("next %s index: %w", scope.kind, err)
	}
	if idx < 0 {
		idx = 0
	}
	return idx, nil
}

// IndexOf returns the index of beforeID after checking that it lives in scope
// at a user position.
func IndexOf(tx *db.TxOps, scope Scope, beforeID string) (int, error) {
	var key sql.NullString
	var idx int
	err := tx.QueryRow(
		"SELECT "+scope.keyColumn+", "+scope.indexColumn+" FROM "+scope.table+" WHERE id = ?", beforeID,
	).Scan(&key, &idx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, shelferrors.NotFound(scope.kind, beforeID)
	}
	if err != nil {
		return 0, fmt.Errorf("load %s %s: %w", scope.kind, beforeID, err)
	}
	if !key.Valid || key.String != scope.key {
		return 0, shelferrors.Validation(
			fmt.Sprintf("%s %s is not in the target scope", scope.kind, beforeID),
			fmt.Sprintf("a %s can only be placed before a sibling in the same scope", scope.kind),
		)
	}
	if idx < 0 {
		return 0, shelferrors.Validation(
			fmt.Sprintf("cannot place before anonymous %s %s", scope.kind, beforeID),
			"anonymous entries have no position among their siblings",
		)
	}
	return idx, nil
}

// InsertBefore shifts beforeID and every sibling at or after its index up by
// one and returns the vacated index for the new entry.
//
// The shift is two statements so UNIQUE(scope, index) holds after each one:
// affected rows are first mapped to -idx-2 (all <= -2, clear of the anonymous
// -1), then mapped back to idx+1.
func InsertBefore(tx *db.TxOps, scope Scope, beforeID string) (int, error) {
	idx, err := IndexOf(tx, scope, beforeID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(
		"UPDATE "+scope.table+" SET "+scope.indexColumn+" = -"+scope.indexColumn+" - 2"+
			" WHERE "+scope.keyColumn+" = ? AND "+scope.indexColumn+" >= ?", scope.key, idx,
	); err != nil {
		return 0, fmt.Errorf("shift %s indices: %w", scope.kind, err)
	}
	if _, err := tx.Exec(
		"UPDATE "+scope.table+" SET "+scope.indexColumn+" = -"+scope.indexColumn+" - 1"+
			" WHERE "+scope.keyColumn+" = ? AND "+scope.indexColumn+" <= -2", scope.key,
	); err != nil {
		return 0, fmt.Errorf("restore %s indices: %w", scope.kind, err)
	}

	return idx, nil
}

// Position returns the index for a new entry: before beforeID when given,
// otherwise appended.
func Position(tx *db.TxOps, scope Scope, beforeID string) (int, error) {
	if beforeID == "" {
		return Append(tx, scope)
	}
	return InsertBefore(tx, scope, beforeID)
}
