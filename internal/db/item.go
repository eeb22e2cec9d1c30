package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Item is a task, bookmark, note or file. An empty SectionID means the item
// is unfiled (in the inbox) and SectionIndex is 0.
type Item struct {
	ID           string
	UserID       string
	Title        string
	SectionID    string
	SectionIndex int
	Archived     *time.Time
	Snoozed      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const itemColumns = "id, user_id, title, section_id, section_index, archived, snoozed, created_at, updated_at"

// CreateItemTx inserts an item at its current placement.
func CreateItemTx(tx *TxOps, it *Item) error {
	if it.ID == "" {
		it.ID = NewID()
	}
	now := Now()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now

	_, err := tx.Exec(`
		INSERT INTO items (id, user_id, title, section_id, section_index, archived, snoozed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.UserID, it.Title, nullString(it.SectionID), it.SectionIndex,
		NullTime(it.Archived), NullTime(it.Snoozed), FormatTime(it.CreatedAt), FormatTime(it.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// FindItemsTx returns items matching conds ordered by placement.
func FindItemsTx(tx *TxOps, conds ...Cond) ([]Item, error) {
	var out []Item
	err := findTx(tx, "items", itemColumns, "section_id, section_index, created_at, id", conds, func(s scanner) error {
		var it Item
		var sectionID, archived, snoozed sql.NullString
		var createdAt, updatedAt string
		if err := s.Scan(&it.ID, &it.UserID, &it.Title, &sectionID, &it.SectionIndex,
			&archived, &snoozed, &createdAt, &updatedAt); err != nil {
			return err
		}
		it.SectionID = sectionID.String
		var err error
		if it.Archived, err = parseNullTime(archived); err != nil {
			return err
		}
		if it.Snoozed, err = parseNullTime(snoozed); err != nil {
			return err
		}
		it.CreatedAt, _ = ParseTime(createdAt)
		it.UpdatedAt, _ = ParseTime(updatedAt)
		out = append(out, it)
		return nil
	})
	return out, err
}

// GetItemTx returns the item with id, or nil if absent.
func GetItemTx(tx *TxOps, id string) (*Item, error) {
	items, err := FindItemsTx(tx, Eq("id", id))
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// UpdateItemsTx applies patch to matching items and bumps updated_at.
func UpdateItemsTx(tx *TxOps, patch Patch, conds ...Cond) (int64, error) {
	if len(patch) == 0 {
		return 0, nil
	}
	patch["updated_at"] = Now()
	return updateTx(tx, "items", patch, conds)
}

// DeleteItemsTx deletes matching items. Details, task states and placements cascade.
func DeleteItemsTx(tx *TxOps, conds ...Cond) (int64, error) {
	return deleteTx(tx, "items", conds)
}

// ItemIDsTx returns the ids of items matching conds.
func ItemIDsTx(tx *TxOps, conds ...Cond) ([]string, error) {
	var ids []string
	err := findTx(tx, "items", "id", "id", conds, func(s scanner) error {
		var id string
		if err := s.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// StaleInboxItemIDsTx returns unfiled items whose task is done and that
// have no open placement in any list.
func StaleInboxItemIDsTx(tx *TxOps) ([]string, error) {
	rows, err := tx.Query(`
		SELECT i.id FROM items i
		JOIN task_states ts ON ts.item_id = i.id
		WHERE i.section_id IS NULL
			AND ts.done IS NOT NULL
			AND NOT EXISTS (
				SELECT 1 FROM list_placements lp
				WHERE lp.item_id = i.id AND lp.done IS NULL
			)
		ORDER BY i.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query stale inbox items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale inbox item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
