package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Service Types
// ============================================================================

// Service is a user's account on an external service.
// Config holds provider settings such as base URLs and token env vars.
type Service struct {
	ID        string
	UserID    string
	Kind      string
	Name      string
	Config    json.RawMessage
	CreatedAt time.Time
}

// List is a remote collection owned by one service account.
// Query is provider-specific; DueOffset is empty or a duration like "3d".
type List struct {
	ID        string
	ServiceID string
	Name      string
	URL       string
	Query     string
	DueOffset string
	CreatedAt time.Time
}

// Placement records one item's membership in one list.
// Rows are closed via Done on departure and never deleted for it.
type Placement struct {
	ListID  string
	ItemID  string
	Present time.Time
	Done    *time.Time
	Due     *time.Time
}

// IsOpen reports whether the item is currently a member of the list.
func (p Placement) IsOpen() bool {
	return p.Done == nil
}

// SyncProblem is a non-fatal failure recorded during background sync.
type SyncProblem struct {
	ID         string
	ServiceID  string
	Message    string
	OccurredAt time.Time
}

// ============================================================================
// Services
// ============================================================================

const serviceColumns = "id, user_id, kind, name, config, created_at"

// CreateServiceTx inserts a service account.
func CreateServiceTx(tx *TxOps, s *Service) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = Now()
	}
	if len(s.Config) == 0 {
		s.Config = json.RawMessage("{}")
	}
	if _, err := tx.Exec(`INSERT INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Kind, s.Name, string(s.Config), FormatTime(s.CreatedAt)); err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// FindServicesTx returns service accounts matching conds ordered by name.
func FindServicesTx(tx *TxOps, conds ...Cond) ([]Service, error) {
	var out []Service
	err := findTx(tx, "services", serviceColumns, "name, id", conds, func(sc scanner) error {
		var s Service
		var config, createdAt string
		if err := sc.Scan(&s.ID, &s.UserID, &s.Kind, &s.Name, &config, &createdAt); err != nil {
			return err
		}
		s.Config = json.RawMessage(config)
		s.CreatedAt, _ = ParseTime(createdAt)
		out = append(out, s)
		return nil
	})
	return out, err
}

// GetServiceTx returns the service with id, or nil if absent.
func GetServiceTx(tx *TxOps, id string) (*Service, error) {
	services, err := FindServicesTx(tx, Eq("id", id))
	if err != nil || len(services) == 0 {
		return nil, err
	}
	return &services[0], nil
}

// DeleteServicesTx deletes matching services; their lists cascade.
func DeleteServicesTx(tx *TxOps, conds ...Cond) (int64, error) {
	return deleteTx(tx, "services", conds)
}

// ============================================================================
// Lists
// ============================================================================

const listColumns = "id, service_id, name, url, query, due_offset, created_at"

// CreateListTx inserts a list.
func CreateListTx(tx *TxOps, l *List) error {
	if l.ID == "" {
		l.ID = NewID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = Now()
	}
	if _, err := tx.Exec(`INSERT INTO lists (`+listColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ServiceID, l.Name, l.URL, l.Query, l.DueOffset, FormatTime(l.CreatedAt)); err != nil {
		return fmt.Errorf("create list: %w", err)
	}
	return nil
}

// FindListsTx returns lists matching conds ordered by name.
func FindListsTx(tx *TxOps, conds ...Cond) ([]List, error) {
	var out []List
	err := findTx(tx, "lists", listColumns, "name, id", conds, func(s scanner) error {
		var l List
		var createdAt string
		if err := s.Scan(&l.ID, &l.ServiceID, &l.Name, &l.URL, &l.Query, &l.DueOffset, &createdAt); err != nil {
			return err
		}
		l.CreatedAt, _ = ParseTime(createdAt)
		out = append(out, l)
		return nil
	})
	return out, err
}

// GetListTx returns the list with id, or nil if absent.
func GetListTx(tx *TxOps, id string) (*List, error) {
	lists, err := FindListsTx(tx, Eq("id", id))
	if err != nil || len(lists) == 0 {
		return nil, err
	}
	return &lists[0], nil
}

// UpdateListsTx applies patch to matching lists.
func UpdateListsTx(tx *TxOps, patch Patch, conds ...Cond) (int64, error) {
	return updateTx(tx, "lists", patch, conds)
}

// DeleteListsTx deletes matching lists; their placements cascade.
func DeleteListsTx(tx *TxOps, conds ...Cond) (int64, error) {
	return deleteTx(tx, "lists", conds)
}

// ============================================================================
// Placements
// ============================================================================

const placementColumns = "list_id, item_id, present, done, due"

// FindPlacementsTx returns placements matching conds.
func FindPlacementsTx(tx *TxOps, conds ...Cond) ([]Placement, error) {
	var out []Placement
	err := findTx(tx, "list_placements", placementColumns, "list_id, item_id", conds, func(s scanner) error {
		var p Placement
		var present string
		var done, due sql.NullString
		if err := s.Scan(&p.ListID, &p.ItemID, &present, &done, &due); err != nil {
			return err
		}
		var err error
		if p.Present, err = ParseTime(present); err != nil {
			return err
		}
		if p.Done, err = parseNullTime(done); err != nil {
			return err
		}
		if p.Due, err = parseNullTime(due); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// UpsertPlacementsTx inserts or updates placements keyed by (list_id, item_id).
// present is kept from the existing row on conflict.
func UpsertPlacementsTx(tx *TxOps, rows []Placement) error {
	for _, p := range rows {
		_, err := tx.Exec(`
			INSERT INTO list_placements (`+placementColumns+`)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(list_id, item_id) DO UPDATE SET
				done = excluded.done,
				due = excluded.due
		`, p.ListID, p.ItemID, FormatTime(p.Present), NullTime(p.Done), NullTime(p.Due))
		if err != nil {
			return fmt.Errorf("upsert placement %s/%s: %w", p.ListID, p.ItemID, err)
		}
	}
	return nil
}

// DeletePlacementsTx deletes matching placements.
func DeletePlacementsTx(tx *TxOps, conds ...Cond) (int64, error) {
	return deleteTx(tx, "list_placements", conds)
}

// ============================================================================
// Sync problems
// ============================================================================

const problemColumns = "id, service_id, message, occurred_at"

// CreateSyncProblemTx records a sync problem.
func CreateSyncProblemTx(tx *TxOps, p *SyncProblem) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.OccurredAt.IsZero() {
		p.OccurredAt = Now()
	}
	if _, err := tx.Exec(`INSERT INTO sync_problems (`+problemColumns+`) VALUES (?, ?, ?, ?)`,
		p.ID, p.ServiceID, p.Message, FormatTime(p.OccurredAt)); err != nil {
		return fmt.Errorf("create sync problem: %w", err)
	}
	return nil
}

// FindSyncProblemsTx returns problems matching conds, newest first.
func FindSyncProblemsTx(tx *TxOps, conds ...Cond) ([]SyncProblem, error) {
	var out []SyncProblem
	err := findTx(tx, "sync_problems", problemColumns, "occurred_at DESC, id", conds, func(s scanner) error {
		var p SyncProblem
		var occurredAt string
		if err := s.Scan(&p.ID, &p.ServiceID, &p.Message, &occurredAt); err != nil {
			return err
		}
		p.OccurredAt, _ = ParseTime(occurredAt)
		out = append(out, p)
		return nil
	})
	return out, err
}

// DeleteSyncProblemsTx deletes matching problems.
func DeleteSyncProblemsTx(tx *TxOps, conds ...Cond) (int64, error) {
	return deleteTx(tx, "sync_problems", conds)
}
