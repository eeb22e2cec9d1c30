package db

import (
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// Controller names the source that governs an item's effective due/done.
type Controller string

const (
	ControllerManual      Controller = "manual"
	ControllerService     Controller = "service"
	ControllerServiceList Controller = "servicelist"
)

// ParseController parses a controller name.
func ParseController(s string) (Controller, error) {
	switch Controller(s) {
	case ControllerManual, ControllerService, ControllerServiceList:
		return Controller(s), nil
	default:
		return "", fmt.Errorf("unknown controller %q", s)
	}
}

// TaskState holds an item's effective due/done and the user overrides.
// Due and Done are derived from Controller except under ControllerManual.
type TaskState struct {
	ItemID     string
	Controller Controller
	Due        *time.Time
	Done       *time.Time
	ManualDue  *time.Time
	ManualDone *time.Time
}

const taskStateColumns = "item_id, controller, due, done, manual_due, manual_done"

// CreateTaskStateTx inserts a task state row.
func CreateTaskStateTx(tx *TxOps, ts *TaskState) error {
	_, err := tx.Exec(`INSERT INTO task_states (`+taskStateColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		ts.ItemID, string(ts.Controller), NullTime(ts.Due), NullTime(ts.Done),
		NullTime(ts.ManualDue), NullTime(ts.ManualDone))
	if err != nil {
		return fmt.Errorf("create task state for item %s: %w", ts.ItemID, err)
	}
	return nil
}

// FindTaskStatesTx returns task states matching conds.
func FindTaskStatesTx(tx *TxOps, conds ...Cond) ([]TaskState, error) {
	var out []TaskState
	err := findTx(tx, "task_states", taskStateColumns, "item_id", conds, func(s scanner) error {
		var ts TaskState
		var controller string
		var due, done, manualDue, manualDone sql.NullString
		if err := s.Scan(&ts.ItemID, &controller, &due, &done, &manualDue, &manualDone); err != nil {
			return err
		}
		ts.Controller = Controller(controller)
		var err error
		for _, f := range []struct {
			dst **time.Time
			src sql.NullString
		}{{&ts.Due, due}, {&ts.Done, done}, {&ts.ManualDue, manualDue}, {&ts.ManualDone, manualDone}} {
			if *f.dst, err = parseNullTime(f.src); err != nil {
				return err
			}
		}
		out = append(out, ts)
		return nil
	})
	return out, err
}

// GetTaskStateTx returns the task state of itemID, or nil if the item is not task-like.
func GetTaskStateTx(tx *TxOps, itemID string) (*TaskState, error) {
	states, err := FindTaskStatesTx(tx, Eq("item_id", itemID))
	if err != nil || len(states) == 0 {
		return nil, err
	}
	return &states[0], nil
}

// UpdateTaskStatesTx applies patch to matching task states.
func UpdateTaskStatesTx(tx *TxOps, patch Patch, conds ...Cond) (int64, error) {
	return updateTx(tx, "task_states", patch, conds)
}

// DeleteTaskStatesTx deletes matching task states.
func DeleteTaskStatesTx(tx *TxOps, conds ...Cond) (int64, error) {
	return deleteTx(tx, "task_states", conds)
}

// TaskDates is a due/done pair written by a batched update.
type TaskDates struct {
	Due  *time.Time
	Done *time.Time
}

// maxBatch bounds ids per batched statement; five parameters per id
// stay well below the SQLite variable limit.
const maxBatch = 200

// SetTaskDatesTx writes due and done for many items with one UPDATE per
// chunk, using CASE expressions keyed by item id.
func SetTaskDatesTx(tx *TxOps, dates map[string]TaskDates) error {
	if len(dates) == 0 {
		return nil
	}
	ids := make([]string, 0, len(dates))
	for id := range dates {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		chunk := ids[start:end]

		dueCase, doneCase := "CASE item_id", "CASE item_id"
		var dueArgs, doneArgs []any
		for _, id := range chunk {
			dueCase += " WHEN ? THEN ?"
			doneCase += " WHEN ? THEN ?"
			dueArgs = append(dueArgs, id, NullTime(dates[id].Due))
			doneArgs = append(doneArgs, id, NullTime(dates[id].Done))
		}
		dueCase += " END"
		doneCase += " END"

		in := In("item_id", chunk)
		args := append(append(dueArgs, doneArgs...), in.args...)
		if _, err := tx.Exec("UPDATE task_states SET due = "+dueCase+", done = "+doneCase+" WHERE "+in.sql, args...); err != nil {
			return fmt.Errorf("batch update task dates: %w", err)
		}
	}
	return nil
}

// ListAggregatesTx computes, per item in ids, the earliest placement due and
// the latest departure. Done is set only when every placement of the item is
// closed; items without placements are absent from the result.
func ListAggregatesTx(tx *TxOps, ids []string) (map[string]TaskDates, error) {
	out := make(map[string]TaskDates)
	for start := 0; start < len(ids); start += maxBatch {
		in := In("item_id", ids[start:min(start+maxBatch, len(ids))])
		rows, err := tx.Query(`
			SELECT item_id, MIN(due), MAX(done), COUNT(*), COUNT(done)
			FROM list_placements
			WHERE `+in.sql+`
			GROUP BY item_id
		`, in.args...)
		if err != nil {
			return nil, fmt.Errorf("query list aggregates: %w", err)
		}
		if err := scanListAggregates(rows, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ServiceAggregatesTx returns the task due/done carried by the service
// details of ids that have task state.
func ServiceAggregatesTx(tx *TxOps, ids []string) (map[string]TaskDates, error) {
	out := make(map[string]TaskDates)
	for start := 0; start < len(ids); start += maxBatch {
		chunk := ids[start:min(start+maxBatch, len(ids))]
		details, err := FindDetailsTx(tx, Eq("kind", string(DetailService)), Eq("has_task_state", true), In("item_id", chunk))
		if err != nil {
			return nil, fmt.Errorf("query service aggregates: %w", err)
		}
		for _, d := range details {
			out[d.ItemID] = TaskDates{Due: d.Service.TaskDue, Done: d.Service.TaskDone}
		}
	}
	return out, nil
}

func scanListAggregates(rows *sql.Rows, out map[string]TaskDates) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var itemID string
		var due, done sql.NullString
		var total, closed int
		if err := rows.Scan(&itemID, &due, &done, &total, &closed); err != nil {
			return fmt.Errorf("scan list aggregate: %w", err)
		}
		var agg TaskDates
		var err error
		if agg.Due, err = parseNullTime(due); err != nil {
			return err
		}
		if total > 0 && total == closed {
			if agg.Done, err = parseNullTime(done); err != nil {
				return err
			}
		}
		out[itemID] = agg
	}
	return rows.Err()
}
