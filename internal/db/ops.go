package db

import (
	"fmt"
	"sort"
	"strings"
)

// Patch maps column names to new values for an update.
// time.Time and *time.Time values are stored in the timestamp format.
type Patch map[string]any

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// updateTx applies patch to every row of table matching conds and returns
// the number of rows changed.
func updateTx(tx *TxOps, table string, patch Patch, conds []Cond) (int64, error) {
	if len(patch) == 0 {
		return 0, nil
	}

	cols := make([]string, 0, len(patch))
	for c := range patch {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, bindArg(patch[c]))
	}

	clause, whereArgs := where(conds)
	res, err := tx.Exec("UPDATE "+table+" SET "+strings.Join(sets, ", ")+clause, append(args, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// deleteTx deletes every row of table matching conds.
func deleteTx(tx *TxOps, table string, conds []Cond) (int64, error) {
	clause, args := where(conds)
	res, err := tx.Exec("DELETE FROM "+table+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountTx counts rows of table matching conds.
func CountTx(tx *TxOps, table string, conds ...Cond) (int, error) {
	clause, args := where(conds)
	var n int
	if err := tx.QueryRow("SELECT COUNT(*) FROM "+table+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// findTx runs a SELECT of cols from table with conds and hands each row to scan.
func findTx(tx *TxOps, table, cols, orderBy string, conds []Cond, scan func(scanner) error) error {
	clause, args := where(conds)
	query := "SELECT " + cols + " FROM " + table + clause
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}

	rows, err := tx.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}
