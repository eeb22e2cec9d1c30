package db

import (
	"strings"
	"time"
)

// Cond is one predicate of a WHERE clause. Conditions passed together are
// AND-composed. Column names are trusted identifiers, never user input.
type Cond struct {
	sql  string
	args []any
}

// Eq matches rows where column equals v.
func Eq(column string, v any) Cond { return binary(column, "=", v) }

// Ne matches rows where column differs from v.
func Ne(column string, v any) Cond { return binary(column, "<>", v) }

// Lt matches rows where column is less than v.
func Lt(column string, v any) Cond { return binary(column, "<", v) }

// Lte matches rows where column is less than or equal to v.
func Lte(column string, v any) Cond { return binary(column, "<=", v) }

// Gt matches rows where column is greater than v.
func Gt(column string, v any) Cond { return binary(column, ">", v) }

// Gte matches rows where column is greater than or equal to v.
func Gte(column string, v any) Cond { return binary(column, ">=", v) }

// IsNull matches rows where column is NULL.
func IsNull(column string) Cond { return Cond{sql: column + " IS NULL"} }

// NotNull matches rows where column is not NULL.
func NotNull(column string) Cond { return Cond{sql: column + " IS NOT NULL"} }

// In matches rows where column is one of vals. An empty set matches nothing.
func In[T any](column string, vals []T) Cond {
	if len(vals) == 0 {
		return Cond{sql: "1 = 0"}
	}
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = bindArg(v)
	}
	return Cond{sql: column + " IN (" + placeholders(len(vals)) + ")", args: args}
}

func binary(column, op string, v any) Cond {
	return Cond{sql: column + " " + op + " ?", args: []any{bindArg(v)}}
}

// where renders conds as a WHERE clause. No conditions renders nothing.
func where(conds []Cond) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, len(conds))
	var args []any
	for i, c := range conds {
		parts[i] = c.sql
		args = append(args, c.args...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// bindArg converts values the drivers do not store in our text format.
func bindArg(v any) any {
	switch x := v.(type) {
	case time.Time:
		return FormatTime(x)
	case *time.Time:
		return NullTime(x)
	default:
		return v
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
