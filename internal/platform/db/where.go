package db

import (
	"fmt"
	"strings"
)

// Where accumulates numbered predicates for dynamically filtered queries.
// Format strings take the placeholder number as their single verb, e.g.
// "status = $%d".
type Where struct {
	clauses []string
	args    []interface{}
}

func (w *Where) Add(format string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *Where) AddRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// AddSearch matches one case-insensitive substring against any of columns.
func (w *Where) AddSearch(term string, columns ...string) {
	w.args = append(w.args, "%"+term+"%")
	n := len(w.args)
	ors := make([]string, len(columns))
	for i, c := range columns {
		ors[i] = fmt.Sprintf("%s ILIKE $%d", c, n)
	}
	w.clauses = append(w.clauses, "("+strings.Join(ors, " OR ")+")")
}

// SQL renders " WHERE ..." or the empty string.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *Where) Args() []interface{} {
	return w.args
}

// Next is the number of the next free placeholder.
func (w *Where) Next() int {
	return len(w.args) + 1
}

// Page returns the args followed by limit and offset, and the
// "LIMIT $n OFFSET $n+1" suffix that binds them.
func (w *Where) Page(limit, offset int) (string, []interface{}) {
	n := w.Next()
	args := append(append([]interface{}{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1), args
}
