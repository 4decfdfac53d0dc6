package sqlgraph

import (
	"errors"
	"slices"
	"strings"

	"github.com/syssam/veloxgraph"
)

// Driver errors carrying a SQLSTATE, e.g. pq.Error and pgconn.PgError.
type (
	sqlStateError interface{ SQLState() string }
	errorCoder    interface{ Code() string }
)

// Driver errors carrying a MySQL error number.
type errorNumberer interface{ Number() uint16 }

// constraintRule recognizes the driver errors of one constraint kind. Messages
// cover drivers that expose no code, SQLite among them.
type constraintRule struct {
	kind     veloxgraph.ConstraintKind
	state    string
	numbers  []uint16
	messages []string
}

var constraintRules = []constraintRule{
	{
		kind:     veloxgraph.ConstraintUnique,
		state:    "23505",
		numbers:  []uint16{1062},
		messages: []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	},
	{
		kind:     veloxgraph.ConstraintForeignKey,
		state:    "23503",
		numbers:  []uint16{1451, 1452},
		messages: []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	},
	{
		kind:     veloxgraph.ConstraintCheck,
		state:    "23514",
		numbers:  []uint16{3819},
		messages: []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	},
}

// ConstraintKindOf classifies a driver error. It returns false if err is
// not a constraint violation.
func ConstraintKindOf(err error) (veloxgraph.ConstraintKind, bool) {
	if err == nil {
		return veloxgraph.ConstraintUnknown, false
	}
	var e veloxgraph.ConstraintError
	if errors.As(err, &e) {
		return e.Kind, true
	}
	var (
		state  string
		number uint16
		ss     sqlStateError
		sc     errorCoder
		sn     errorNumberer
		msg    = err.Error()
	)
	switch {
	case errors.As(err, &ss):
		state = ss.SQLState()
	case errors.As(err, &sc):
		state = sc.Code()
	}
	if errors.As(err, &sn) {
		number = sn.Number()
	}
	for _, r := range constraintRules {
		if state == r.state || slices.Contains(r.numbers, number) ||
			slices.ContainsFunc(r.messages, func(m string) bool { return strings.Contains(msg, m) }) {
			return r.kind, true
		}
	}
	return veloxgraph.ConstraintUnknown, false
}

// constraintError wraps a constraint violation of a statement on table with
// a veloxgraph.ConstraintError. Other errors are returned as is.
func constraintError(table string, err error) error {
	if veloxgraph.IsConstraintError(err) {
		return err
	}
	kind, ok := ConstraintKindOf(err)
	if !ok {
		return err
	}
	return veloxgraph.NewConstraintError(kind, table, err)
}
