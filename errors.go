package veloxgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by ValidationError. They describe caller-input
// problems detected before any statement reaches the database.
var (
	// ErrAliasTooLong is returned when a computed table or column alias
	// exceeds the database identifier length limit.
	ErrAliasTooLong = errors.New("veloxgraph: alias exceeds identifier length limit")

	// ErrUnknownFilter is returned when an eager expression references a
	// named filter that was not registered.
	ErrUnknownFilter = errors.New("veloxgraph: unknown named filter")

	// ErrRecursionDepth is returned when an eager expression nests deeper
	// than the supported bound.
	ErrRecursionDepth = errors.New("veloxgraph: recursion depth exceeded")

	// ErrUnknownRelation is returned when a graph or expression names a
	// relation the entity type does not declare.
	ErrUnknownRelation = errors.New("veloxgraph: unknown relation")

	// ErrUnallowedRelation is returned when an object graph contains a
	// relation outside of the allowed expression.
	ErrUnallowedRelation = errors.New("veloxgraph: relation not allowed")

	// ErrCyclicGraph is returned when the foreign-key dependencies of an
	// object graph form a cycle.
	ErrCyclicGraph = errors.New("veloxgraph: object graph contains cyclic references")

	// ErrDuplicateUID is returned when two objects claim the same uid.
	ErrDuplicateUID = errors.New("veloxgraph: duplicate uid")

	// ErrUnresolvedRef is returned when a reference object points to a uid
	// that no object in the graph declares.
	ErrUnresolvedRef = errors.New("veloxgraph: unresolved reference")

	// ErrUnknownColumn is returned when a selection names a column the
	// table does not have.
	ErrUnknownColumn = errors.New("veloxgraph: unknown column")
)

// Standard sentinel errors for entity access.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("veloxgraph: entity not found")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("veloxgraph: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity or relation label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotLoadedError represents an error when attempting to access a relation
// that was not part of the eager expression.
type NotLoadedError struct {
	relation string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("veloxgraph: relation %q was not loaded", e.relation)
}

// NewNotLoadedError returns a new NotLoadedError for the given relation name.
func NewNotLoadedError(relation string) *NotLoadedError {
	return &NotLoadedError{relation: relation}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// ConstraintKind is the kind of database constraint a statement violated.
type ConstraintKind uint8

// Constraint kinds recognized from driver errors.
const (
	ConstraintUnknown ConstraintKind = iota
	ConstraintUnique
	ConstraintForeignKey
	ConstraintCheck
)

var constraintKinds = [...]string{"unknown", "unique", "foreign key", "check"}

// String returns the kind as used in error messages, e.g. "foreign key".
func (k ConstraintKind) String() string {
	if int(k) < len(constraintKinds) {
		return constraintKinds[k]
	}
	return constraintKinds[ConstraintUnknown]
}

// ConstraintError represents a database constraint violation on a table.
type ConstraintError struct {
	Kind  ConstraintKind
	Table string // Table the failing statement wrote to
	wrap  error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("veloxgraph: %s constraint failed on %q: %v", e.Kind, e.Table, e.wrap)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError of the given kind.
func NewConstraintError(kind ConstraintKind, table string, wrap error) error {
	return ConstraintError{Kind: kind, Table: table, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// IsConstraintKind returns true if the error is a ConstraintError of the
// given kind.
func IsConstraintKind(err error, kind ConstraintKind) bool {
	var e ConstraintError
	return errors.As(err, &e) && e.Kind == kind
}

// ValidationError reports a caller-input problem found while building a
// dependency graph or a join statement. It is never retryable.
type ValidationError struct {
	Name string // Relation path, alias, filter or uid the problem was found at
	Err  error  // Underlying sentinel, e.g. ErrAliasTooLong
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Name)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// Validationf returns a ValidationError whose underlying error adds a
// formatted detail to the given sentinel.
func Validationf(name string, sentinel error, format string, args ...any) *ValidationError {
	return &ValidationError{Name: name, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("veloxgraph: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// IsRollbackError returns true if the error is a RollbackError.
func IsRollbackError(err error) bool {
	if err == nil {
		return false
	}
	var e *RollbackError
	return errors.As(err, &e)
}

// QueryError wraps an eager query error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "build", "query", "scan")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("veloxgraph: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("veloxgraph: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps an insert failure with the table it happened on.
// It marks execution-time problems, as opposed to ValidationError.
type MutationError struct {
	Entity string // Table being written
	Op     string // Operation (e.g., "insert", "insert join rows")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("veloxgraph: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
