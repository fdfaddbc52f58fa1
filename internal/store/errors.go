package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrorCode categorizes storage errors.
type ErrorCode string

const (
	// CodeNotFound indicates a row that was expected to exist does not.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeCardinality indicates a query expected exactly one row and found several.
	CodeCardinality ErrorCode = "CARDINALITY"

	// CodeMixedClasses indicates a group that disallows mixed classes would
	// end up holding entities of different classes.
	CodeMixedClasses ErrorCode = "MIXED_CLASSES"

	// CodeTxMismatch indicates the transaction handle and the caller-manages
	// flag disagree.
	CodeTxMismatch ErrorCode = "TX_MISMATCH"

	// CodeAllocationExhausted indicates the sorting-index probe ran out of room.
	CodeAllocationExhausted ErrorCode = "ALLOCATION_EXHAUSTED"

	// CodeDuplicateName indicates a name already in use.
	CodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// CodeInvalidInput indicates a bad argument (empty name, unknown form...).
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeIntegrity indicates a constraint failure or a content checksum mismatch.
	CodeIntegrity ErrorCode = "INTEGRITY"

	// CodeRenumberInvariant indicates renumbering broke its own ordering or
	// count assertion. This is a bug, never user error.
	CodeRenumberInvariant ErrorCode = "RENUMBER_INVARIANT"

	// CodeSchemaVersion indicates the database was written by a newer version.
	CodeSchemaVersion ErrorCode = "SCHEMA_VERSION"
)

// Error is the structured failure returned by store operations.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed.
	Op string

	// Message is a human-readable description.
	Message string

	// IDs lists the entity, attribute or group ids involved.
	IDs []int64

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is matching by code.
var (
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrCardinality         = &Error{Code: CodeCardinality}
	ErrMixedClasses        = &Error{Code: CodeMixedClasses}
	ErrTxMismatch          = &Error{Code: CodeTxMismatch}
	ErrAllocationExhausted = &Error{Code: CodeAllocationExhausted}
	ErrDuplicateName       = &Error{Code: CodeDuplicateName}
	ErrInvalidInput        = &Error{Code: CodeInvalidInput}
	ErrIntegrity           = &Error{Code: CodeIntegrity}
	ErrRenumberInvariant   = &Error{Code: CodeRenumberInvariant}
	ErrSchemaVersion       = &Error{Code: CodeSchemaVersion}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.IDs) > 0 {
		fmt.Fprintf(&b, " (ids=%v)", e.IDs)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsCardinality returns true if err is a CARDINALITY error.
func IsCardinality(err error) bool { return CodeOf(err) == CodeCardinality }

// IsMixedClasses returns true if err is a MIXED_CLASSES error.
func IsMixedClasses(err error) bool { return CodeOf(err) == CodeMixedClasses }

// IsAllocationExhausted returns true if err is an ALLOCATION_EXHAUSTED error.
func IsAllocationExhausted(err error) bool { return CodeOf(err) == CodeAllocationExhausted }

// IsTxMismatch returns true if err is a TX_MISMATCH error.
func IsTxMismatch(err error) bool { return CodeOf(err) == CodeTxMismatch }

// IsDuplicateName returns true if err is a DUPLICATE_NAME error.
func IsDuplicateName(err error) bool { return CodeOf(err) == CodeDuplicateName }

// IsInvalidInput returns true if err is an INVALID_INPUT error.
func IsInvalidInput(err error) bool { return CodeOf(err) == CodeInvalidInput }

// IsIntegrity returns true if err is an INTEGRITY error.
func IsIntegrity(err error) bool { return CodeOf(err) == CodeIntegrity }

func newError(code ErrorCode, op string, msg string, ids ...int64) *Error {
	return &Error{Code: code, Op: op, Message: msg, IDs: ids}
}

func notFound(op, what string, ids ...int64) *Error {
	return newError(CodeNotFound, op, what+" not found", ids...)
}

// wrap annotates a driver error with the operation and ids. Constraint
// failures from either driver become INTEGRITY; store errors pass through
// with their code intact.
func wrap(op string, err error, ids ...int64) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if isConstraintViolation(err) {
		return &Error{Code: CodeIntegrity, Op: op, Message: "constraint violation", IDs: ids, Err: err}
	}
	if len(ids) > 0 {
		return fmt.Errorf("%s %v: %w", op, ids, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraintViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violation.
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}
