package services

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// NotFoundError reports a missing student, structure, schedule, template, fee or payment.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %v not found", e.Entity, e.ID) }

// InvalidStateError reports an operation on an entity in the wrong lifecycle state.
type InvalidStateError struct {
	Entity string
	State  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is %s: %s", e.Entity, e.State, e.Reason)
}

// InvalidAmountError reports a non-positive, over-balance or badly allocated amount.
type InvalidAmountError struct {
	Reason string
}

func (e *InvalidAmountError) Error() string { return "invalid amount: " + e.Reason }

// InvariantViolationError reports input breaking a structural rule, such as
// installment percentages not adding up to 100.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string { return e.Reason }

// DuplicateError reports an entity that already exists under a unique key.
type DuplicateError struct {
	Entity string
	Key    string
}

func (e *DuplicateError) Error() string { return fmt.Sprintf("%s already exists for %s", e.Entity, e.Key) }

// ConflictError reports a concurrent modification detected by the version check.
type ConflictError struct {
	Entity string
	ID     any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %v was modified concurrently", e.Entity, e.ID)
}

// InvalidArgumentError reports a malformed request parameter.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string { return e.Field + ": " + e.Reason }

// PersistenceError wraps a storage failure. The transaction was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: errors.Wrap(err, op)}
}

// classify leaves domain errors untouched and turns anything else into a PersistenceError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomain(err) {
		return err
	}
	return persistence(op, err)
}

func isDomain(err error) bool {
	var (
		nf  *NotFoundError
		is  *InvalidStateError
		ia  *InvalidAmountError
		iv  *InvariantViolationError
		dup *DuplicateError
		cf  *ConflictError
		arg *InvalidArgumentError
		pe  *PersistenceError
	)
	return errors.As(err, &nf) || errors.As(err, &is) || errors.As(err, &ia) ||
		errors.As(err, &iv) || errors.As(err, &dup) || errors.As(err, &cf) ||
		errors.As(err, &arg) || errors.As(err, &pe)
}

// notFoundOr maps gorm.ErrRecordNotFound to a NotFoundError.
func notFoundOr(op, entity string, id any, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return persistence(op, err)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
