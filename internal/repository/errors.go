package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate reports that a write collided with a unique key.
	ErrDuplicate = errors.New("duplicate key")
	// ErrReferenceMissing reports a foreign key pointing at no row.
	ErrReferenceMissing = errors.New("referenced row missing")
	// ErrMalformedID reports an identifier Postgres could not parse as a UUID.
	// It also matches sql.ErrNoRows since such an id never resolves.
	ErrMalformedID = errors.New("malformed identifier")
)

const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
	pqInvalidText         = pq.ErrorCode("22P02")
)

// translate maps driver-level errors onto repository sentinels, keeping the
// constraint name in the message for logs.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return &DuplicateError{Constraint: pqErr.Constraint, Err: err}
	case pqForeignKeyViolation:
		return &ReferenceError{Constraint: pqErr.Constraint, Err: err}
	case pqInvalidText:
		return &malformedIDError{Err: err}
	}
	return err
}

// DuplicateError carries the violated constraint.
type DuplicateError struct {
	Constraint string
	Err        error
}

func (e *DuplicateError) Error() string {
	return "duplicate key on " + e.Constraint
}

// Is matches ErrDuplicate.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

// ReferenceError carries the violated foreign key.
type ReferenceError struct {
	Constraint string
	Err        error
}

func (e *ReferenceError) Error() string {
	return "missing reference on " + e.Constraint
}

// Is matches ErrReferenceMissing.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrReferenceMissing
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

type malformedIDError struct {
	Err error
}

func (e *malformedIDError) Error() string {
	return "malformed identifier: " + e.Err.Error()
}

func (e *malformedIDError) Is(target error) bool {
	return target == ErrMalformedID || target == sql.ErrNoRows
}

func (e *malformedIDError) Unwrap() error {
	return e.Err
}

// existsResult treats an unparsable id as a row that does not exist.
func existsResult(exists bool, err error) (bool, error) {
	if errors.Is(err, ErrMalformedID) {
		return false, nil
	}
	return exists, err
}
