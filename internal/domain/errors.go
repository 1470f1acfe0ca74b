package domain

import "errors"

var (
	// ErrNotFound is returned by readers when the requested entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyRecorded is returned by the ledger when the
	// (event, year, classification) key already exists.
	ErrAlreadyRecorded = errors.New("completion already recorded")
	// ErrAlreadyExists is returned when a unique key (e.g. chat id) is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrRepository marks storage-level failures that are worth retrying.
	ErrRepository = errors.New("repository error")
	// ErrInvalidDate rejects (day, month) pairs that are not calendar dates.
	ErrInvalidDate = errors.New("invalid day/month")
)
