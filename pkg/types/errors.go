package types

import (
	"errors"
	"fmt"
)

// Record operation errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidID   = errors.New("invalid record ID")
	ErrInvalidData = errors.New("invalid record data")
)

// StorageError reports a failure of the storage medium (database file,
// document file) as opposed to a problem with the caller's input.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CopyError reports that an attachment could not be copied into the managed
// directory.
type CopyError struct {
	Source string
	Dest   string
	Err    error
}

func (e *CopyError) Error() string {
	if e.Dest == "" {
		return fmt.Sprintf("copying %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("copying %s to %s: %v", e.Source, e.Dest, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// ArchiveError reports a failure while building or handing off a sync
// archive. No record is marked exported when it is returned.
type ArchiveError struct {
	Op  string
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// invalidf wraps ErrInvalidData with a field-level message.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}
