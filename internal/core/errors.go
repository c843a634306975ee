package core

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleSnapshot is returned when a mutation carries a token that no
	// longer matches the store contents. The caller must reload.
	ErrStaleSnapshot = errors.New("records changed since last load, reload before editing")
	// ErrIndexOutOfRange is returned for a logical index outside the snapshot.
	ErrIndexOutOfRange = errors.New("record index out of range")
	// ErrHeaderMismatch is returned when a sheet's header row differs from
	// the expected columns.
	ErrHeaderMismatch = errors.New("unexpected sheet header")
)

// LoadError reports a failed fetch or an unparseable row. Row is the 1-based
// sheet row offset, or 0 when the failure is not tied to a row.
type LoadError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *LoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("load %s: row %d: %v", e.Sheet, e.Row, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Sheet, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError reports a failed append or update.
type SaveError struct {
	Sheet string
	Op    string
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Sheet, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// DeleteError reports a failed row removal.
type DeleteError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s row %d: %v", e.Sheet, e.Row, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// ValidationError reports a record rejected before reaching the store.
type ValidationError struct {
	Sheet string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record: %v", e.Sheet, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
