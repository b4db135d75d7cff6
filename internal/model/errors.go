package model

import "fmt"

// ValidationError reports missing required input. The action is blocked and
// no state changes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// ExternalServiceError reports a failed call to the reasoning service.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ImportFormatError reports an import file that is not a record sequence.
type ImportFormatError struct {
	Err error
}

func (e *ImportFormatError) Error() string {
	return fmt.Sprintf("import format: %v", e.Err)
}

func (e *ImportFormatError) Unwrap() error { return e.Err }

// PersistenceError reports an unavailable or corrupt storage backend.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
