package dom

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocument is returned when there is nothing to scan.
	ErrNoDocument = errors.New("no document to scan")

	// ErrNodeAccess marks a failure reading a single node.
	ErrNodeAccess = errors.New("node not accessible")

	// ErrMalformedStructuredData marks an embedded metadata block that failed to parse.
	ErrMalformedStructuredData = errors.New("malformed structured data")
)

// NodeAccessError reports a failed read on one element. The caller skips the
// element and carries on.
type NodeAccessError struct {
	Op  string
	Tag string
	Err error
}

func (e *NodeAccessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s <%s>: %v", e.Op, e.Tag, ErrNodeAccess)
	}
	return fmt.Sprintf("%s <%s>: %v", e.Op, e.Tag, e.Err)
}

func (e *NodeAccessError) Unwrap() error { return e.Err }

func (e *NodeAccessError) Is(target error) bool { return target == ErrNodeAccess }

// MalformedStructuredDataError reports a JSON-LD block that could not be decoded.
type MalformedStructuredDataError struct {
	Index int
	Err   error
}

func (e *MalformedStructuredDataError) Error() string {
	return fmt.Sprintf("structured data block %d: %v", e.Index, e.Err)
}

func (e *MalformedStructuredDataError) Unwrap() error { return e.Err }

func (e *MalformedStructuredDataError) Is(target error) bool {
	return target == ErrMalformedStructuredData
}
