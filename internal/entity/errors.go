package entity

import (
	"fmt"
)

// ValidationKind classifies why a feed or an entry was rejected.
type ValidationKind string

const (
	MissingField       ValidationKind = "missing field"
	MalformedTimestamp ValidationKind = "malformed timestamp"
	MalformedFeed      ValidationKind = "malformed feed"
)

// ValidationError is returned when the feed payload or one of its entries is malformed.
// Index is the position of the offending entry, or -1 for feed-level failures.
type ValidationError struct {
	Kind  ValidationKind
	Index int
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	msg := string(e.Kind)

	if e.Field != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}

	if e.Index >= 0 {
		msg = fmt.Sprintf("entry %d: %s", e.Index, msg)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AuthError is returned when a session could not be created with the posting API.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failed remote call: feed fetch, image fetch,
// blob upload or record creation.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed read or write of durable state.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("could not %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
