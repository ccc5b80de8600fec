package options

import (
	"errors"
	"fmt"
)

// Sentinel errors for option parsing.
var (
	ErrUnknownKind   = errors.New("options: unknown type kind")
	ErrUnknownOption = errors.New("options: unknown option")
)

// SchemaError reports a malformed spec or an invalid default discovered at
// schema construction time. It is fatal at startup: a schema that fails to
// build must never serve requests.
type SchemaError struct {
	Option string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("options: invalid schema: %v", e.Err)
	}
	return fmt.Sprintf("options: invalid schema for %q: %v", e.Option, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ValueError reports a request-time validation failure: an unknown option
// name or a value that does not satisfy its spec. Always recoverable; the
// server layer surfaces it as a client error.
type ValueError struct {
	Option string
	Err    error
}

func (e *ValueError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("options: %v", e.Err)
	}
	return fmt.Sprintf("options: invalid value for %q: %v", e.Option, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }
