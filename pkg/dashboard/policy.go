package dashboard

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPolicy is returned by ParseErrorPolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("unknown meter error policy")

// ErrorPolicy decides what a successful meter poll does to an earlier
// meter list error.
type ErrorPolicy int

const (
	// ErrorSticky keeps the view locked on the error message for the rest
	// of its lifetime.
	ErrorSticky ErrorPolicy = iota
	// ErrorResetOnSuccess clears the error on the next successful poll.
	ErrorResetOnSuccess
)

func (p ErrorPolicy) String() string {
	switch p {
	case ErrorSticky:
		return "sticky"
	case ErrorResetOnSuccess:
		return "reset"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// ParseErrorPolicy parses "sticky" or "reset".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sticky":
		return ErrorSticky, nil
	case "reset":
		return ErrorResetOnSuccess, nil
	default:
		return ErrorSticky, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
