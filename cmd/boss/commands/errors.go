package commands

import (
	"fmt"
	"io"

	"github.com/teranos/boss/errors"
)

// Process exit codes by error class
const (
	ExitFailure  = 1
	ExitInvalid  = 2 // bad arguments or input
	ExitNotFound = 3 // no such job
	ExitConflict = 4 // job in the wrong state, file already exists
)

// ExitCode maps err to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsInvalidRequestError(err):
		return ExitInvalid
	case errors.IsNotFoundError(err):
		return ExitNotFound
	case errors.IsConflictError(err):
		return ExitConflict
	default:
		return ExitFailure
	}
}

// PrintError writes err and its hints to w. From -vv on the full error
// with details and stack trace is printed.
func PrintError(w io.Writer, err error) {
	if Verbosity >= 2 {
		fmt.Fprintf(w, "Error: %+v\n", err)
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}
