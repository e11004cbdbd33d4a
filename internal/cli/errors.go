package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/amanthanvi/tripbook/internal/app"
	"github.com/amanthanvi/tripbook/internal/config"
	"github.com/amanthanvi/tripbook/internal/storage"
)

const (
	ExitCodeSuccess  = 0
	ExitCodeGeneric  = 1
	ExitCodeUsage    = 2
	ExitCodeNotFound = 3
	ExitCodeIO       = 7
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) ExitCode() int {
	if e == nil {
		return ExitCodeGeneric
	}
	return e.Code
}

func hasExitCode(err error) bool {
	var coded interface{ ExitCode() int }
	return errors.As(err, &coded)
}

func mapCommandError(err error) error {
	if err == nil {
		return nil
	}
	if hasExitCode(err) {
		return err
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &ExitError{Code: ExitCodeNotFound, Err: err}
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, app.ErrUnknownType),
		errors.Is(err, config.ErrInvalidConfig):
		return &ExitError{Code: ExitCodeUsage, Err: err}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return &ExitError{Code: ExitCodeIO, Err: err}
	}
	return &ExitError{Code: ExitCodeGeneric, Err: err}
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{
		Code: ExitCodeUsage,
		Err:  fmt.Errorf(format, args...),
	}
}
