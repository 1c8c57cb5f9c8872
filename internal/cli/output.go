package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/paizhu/internal/export"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// exitErr carries the exit code chosen by a command.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

func userErr(err error) error { return &exitErr{code: exitUserError, err: err} }
func sysErr(err error) error  { return &exitErr{code: exitSysError, err: err} }

// exitCode maps an error to a process exit code. Errors not classified by
// a command come from cobra's flag and argument parsing.
func exitCode(err error) int {
	var e *exitErr
	if errors.As(err, &e) {
		return e.code
	}
	return exitUserError
}

// fail classifies err for the exit code. Problems with the caller's input
// are user errors; everything else is a system error.
func fail(err error) error {
	if err == nil {
		return nil
	}
	var e *exitErr
	if errors.As(err, &e) {
		return err
	}
	var cerr *types.CopyError
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrTableNotFound),
		errors.Is(err, types.ErrBackendUnknown),
		errors.Is(err, types.ErrBackendEmpty),
		errors.Is(err, export.ErrNothingToExport),
		errors.As(err, &cerr):
		return userErr(err)
	}
	return sysErr(err)
}

func printJSON(cmd *cobra.Command, v any) error {
	return writeJSON(cmd.OutOrStdout(), v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return sysErr(fmt.Errorf("encode output: %w", err))
	}
	return nil
}
