package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ryohey/warp/internal/compiler"
	"github.com/ryohey/warp/internal/config"
	"github.com/ryohey/warp/internal/document"
	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/watch"
)

// loadTree reads a scene document or an intermediate tree file.
func loadTree(path string, cfg *config.Config) (*ir.NodeRecord, error) {
	return watch.LoadFile(path, cfg.TreeOptions()...)
}

// loadErrorCode maps a loadTree failure to a CLI error code.
func loadErrorCode(path string, err error) string {
	var docErr *document.Error
	var treeErr *compiler.TreeError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound
	case errors.As(err, &docErr):
		return ErrCodeParse
	case errors.As(err, &treeErr):
		return ErrCodeTree
	case strings.EqualFold(filepath.Ext(path), ".json"):
		return ErrCodeDecode
	}
	return ErrCodeRead
}

// commandError prints an error in the configured format and returns an
// ExitError carrying code.
func commandError(formatter *OutputFormatter, exitCode int, code, message string, err error) error {
	var details any
	if err != nil {
		details = err.Error()
	}
	_ = formatter.Error(code, message, details)
	return WrapExitError(exitCode, code+": "+message, err)
}

// stepError carries the CLI error code of a failed step.
type stepError struct {
	code    string
	message string
	err     error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
}

func (e *stepError) Unwrap() error { return e.err }

// reportError prints err and returns its ExitError. Errors that are not a
// stepError report as generic failures.
func reportError(formatter *OutputFormatter, err error) error {
	var se *stepError
	if errors.As(err, &se) {
		return commandError(formatter, ExitCommandError, se.code, se.message, se.err)
	}
	return commandError(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
