package filesystem

import (
	stderrors "errors"
	"io/fs"

	"github.com/brettbedarf/filenode/internal/metrics"
	"github.com/jmgilman/go/errors"
)

var (
	// ErrNotSupported is returned by devices for primitives they do not implement
	ErrNotSupported = errors.New(errors.CodeNotImplemented, "operation not supported by device")

	// ErrRecursionLimit is an integrity fault raised when a walk exceeds the configured depth
	ErrRecursionLimit = errors.New(errors.CodeInternal, "walk recursion limit exceeded")

	// ErrInconsistentTree is an integrity fault raised when parent and child linkage disagree
	ErrInconsistentTree = errors.New(errors.CodeInternal, "inconsistent node linkage")

	// ErrAborted is reported by commands stopped through their abort flag or an abort-all answer
	ErrAborted = errors.New(errors.CodeConflict, "command aborted")

	// ErrNoDestination is returned for commands requiring a destination node
	ErrNoDestination = errors.New(errors.CodeInvalidInput, "command requires a destination")

	// ErrClosed is returned when submitting to a stopped worker
	ErrClosed = errors.New(errors.CodeUnavailable, "registry closed")
)

// deviceError converts a raw device error into a coded error carrying the
// operation and node path. Raw device errors never leave the node layer.
func deviceError(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var code errors.ErrorCode
	switch {
	case stderrors.Is(err, ErrNotSupported):
		return err
	case stderrors.Is(err, fs.ErrNotExist):
		code = errors.CodeNotFound
	case stderrors.Is(err, fs.ErrExist):
		code = errors.CodeAlreadyExists
	case stderrors.Is(err, fs.ErrPermission):
		code = errors.CodeForbidden
	default:
		code = errors.CodeExecutionFailed
		metrics.RecordDeviceError(op)
	}
	wrapped := errors.Wrapf(err, code, "%s %s", op, path)
	return errors.WithContext(wrapped, "path", path)
}

// IsNotFound reports whether err is the expected condition of a missing file
func IsNotFound(err error) bool {
	return errors.GetCode(err) == errors.CodeNotFound || stderrors.Is(err, fs.ErrNotExist)
}

// IsExist reports whether err signals an already existing destination
func IsExist(err error) bool {
	return errors.GetCode(err) == errors.CodeAlreadyExists || stderrors.Is(err, fs.ErrExist)
}

// IsPermission reports whether err signals a denied access
func IsPermission(err error) bool {
	return errors.GetCode(err) == errors.CodeForbidden || stderrors.Is(err, fs.ErrPermission)
}
