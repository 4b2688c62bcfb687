// Package errors defines the errno-backed error values returned by every part
// of the file system.
//
// Each error carries an [Errno]. Derived errors created with WithMessage or
// Wrap still match their parent under [errors.Is], and Wrap also matches the
// wrapped cause.
package errors

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is a wrapper around system errno codes, with a customizable error
// message.
type DriverError interface {
	error
	Errno() Errno
	Unwrap() error
	// WithMessage returns a new error with `message` appended to this error's
	// message. The new error matches this one under errors.Is.
	WithMessage(message string) DriverError
	// Wrap returns a new error combining this one with `err`. The result
	// matches both under errors.Is.
	Wrap(err error) DriverError
}

type driverError struct {
	errno         Errno
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e driverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrError(e.errno)
}

func (e driverError) Errno() Errno {
	return e.errno
}

func (e driverError) Unwrap() error {
	return e.originalError
}

func (e driverError) WithMessage(message string) DriverError {
	return driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e,
	}
}

func (e driverError) Wrap(err error) DriverError {
	return driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// New creates a new [DriverError] with a default message derived from the
// system's error code.
func New(errnoCode Errno) DriverError {
	return driverError{
		errno:   errnoCode,
		message: StrError(errnoCode),
	}
}

// NewFromError creates a [DriverError] with the given code that wraps
// `originalError`.
func NewFromError(errnoCode Errno, originalError error) DriverError {
	return New(errnoCode).Wrap(originalError)
}

// NewWithMessage creates a new DriverError from a system error code with a
// custom message.
func NewWithMessage(errnoCode Errno, message string) DriverError {
	return driverError{
		errno:   errnoCode,
		message: fmt.Sprintf("%s: %s", StrError(errnoCode), message),
	}
}

// Generic errors.
var ErrNotPermitted = New(EPERM)
var ErrNotFound = New(ENOENT)
var ErrIOFailed = New(EIO)
var ErrInvalidFileDescriptor = New(EBADF)
var ErrBusy = New(EBUSY)
var ErrExists = New(EEXIST)
var ErrNoDevice = New(ENODEV)
var ErrIsADirectory = New(EISDIR)
var ErrInvalidArgument = New(EINVAL)
var ErrFileTooLarge = New(EFBIG)
var ErrNoSpaceOnDevice = New(ENOSPC)
var ErrReadOnlyFileSystem = New(EROFS)
var ErrResultOutOfRange = New(ERANGE)
var ErrNameTooLong = New(ENAMETOOLONG)
var ErrNotImplemented = New(ENOSYS)
var ErrNotSupported = New(ENOTSUP)
var ErrFileSystemCorrupted = New(EUCLEAN)
var ErrInvalidFileSystem = New(EMEDIUMTYPE)

// Boot sector errors.
var ErrInvalidLength = NewWithMessage(EINVAL, "boot sector buffer is too short")
var ErrInvalidSignature = NewWithMessage(EMEDIUMTYPE, "missing boot signature 0x55 0xAA")
var ErrBootSector = NewWithMessage(EMEDIUMTYPE, "unreadable boot sector")

// File system errors.
var ErrFileAlreadyExists = ErrExists
var ErrFileNotFound = ErrNotFound
var ErrInvalidName = NewWithMessage(EINVAL, "invalid file name")
var ErrNoSpace = ErrNoSpaceOnDevice
var ErrDirectoryFull = NewWithMessage(ENOSPC, "root directory is full")
