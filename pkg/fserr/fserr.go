// Package fserr defines the portable error-kind taxonomy shared by every
// filesystem layer in eunix: E5FS, VirtFS (and DevFS/BinFS built on it), and
// the VFS. A Kind never gets reinterpreted as it crosses a layer boundary;
// callers that need to branch on cause should compare against a Kind with
// errors.As, not inspect message text.
package fserr

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

// Kind is the cross-layer error taxonomy from the specification. Unlike a
// bare syscall.Errno, a Kind carries its own Error() string independent of
// host OS errno text, while still being recognizable by a human used to
// POSIX spelling.
type Kind int

const (
	ENOENT Kind = iota + 1
	EEXIST
	ENOTDIR
	EISDIR
	EACCES
	EPERM
	EINVAL
	ENOSPC
	EBADFS
	EIO
	ENAMETOOLONG
)

var names = map[Kind]string{
	ENOENT:       "ENOENT",
	EEXIST:       "EEXIST",
	ENOTDIR:      "ENOTDIR",
	EISDIR:       "EISDIR",
	EACCES:       "EACCES",
	EPERM:        "EPERM",
	EINVAL:       "EINVAL",
	ENOSPC:       "ENOSPC",
	EBADFS:       "EBADFS",
	EIO:          "EIO",
	ENAMETOOLONG: "ENAMETOOLONG",
}

var messages = map[Kind]string{
	ENOENT:       "no such file or directory",
	EEXIST:       "file already exists",
	ENOTDIR:      "not a directory",
	EISDIR:       "is a directory",
	EACCES:       "permission denied",
	EPERM:        "operation not permitted",
	EINVAL:       "invalid argument",
	ENOSPC:       "no space left on device",
	EBADFS:       "corrupt filesystem",
	EIO:          "i/o error",
	ENAMETOOLONG: "name too long",
}

// errnoEquivalents maps a Kind to the closest host syscall.Errno, used only
// to produce a familiar Error() string; the Kind itself is what callers
// should branch on.
var errnoEquivalents = map[Kind]syscall.Errno{
	ENOENT:       syscall.ENOENT,
	EEXIST:       syscall.EEXIST,
	ENOTDIR:      syscall.ENOTDIR,
	EISDIR:       syscall.EISDIR,
	EACCES:       syscall.EACCES,
	EPERM:        syscall.EPERM,
	EINVAL:       syscall.EINVAL,
	ENOSPC:       syscall.ENOSPC,
	EIO:          syscall.EIO,
	ENAMETOOLONG: syscall.ENAMETOOLONG,
}

// Repr returns the kind's const-name spelling, e.g. "ENOENT".
func (k Kind) Repr() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "EUNKNOWN"
}

func (k Kind) String() string { return k.Repr() }

// Error implements the builtin error interface so a bare Kind can be
// returned and compared directly.
func (k Kind) Error() string {
	if m, ok := messages[k]; ok {
		return m
	}
	if errno, ok := errnoEquivalents[k]; ok {
		return errno.Error()
	}
	return "unknown filesystem error"
}

// FSError is a Kind wrapped with a path and a rich (stack-carrying) cause,
// the value every exported filesystem operation returns on failure.
type FSError struct {
	Kind Kind
	Path string
	err  error
}

func (e *FSError) Error() string {
	if e.Path == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Path
}

func (e *FSError) Unwrap() error { return e.err }

// Format satisfies fmt.Formatter so %+v prints the wrapped stack trace, same
// as github.com/pkg/errors values.
func (e *FSError) Format(s fmt.State, verb rune) {
	if f, ok := e.err.(fmt.Formatter); ok && verb == 'v' && s.Flag('+') {
		f.Format(s, verb)
		return
	}
	_, _ = s.Write([]byte(e.Error()))
}

// New builds an FSError of the given kind with no path attached yet.
func New(kind Kind, format string, args ...interface{}) *FSError {
	return &FSError{Kind: kind, err: errors.Wrapf(kind, format, args...)}
}

// WithPath returns a copy of err with Path set, matching the VFS's policy of
// "augment the message with the affected path, never re-tag the kind".
func WithPath(err error, path string) error {
	fe, ok := err.(*FSError)
	if !ok {
		return err
	}
	cp := *fe
	cp.Path = path
	return &cp
}

// Is reports whether err (or anything it wraps) is an FSError of kind k.
func Is(err error, k Kind) bool {
	var fe *FSError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == k
}

// KindOf extracts the Kind carried by err, or EIO if err is not an FSError
// (callers should treat this as "unclassified failure").
func KindOf(err error) Kind {
	fe, ok := err.(*FSError)
	if !ok {
		return EIO
	}
	return fe.Kind
}
