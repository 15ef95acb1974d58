// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies manager failures.
type Kind int

const (
	// KindAlreadyExists means a record with the name is already installed.
	KindAlreadyExists Kind = iota + 1
	// KindNotFound means the package or package file does not exist.
	KindNotFound
	// KindParseError means a stored record could not be decoded.
	KindParseError
	// KindCorruptArchive means a package file is unreadable or incomplete.
	KindCorruptArchive
	// KindWorkingDirectoryConflict means pack was asked to write inside a
	// managed directory.
	KindWorkingDirectoryConflict
	// KindIOFailure covers every other filesystem failure.
	KindIOFailure
	// KindFileConflict means an installed package already owns a file the
	// new package delivers.
	KindFileConflict
	// KindIncompatibleVersion means the host version is outside the
	// package's supported range and compatibility is enforced.
	KindIncompatibleVersion
	// KindInvalidName means the package name breaks the naming rules.
	KindInvalidName
)

// Sentinel errors, one per Kind, for errors.Is.
var (
	ErrAlreadyExists            = errors.New("package already exists")
	ErrNotFound                 = errors.New("package not found")
	ErrParse                    = errors.New("package info is broken")
	ErrCorruptArchive           = errors.New("package file is corrupt")
	ErrWorkingDirectoryConflict = errors.New("output directory is inside a managed directory")
	ErrIOFailure                = errors.New("filesystem operation failed")
	ErrFileConflict             = errors.New("file belongs to another package")
	ErrIncompatibleVersion      = errors.New("package is incompatible with this version")
	ErrInvalidName              = errors.New("invalid package name")
)

var kindNames = map[Kind]string{
	KindAlreadyExists:            "already exists",
	KindNotFound:                 "not found",
	KindParseError:               "parse error",
	KindCorruptArchive:           "corrupt archive",
	KindWorkingDirectoryConflict: "working directory conflict",
	KindIOFailure:                "I/O failure",
	KindFileConflict:             "file conflict",
	KindIncompatibleVersion:      "incompatible version",
	KindInvalidName:              "invalid name",
}

var kindSentinels = map[Kind]error{
	KindAlreadyExists:            ErrAlreadyExists,
	KindNotFound:                 ErrNotFound,
	KindParseError:               ErrParse,
	KindCorruptArchive:           ErrCorruptArchive,
	KindWorkingDirectoryConflict: ErrWorkingDirectoryConflict,
	KindIOFailure:                ErrIOFailure,
	KindFileConflict:             ErrFileConflict,
	KindIncompatibleVersion:      ErrIncompatibleVersion,
	KindInvalidName:              ErrInvalidName,
}

// String returns a short human-readable name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every Manager operation.
type Error struct {
	Kind Kind
	// Op is the operation, e.g. "install".
	Op string
	// Name is the package name or package file path.
	Name string
	// Step names the failing step of a multi-step operation, e.g.
	// "extract" or "replace checks/foo".
	Step string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Name != "" {
		sb.WriteString(" " + e.Name)
	}
	if e.Step != "" {
		sb.WriteString(": " + e.Step)
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	} else {
		sb.WriteString(": " + kindSentinels[e.Kind].Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func newError(kind Kind, op, name, step string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Step: step, Err: err}
}

// FileConflictError lists the files an install would take from other
// packages.
type FileConflictError struct {
	Conflicts []Conflict
}

// Conflict is one file owned by another package.
type Conflict struct {
	Part  string
	Path  string
	Owner string
}

// Error implements the error interface.
func (e *FileConflictError) Error() string {
	const shown = 5
	var sb strings.Builder
	for i, c := range e.Conflicts {
		if i == shown {
			fmt.Fprintf(&sb, ", and %d more", len(e.Conflicts)-shown)
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s/%s (owned by %s)", c.Part, c.Path, c.Owner)
	}
	return sb.String()
}
