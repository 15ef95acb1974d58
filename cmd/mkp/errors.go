// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/mkptool/mkp/internal/config"
	"github.com/mkptool/mkp/internal/issue"
	"github.com/mkptool/mkp/pkg/packaging"
	"github.com/mkptool/mkp/pkg/types"
)

// operationNames maps manager operations to the phrase used in messages.
var operationNames = map[string]string{
	"create":  "create package",
	"pack":    "pack package",
	"install": "install package",
	"remove":  "remove package",
	"release": "release package",
	"show":    "show package",
	"list":    "list packages",
	"find":    "find unpackaged files",
}

// failure presents a *packaging.Error without repeating the operation and
// name the ActionableError already shows.
type failure struct {
	err *packaging.Error
}

func (f failure) Error() string {
	var reason string
	if f.err.Err != nil {
		reason = f.err.Err.Error()
	} else {
		reason = f.err.Kind.String()
	}
	if f.err.Step != "" {
		return f.err.Step + ": " + reason
	}
	return reason
}

func (f failure) Unwrap() error { return f.err }

// reportError renders err on stderr and returns the ExitError for RunE.
// s may be nil when the failure happened before a session existed.
func (a *App) reportError(err error, s *session) error {
	ae := toActionable(err, s)
	verbose := a.flags.verbose || (s != nil && s.verbose)

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+ae.Format(verbose))
	if ae.HasIssue() {
		a.renderIssue(ae.Issue, s.colorScheme())
	}
	return &ExitError{Code: types.ExitFailure}
}

// renderIssue prints the catalog entry id with the configured renderer.
func (a *App) renderIssue(id issue.Id, scheme config.ColorScheme) {
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.RenderWith(a.Issues, issueStyle(scheme))
	if err != nil {
		a.newLogger(false).Warn("failed to render issue help", "issue", int(id), "error", err)
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// toActionable attaches suggestions and a catalog entry to err. Errors that
// already are actionable pass through unchanged.
func toActionable(err error, s *session) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	var pe *packaging.Error
	if !errors.As(err, &pe) {
		return issue.WrapWithOperation(err, "run command")
	}

	op, ok := operationNames[pe.Op]
	if !ok {
		op = pe.Op
	}
	ctx := issue.NewErrorContext().
		WithOperation(op).
		WithResource(pe.Name).
		Wrap(failure{err: pe})

	switch pe.Kind {
	case packaging.KindNotFound:
		ctx.WithIssue(issue.PackageNotFoundId)
		if pe.Op == "install" {
			ctx.WithSuggestion("Check the path of the package file")
		} else {
			ctx.WithSuggestion("Run 'mkp list' to see the installed packages")
		}
	case packaging.KindAlreadyExists:
		ctx.WithIssue(issue.PackageExistsId).WithSuggestions(
			fmt.Sprintf("Run 'mkp show %s' to inspect the existing package", pe.Name),
			fmt.Sprintf("Run 'mkp release %s' first to start over with the same name", pe.Name),
		)
	case packaging.KindParseError:
		ctx.WithIssue(issue.RecordParseErrorId)
		if s != nil {
			ctx.WithSuggestion("Fix or delete " + filepath.Join(string(s.site.PackageDir), pe.Name))
		}
	case packaging.KindCorruptArchive:
		ctx.WithIssue(issue.CorruptArchiveId).
			WithSuggestion("Download or pack the package file again")
	case packaging.KindWorkingDirectoryConflict:
		ctx.WithIssue(issue.WorkingDirectoryConflictId).WithSuggestions(
			"Change to a directory outside the site before packing",
			"Or choose the output directory with --output",
		)
	case packaging.KindIOFailure:
		ctx.WithIssue(issue.FileAccessFailedId).
			WithSuggestion("Check that the site directories are writable by the current user")
	case packaging.KindFileConflict:
		ctx.WithIssue(issue.FileConflictId)
		for _, owner := range conflictOwners(err) {
			ctx.WithSuggestion(fmt.Sprintf("Run 'mkp release %s' to give up its files", owner))
		}
	case packaging.KindIncompatibleVersion:
		ctx.WithIssue(issue.IncompatibleVersionId).
			WithSuggestion("Set packaging.enforce_compatibility to false to install anyway")
	case packaging.KindInvalidName:
		ctx.WithIssue(issue.InvalidPackageNameId).
			WithSuggestion("Start with a letter or digit and use only letters, digits, '.', '_' and '-'")
	}
	return ctx.Build()
}

// conflictOwners returns the sorted owners named by a FileConflictError.
func conflictOwners(err error) []string {
	var fce *packaging.FileConflictError
	if !errors.As(err, &fce) {
		return nil
	}
	var owners []string
	for _, c := range fce.Conflicts {
		if !slices.Contains(owners, c.Owner) {
			owners = append(owners, c.Owner)
		}
	}
	slices.Sort(owners)
	return owners
}
