// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mkptool/mkp/internal/issue"
	"github.com/mkptool/mkp/pkg/packaging"
)

func TestToActionable(t *testing.T) {
	t.Parallel()

	conflict := &packaging.Error{
		Kind: packaging.KindFileConflict,
		Op:   "install",
		Name: "hello-1.0.mkp",
		Step: "check ownership",
		Err: &packaging.FileConflictError{Conflicts: []packaging.Conflict{
			{Part: "checks", Path: "a", Owner: "zeta"},
			{Part: "checks", Path: "b", Owner: "alpha"},
			{Part: "checks", Path: "c", Owner: "zeta"},
		}},
	}

	tests := []struct {
		name            string
		err             error
		wantMsg         string
		wantIssue       issue.Id
		wantSuggestions []string
	}{
		{
			name:      "not found",
			err:       &packaging.Error{Kind: packaging.KindNotFound, Op: "remove", Name: "hello"},
			wantMsg:   "failed to remove package: hello: not found",
			wantIssue: issue.PackageNotFoundId,
			wantSuggestions: []string{
				"Run 'mkp list' to see the installed packages",
			},
		},
		{
			name:      "file conflict names each owner once",
			err:       conflict,
			wantMsg:   "failed to install package: hello-1.0.mkp: check ownership: checks/a (owned by zeta)",
			wantIssue: issue.FileConflictId,
			wantSuggestions: []string{
				"Run 'mkp release alpha' to give up its files",
				"Run 'mkp release zeta' to give up its files",
			},
		},
		{
			name:      "incompatible version",
			err:       &packaging.Error{Kind: packaging.KindIncompatibleVersion, Op: "install", Name: "x.mkp", Err: packaging.ErrIncompatibleVersion},
			wantMsg:   "failed to install package: x.mkp: package is incompatible with this version",
			wantIssue: issue.IncompatibleVersionId,
			wantSuggestions: []string{
				"Set packaging.enforce_compatibility to false to install anyway",
			},
		},
		{
			name:    "plain error",
			err:     errors.New("boom"),
			wantMsg: "failed to run command: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ae := toActionable(tt.err, nil)
			if !strings.HasPrefix(ae.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want prefix %q", ae.Error(), tt.wantMsg)
			}
			if ae.Issue != tt.wantIssue {
				t.Errorf("Issue = %d, want %d", ae.Issue, tt.wantIssue)
			}
			if len(ae.Suggestions) != len(tt.wantSuggestions) {
				t.Fatalf("Suggestions = %q, want %q", ae.Suggestions, tt.wantSuggestions)
			}
			for i := range tt.wantSuggestions {
				if ae.Suggestions[i] != tt.wantSuggestions[i] {
					t.Errorf("Suggestions[%d] = %q, want %q", i, ae.Suggestions[i], tt.wantSuggestions[i])
				}
			}
			if !errors.Is(ae, tt.err) {
				t.Error("actionable error must keep the original error in its chain")
			}
		})
	}
}

func TestToActionable_PassesThroughActionable(t *testing.T) {
	t.Parallel()

	orig := issue.NewErrorContext().WithOperation("load configuration").Build()
	if got := toActionable(orig, nil); got != orig {
		t.Errorf("toActionable() = %p, want the original %p", got, orig)
	}
}

func TestReportError(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	var gotStyle string
	app, err := NewApp(Dependencies{
		Stderr: &stderr,
		Stdout: &bytes.Buffer{},
		Issues: issue.RenderFunc(func(in, style string) (string, error) {
			gotStyle = style
			return in, nil
		}),
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	pe := &packaging.Error{Kind: packaging.KindCorruptArchive, Op: "install", Name: "bad.mkp", Step: "extract", Err: errors.New("unexpected EOF")}
	got := app.reportError(pe, nil)

	var exitErr *ExitError
	if !errors.As(got, &exitErr) || exitErr.Err != nil {
		t.Fatalf("reportError() = %v, want a reported *ExitError", got)
	}
	out := stderr.String()
	for _, want := range []string{
		"failed to install package: bad.mkp: extract: unexpected EOF",
		"Download or pack the package file again",
		"# Package archive is corrupt!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stderr missing %q:\n%s", want, out)
		}
	}
	if gotStyle != "auto" {
		t.Errorf("issue style = %q, want auto", gotStyle)
	}
}
