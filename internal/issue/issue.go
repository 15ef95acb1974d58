// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	PackageNotFoundId Id = iota + 1
	PackageExistsId
	RecordParseErrorId
	CorruptArchiveId
	WorkingDirectoryConflictId
	FileAccessFailedId
	FileConflictId
	IncompatibleVersionId
	InvalidPackageNameId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

// Renderer turns markdown into terminal output. The default wraps
// glamour.Render.
type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

// RenderFunc adapts a plain function to Renderer.
type RenderFunc func(in string, stylePath string) (string, error)

// Render calls f.
func (f RenderFunc) Render(in, stylePath string) (string, error) {
	return f(in, stylePath)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message with the "See also" links appended.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the issue with glamour using the given style ("dark",
// "light", "notty", "auto" or a JSON style path).
func (i *Issue) Render(stylePath string) (string, error) {
	return i.RenderWith(defaultRenderer, stylePath)
}

// RenderWith renders the issue with r.
func (i *Issue) RenderWith(r Renderer, stylePath string) (string, error) {
	return r.Render(i.Markdown(), stylePath)
}

var (
	defaultRenderer Renderer = RenderFunc(glamour.Render)

	packageNotFoundIssue = &Issue{
		id: PackageNotFoundId,
		mdMsg: `
# Package not found!

There is no package record with this name in the package directory of
the site.

## Things you can try:
- List the installed packages:
~~~
$ mkp list
~~~

- If you meant a package archive, pass the path of the ` + "`.mkp`" + ` file:
~~~
$ mkp show ./hello-1.0.mkp
~~~`,
	}

	packageExistsIssue = &Issue{
		id: PackageExistsId,
		mdMsg: `
# Package already exists!

A package with this name is already installed. Package names form one flat
namespace on a site.

## Things you can try:
- Show what the existing package contains:
~~~
$ mkp show NAME
~~~

- Release the existing package first, keeping its files:
~~~
$ mkp release NAME
~~~

- Pick another name.`,
	}

	recordParseErrorIssue = &Issue{
		id: RecordParseErrorId,
		mdMsg: `
# Package record cannot be parsed!

The metadata record is not valid package info. It was probably edited by
hand.

## Things you can try:
- Open the record in the package directory and fix the syntax
- Check the field names, e.g. ` + "`\"version.min_required\"`" + ` must be quoted
- ` + "`name`" + ` must match the file name of the record
- Every path listed under ` + "`files`" + ` must be relative to its part`,
	}

	corruptArchiveIssue = &Issue{
		id: CorruptArchiveId,
		mdMsg: `
# Package archive is corrupt!

The file is not a valid ` + "`.mkp`" + ` archive: it is not gzip compressed, the
container is truncated, the ` + "`info`" + ` member is missing, or a member points
outside its part.

## Things you can try:
- Download or copy the archive again
- Check that the file really is an ` + "`.mkp`" + ` archive:
~~~
$ tar -tzf hello-1.0.mkp
~~~`,
	}

	workingDirectoryConflictIssue = &Issue{
		id: WorkingDirectoryConflictId,
		mdMsg: `
# Cannot pack into a managed directory!

The archive would be written into a part directory or the internal data
directory of the site, where it could itself become package content.

## Things you can try:
- Change to another directory and pack again:
~~~
$ cd /tmp
$ mkp pack NAME
~~~

- Or choose the output directory explicitly:
~~~
$ mkp pack NAME -o /tmp
~~~`,
	}

	fileAccessFailedIssue = &Issue{
		id: FileAccessFailedId,
		mdMsg: `
# File access failed!

A file or directory of the site could not be read or written.

## Common causes:
- The command is not run as the site user
- A file listed in the package was replaced by a directory, or vice versa
- The disk is full

## Things you can try:
- Check ownership and permissions of the part directories
- Run the command again as the site user`,
	}

	fileConflictIssue = &Issue{
		id: FileConflictId,
		mdMsg: `
# Files belong to another package!

The archive contains files that are already owned by a different installed
package. Nothing was changed.

## Things you can try:
- See which package owns the files:
~~~
$ mkp list -v
~~~

- Remove the other package, or release it to drop its claim:
~~~
$ mkp release OTHER
~~~`,
	}

	incompatibleVersionIssue = &Issue{
		id: IncompatibleVersionId,
		mdMsg: `
# Package does not fit this version!

The package declares a version range that does not include the version of
this site.

## Things you can try:
- Look for a release of the package built for this version
- Disable the check in the configuration:
~~~cue
packaging: {
	enforce_compatibility: false
}
~~~`,
	}

	invalidPackageNameIssue = &Issue{
		id: InvalidPackageNameId,
		mdMsg: `
# Invalid package name!

Package names start with a letter or digit and contain only letters,
digits, ` + "`_`" + `, ` + "`.`" + ` and ` + "`-`" + `.

## Things you can try:
- Use a name like ` + "`my_checks`" + ` or ` + "`hello-world`",
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be loaded.

## Things you can try:
- Check the CUE syntax of the file
- Compare it with the defaults:
~~~
$ mkp config show
~~~

- Write a fresh configuration file:
~~~
$ mkp config init
~~~`,
	}

	issues = map[Id]*Issue{
		packageNotFoundIssue.Id():          packageNotFoundIssue,
		packageExistsIssue.Id():            packageExistsIssue,
		recordParseErrorIssue.Id():         recordParseErrorIssue,
		corruptArchiveIssue.Id():           corruptArchiveIssue,
		workingDirectoryConflictIssue.Id(): workingDirectoryConflictIssue,
		fileAccessFailedIssue.Id():         fileAccessFailedIssue,
		fileConflictIssue.Id():             fileConflictIssue,
		incompatibleVersionIssue.Id():      incompatibleVersionIssue,
		invalidPackageNameIssue.Id():       invalidPackageNameIssue,
		configLoadFailedIssue.Id():         configLoadFailedIssue,
	}
)

// Values returns all catalog entries ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
