// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mkptool/mkp/pkg/archive"
	"github.com/mkptool/mkp/pkg/packaging"
	"github.com/mkptool/mkp/pkg/pkginfo"
)

// formatFileSize formats a file size in bytes to a human-readable string
func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

// isPackageFile reports whether arg names a package file rather than an
// installed package.
func isPackageFile(arg string) bool {
	return strings.HasSuffix(arg, archive.Ext)
}

// partCounts renders "ident(n)" for every part with files: registry parts
// first, then parts the registry does not know.
func partCounts(m *packaging.Manager, info *pkginfo.Info) string {
	var counts []string
	known := make(map[string]bool)
	for _, part := range m.Parts().PackageParts() {
		known[part.Ident] = true
		if n := len(info.Files[part.Ident]); n > 0 {
			counts = append(counts, fmt.Sprintf("%s(%d)", part.Ident, n))
		}
	}
	for _, ident := range info.PartIdents() {
		if !known[ident] {
			counts = append(counts, fmt.Sprintf("%s(%d)", ident, len(info.Files[ident])))
		}
	}
	return strings.Join(counts, " ")
}

// writeFilesByPart prints refs grouped under bold part titles.
func writeFilesByPart(w io.Writer, refs []packaging.FileRef, indent string) {
	var current string
	for _, ref := range refs {
		if ref.Part.Ident != current {
			current = ref.Part.Ident
			fmt.Fprintf(w, "%s%s:\n", indent, partTitleStyle.Render(ref.Part.Title))
		}
		fmt.Fprintf(w, "%s  %s\n", indent, ref.Path)
	}
}

// newTable returns a borderless table with the shared header and cell styles.
// Cells of the first column use firstCol when set.
func newTable(headers []string, rows [][]string, firstCol *lipgloss.Style) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderStyle(tableBorderStyle).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(slices.Clone(rows)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 0 && firstCol != nil:
				return *firstCol
			default:
				return tableCellStyle
			}
		})
}
