// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newFindCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "find",
		Short: "List files no package owns",
		Long: `List the files in the package parts and config parts that belong to no
installed package.

Examples:
  mkp find
  mkp find -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd.Context(), app)
		},
	}
}

func runFind(ctx context.Context, app *App) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	found, err := s.manager.Find()
	if err != nil {
		return app.reportError(err, s)
	}

	if !s.verbose {
		for _, pf := range found {
			for _, f := range pf.Files {
				fmt.Fprintln(app.stdout, pf.Part.Abs(f))
			}
		}
		return nil
	}

	if len(found) == 0 {
		fmt.Fprintln(app.stdout, "No unpackaged files found.")
		return nil
	}

	var rows [][]string
	for _, pf := range found {
		for _, f := range pf.Files {
			rows = append(rows, []string{pf.Part.Title, f})
		}
	}
	fmt.Fprintln(app.stdout, TitleStyle.Render("Unpackaged files:"))
	fmt.Fprintln(app.stdout, newTable([]string{"Part", "File"}, rows, &partTitleStyle).Render())
	return nil
}
