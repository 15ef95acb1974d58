// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mkptool/mkp/pkg/pkginfo"
	"github.com/mkptool/mkp/pkg/types"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list [NAME|PACK.mkp]...",
		Short: "List installed packages or the files of packages",
		Long: `Without arguments, list the names of the installed packages. With -v the
title and file count of each package are shown as well.

With arguments, list the files of each installed package NAME or package
file PACK.mkp.

Examples:
  mkp list
  mkp list -v
  mkp list hello
  mkp list hello-1.0.mkp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), app, args)
		},
	}
}

func runList(ctx context.Context, app *App, args []string) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	if len(args) == 0 {
		return listPackages(app, s)
	}
	for _, arg := range args {
		info, err := loadInfo(s, arg)
		if err != nil {
			return app.reportError(err, s)
		}
		listContents(app, s, arg, info)
	}
	return nil
}

func listPackages(app *App, s *session) error {
	summaries, err := s.manager.List()
	if err != nil {
		return app.reportError(err, s)
	}

	if !s.verbose {
		for _, sum := range summaries {
			fmt.Fprintln(app.stdout, sum.Name)
		}
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, sum := range summaries {
		if sum.Err != nil {
			s.logger.Debug("broken record", "name", sum.Name, "error", sum.Err)
			rows = append(rows, []string{sum.Name, "package info is missing or broken", "0"})
			continue
		}
		rows = append(rows, []string{sum.Name, sum.Info.Title, strconv.Itoa(sum.Info.NumFiles())})
	}
	fmt.Fprintln(app.stdout, newTable([]string{"Name", "Title", "Files"}, rows, &tableNameStyle).Render())
	return nil
}

// loadInfo reads the record of an installed package or of a package file.
func loadInfo(s *session, arg string) (*pkginfo.Info, error) {
	if isPackageFile(arg) {
		return s.manager.Inspect(types.FilesystemPath(arg))
	}
	return s.manager.Get(arg)
}

func listContents(app *App, s *session, arg string, info *pkginfo.Info) {
	refs := s.manager.Files(info)
	if !s.verbose {
		for _, ref := range refs {
			fmt.Fprintln(app.stdout, string(ref.Abs))
		}
		return
	}
	fmt.Fprintf(app.stdout, "Files in package %s:\n", CmdStyle.Render(arg))
	writeFilesByPart(app.stdout, refs, "  ")
}
