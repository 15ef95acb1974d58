// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkptool/mkp/pkg/packaging"
	"github.com/mkptool/mkp/pkg/pkginfo"
	"github.com/mkptool/mkp/pkg/types"
)

func newInstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install PACK.mkp",
		Short: "Install or update a package from a package file",
		Long: `Install the package in PACK.mkp. An installed package of the same name is
updated: its files are replaced and files the new version no longer ships
are removed.

Nothing is changed when a file of the package belongs to another package.

Examples:
  mkp install hello-1.0.mkp
  mkp install -v hello-1.1.mkp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), app, args[0])
		},
	}
}

func runInstall(ctx context.Context, app *App, path string) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	res, err := s.manager.Install(types.FilesystemPath(path))
	if err != nil {
		return app.reportError(err, s)
	}

	info := res.Info
	if res.Replaced != nil {
		fmt.Fprintf(app.stdout, "%s Updated %s from version %s to %s\n", SuccessStyle.Render(successIcon),
			CmdStyle.Render(info.Name), res.Replaced.Version, info.Version)
	} else {
		fmt.Fprintf(app.stdout, "%s Installed %s version %s\n", SuccessStyle.Render(successIcon),
			CmdStyle.Render(info.Name), info.Version)
	}

	if s.verbose {
		writeChanges(app, "Added", res.Added)
		writeChanges(app, "Updated", res.Updated)
		writeChanges(app, "Removed", res.Removed)
		fmt.Fprintf(app.stdout, "%s\n", VerboseStyle.Render("Transaction: "+res.TransactionID))
	}

	switch res.Compatibility.Status {
	case pkginfo.CompatTooOld, pkginfo.CompatTooNew:
		fmt.Fprintf(app.stderr, "%s %s\n", WarningStyle.Render(warnIcon+" Warning:"), res.Compatibility.Reason)
	case pkginfo.CompatUnknown:
		if s.verbose {
			fmt.Fprintf(app.stderr, "%s compatibility not checked: %s\n", WarningStyle.Render(warnIcon), res.Compatibility.Reason)
		}
	}
	return nil
}

func writeChanges(app *App, label string, refs []packaging.FileRef) {
	fmt.Fprintf(app.stdout, "%s %s: %d files\n", infoIcon, label, len(refs))
	for _, ref := range refs {
		fmt.Fprintf(app.stdout, "    %s\n", VerboseStyle.Render(string(ref.Abs)))
	}
}
