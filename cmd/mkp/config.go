// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkptool/mkp/internal/config"
)

// newConfigCommand creates the `mkp config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mkp configuration",
		Long: `Manage mkp configuration.

Configuration is read from, in order of precedence:
  - the --config flag
  - $XDG_CONFIG_HOME/mkp/mkp.cue (~/.config/mkp/mkp.cue)
  - ./mkp.cue

Environment variables with the MKP_ prefix override the file, e.g.
MKP_SITE_ROOT or MKP_UI_VERBOSE. $OMD_ROOT is used when no site root is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.reportError(err, nil)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}
	cfg := loaded.Config

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if loaded.Path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), loaded.Path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	value := func(s string) string {
		if s == "" {
			return SubtitleStyle.Render("(not set)")
		}
		return valueStyle.Render(s)
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("site_root"), value(cfg.SiteRoot))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("var_dir"), value(cfg.VarDir))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("host_version"), value(cfg.HostVersion))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("parts"))
	if len(cfg.Parts) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(defaults)"))
	}
	for _, p := range cfg.Parts {
		var details []string
		if p.Title != "" {
			details = append(details, "title: "+p.Title)
		}
		if p.Path != "" {
			details = append(details, "path: "+p.Path)
		}
		if p.Exclude != nil {
			details = append(details, "exclude: ["+strings.Join(p.Exclude, ", ")+"]")
		}
		fmt.Fprintf(w, "  - %s %s\n", valueStyle.Render(p.Ident), SubtitleStyle.Render(strings.Join(details, ", ")))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("archive"))
	fmt.Fprintf(w, "  compression_level: %s\n", valueStyle.Render(fmt.Sprintf("%d", cfg.Archive.CompressionLevel)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("packaging"))
	fmt.Fprintf(w, "  enforce_compatibility: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Packaging.EnforceCompatibility)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	return nil
}

func initConfig(app *App) error {
	cfgPath, created, err := config.CreateDefaultConfig()
	if err != nil {
		return app.reportError(err, nil)
	}
	if !created {
		fmt.Fprintf(app.stdout, "Config file already exists at: %s\n", cfgPath)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default config file at: %s\n", SuccessStyle.Render(successIcon), cfgPath)
	return nil
}

func showConfigPath(app *App) error {
	if app.flags.configFile != "" {
		fmt.Fprintln(app.stdout, app.flags.configFile)
		return nil
	}
	cfgPath, err := config.ConfigFilePath()
	if err != nil {
		return app.reportError(err, nil)
	}
	fmt.Fprintln(app.stdout, cfgPath)
	return nil
}
