// SPDX-License-Identifier: MPL-2.0

package parts

import (
	"path/filepath"
)

// VarDir is the internal data directory relative to the site root. Package
// records live in VarDir/packages.
const VarDir = "var/check_mk"

type defaultPart struct {
	ident, title, rel string
}

var (
	defaultPackageParts = []defaultPart{
		{"checks", "Checks", "local/share/check_mk/checks"},
		{"notifications", "Notification scripts", "local/share/check_mk/notifications"},
		{"inventory", "Inventory plugins", "local/share/check_mk/inventory"},
		{"checkman", "Checks' man pages", "local/share/check_mk/checkman"},
		{"agents", "Agents", "local/share/check_mk/agents"},
		{"web", "Multisite extensions", "local/share/check_mk/web"},
		{"pnp-templates", "PNP4Nagios templates", "local/share/check_mk/pnp-templates"},
		{"doc", "Documentation files", "local/share/doc/check_mk"},
		{"locales", "Localizations", "local/share/check_mk/locale"},
		{"bin", "Binaries", "local/bin"},
		{"lib", "Libraries", "local/lib"},
		{"mibs", "SNMP MIBs", "local/share/snmp/mibs"},
		{"alert_handlers", "Alert handlers", "local/share/check_mk/alert_handlers"},
	}

	defaultConfigParts = []defaultPart{
		{"ec_rule_packs", "Event Console rule packs", "etc/check_mk/mkeventd.d/mkp/rule_packs"},
	}
)

// Default returns the standard part table rooted at siteRoot. A relative
// siteRoot is resolved against the working directory.
func Default(siteRoot string) (*Registry, error) {
	abs, err := filepath.Abs(siteRoot)
	if err != nil {
		return nil, err
	}
	return New(expand(abs, defaultPackageParts), expand(abs, defaultConfigParts))
}

// DefaultVarDir returns the absolute var dir for siteRoot.
func DefaultVarDir(siteRoot string) string {
	return filepath.Join(siteRoot, filepath.FromSlash(VarDir))
}

// DefaultTable returns the default parts with roots relative to the site
// root, as used in the generated config file.
func DefaultTable() (pkgParts, cfgParts []Part) {
	return expand("", defaultPackageParts), expand("", defaultConfigParts)
}

func expand(siteRoot string, table []defaultPart) []Part {
	out := make([]Part, len(table))
	for i, d := range table {
		p := filepath.FromSlash(d.rel)
		if siteRoot != "" {
			p = filepath.Join(siteRoot, p)
		}
		out[i] = Part{
			Ident:   d.ident,
			Title:   d.title,
			Path:    p,
			Exclude: append([]string(nil), DefaultExcludes...),
		}
	}
	return out
}
