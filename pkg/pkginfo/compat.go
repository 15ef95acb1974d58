// SPDX-License-Identifier: MPL-2.0

package pkginfo

import "fmt"

// CompatStatus is the verdict of CheckCompatibility.
type CompatStatus string

// Compatibility verdicts.
const (
	CompatCompatible CompatStatus = "compatible"
	CompatTooOld     CompatStatus = "too_old"
	CompatTooNew     CompatStatus = "too_new"
	CompatUnknown    CompatStatus = "unknown"
)

// Compatibility describes how a record's version range relates to a host.
type Compatibility struct {
	Status      CompatStatus
	Host        string
	MinRequired string
	UsableUntil string
	// Reason is empty for compatible records.
	Reason string
}

// OK reports whether the host lies inside the record's range.
func (c Compatibility) OK() bool {
	return c.Status == CompatCompatible
}

// CheckCompatibility compares host against the record's min_required and
// usable_until. An empty bound is open. Unparseable versions yield
// CompatUnknown.
func CheckCompatibility(i *Info, host string) Compatibility {
	c := Compatibility{
		Status:      CompatCompatible,
		Host:        host,
		MinRequired: i.VersionMinRequired,
		UsableUntil: i.VersionUsableUntil,
	}

	hostVersion, err := ParseVersion(host)
	if err != nil {
		c.Status = CompatUnknown
		c.Reason = fmt.Sprintf("host version: %v", err)
		return c
	}

	if i.VersionMinRequired != "" {
		minVersion, err := ParseVersion(i.VersionMinRequired)
		if err != nil {
			c.Status = CompatUnknown
			c.Reason = fmt.Sprintf("version.min_required: %v", err)
			return c
		}
		if hostVersion.Compare(minVersion) < 0 {
			c.Status = CompatTooOld
			c.Reason = fmt.Sprintf("package requires at least version %s, host is %s", i.VersionMinRequired, host)
			return c
		}
	}

	if i.VersionUsableUntil != "" {
		until, err := ParseVersion(i.VersionUsableUntil)
		if err != nil {
			c.Status = CompatUnknown
			c.Reason = fmt.Sprintf("version.usable_until: %v", err)
			return c
		}
		if hostVersion.Compare(until) > 0 {
			c.Status = CompatTooNew
			c.Reason = fmt.Sprintf("package is usable until version %s, host is %s", i.VersionUsableUntil, host)
			return c
		}
	}

	return c
}
