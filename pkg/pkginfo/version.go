// SPDX-License-Identifier: MPL-2.0

package pkginfo

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
)

// Stage orders the release kinds of one base version.
type Stage int

const (
	// StageInnovation is an innovation release, e.g. 1.6.0i1.
	StageInnovation Stage = iota
	// StageBeta is a beta release, e.g. 1.6.0b3.
	StageBeta
	// StageRelease is the plain release, e.g. 1.6.0.
	StageRelease
	// StagePatch is a patch release, e.g. 1.6.0p8.
	StagePatch
)

var (
	// releaseRegex matches "1.6", "1.6.0", "1.6.0p8", "1.6.0b3.cee" and
	// branch dailies such as "1.6.0-2019.11.20".
	releaseRegex = regexp.MustCompile(
		`^v?(\d+)\.(\d+)(?:\.(\d+))?(?:([ibp])(\d+))?(?:-(\d{4})\.(\d{2})\.(\d{2}))?(?:\.(?:cre|cee|cme|cce|cse|cfe|demo))?$`)

	// dailyRegex matches master daily builds such as "2019.11.20".
	dailyRegex = regexp.MustCompile(`^(\d{4})\.(\d{2})\.(\d{2})(?:\.(?:cre|cee|cme|cce|cse|cfe|demo))?$`)
)

// Version is a parsed host version.
type Version struct {
	Major    int
	Minor    int
	Patch    int
	Stage    Stage
	StageNum int

	// Daily is the build date as YYYYMMDD for daily builds, 0 otherwise.
	Daily int
	// Master is set for master daily builds, which carry no base version.
	Master bool

	Original string
}

// ParseVersion parses a host version string.
func ParseVersion(s string) (*Version, error) {
	if m := dailyRegex.FindStringSubmatch(s); m != nil {
		return &Version{Master: true, Daily: atoi(m[1])*10000 + atoi(m[2])*100 + atoi(m[3]), Original: s}, nil
	}

	m := releaseRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid version format: %q", s)
	}

	v := &Version{
		Major:    atoi(m[1]),
		Minor:    atoi(m[2]),
		Patch:    atoi(m[3]),
		Stage:    StageRelease,
		Original: s,
	}

	switch m[4] {
	case "i":
		v.Stage = StageInnovation
	case "b":
		v.Stage = StageBeta
	case "p":
		v.Stage = StagePatch
	}
	if m[5] != "" {
		v.StageNum = atoi(m[5])
	}
	if m[6] != "" {
		v.Daily = atoi(m[6])*10000 + atoi(m[7])*100 + atoi(m[8])
	}

	return v, nil
}

// String returns the version as given.
func (v *Version) String() string {
	return v.Original
}

// Compare returns -1, 0 or 1. Master dailies sort after every release and
// among themselves by date. A branch daily sorts after the plain releases of
// its base version.
func (v *Version) Compare(other *Version) int {
	if v.Master || other.Master {
		switch {
		case v.Master && other.Master:
			return cmp.Compare(v.Daily, other.Daily)
		case v.Master:
			return 1
		default:
			return -1
		}
	}

	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Patch, other.Patch); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Stage, other.Stage); c != 0 {
		return c
	}
	if c := cmp.Compare(v.StageNum, other.StageNum); c != 0 {
		return c
	}
	return cmp.Compare(v.Daily, other.Daily)
}

// CompareVersions parses and compares two version strings.
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// atoi is only called on regex-matched digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
