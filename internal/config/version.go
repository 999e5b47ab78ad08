package config

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the resolved X.Y.Z version of the bundled application
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// ParseVersion accepts X.Y.Z or vX.Y.Z. Pre-release and build suffixes are rejected.
func ParseVersion(s string) (Version, error) {
	v := strings.TrimSpace(s)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}

	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return Version{}, fmt.Errorf("could not parse version %q", s)
	}

	parts := strings.Split(strings.TrimPrefix(semver.Canonical(v), "v"), ".")
	nums := make([]uint64, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("could not parse version %q: %w", s, err)
		}

		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// BumpPatch returns the next patch release
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// Compare returns -1, 0 or +1
func (v Version) Compare(other Version) int {
	return semver.Compare("v"+v.String(), "v"+other.String())
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}

	*v = parsed
	return nil
}
