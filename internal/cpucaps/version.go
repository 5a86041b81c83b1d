package cpucaps

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a backend interface version. Backends report it packed as
// (major<<16)|minor.
type Version struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
}

var requiredVersion = Version{Major: 2, Minor: 0}

// RequiredVersion returns the backend interface version this package was
// built against. Minor 0 carries the 32-bit capability catalog; backends at
// 2.1 and later append bits above position 31.
func RequiredVersion() Version {
	return requiredVersion
}

// UnpackVersion splits a packed backend version.
func UnpackVersion(packed uint32) Version {
	return Version{Major: uint16(packed >> 16), Minor: uint16(packed & 0xFFFF)}
}

// Pack is the inverse of UnpackVersion.
func (v Version) Pack() uint32 {
	return uint32(v.Major)<<16 | uint32(v.Minor)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses "major.minor". A bare major means minor 0.
func ParseVersion(s string) (Version, error) {
	majorStr, minorStr, hasMinor := strings.Cut(strings.TrimSpace(s), ".")
	major, err := strconv.ParseUint(majorStr, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("parse version %q: major: %w", s, err)
	}
	var minor uint64
	if hasMinor {
		minor, err = strconv.ParseUint(minorStr, 10, 16)
		if err != nil {
			return Version{}, fmt.Errorf("parse version %q: minor: %w", s, err)
		}
	}
	return Version{Major: uint16(major), Minor: uint16(minor)}, nil
}

// Compatible reports whether a backend at actual can serve a caller built
// for required: the majors must match and the backend minor must not be
// older.
func Compatible(required, actual Version) bool {
	return actual.Major == required.Major && actual.Minor >= required.Minor
}
