// Package version holds the compiled-in server version and helpers for
// comparing version strings of exported runs.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

// ServerVersion is the current release version of the debugger core. Exported
// runs carry it and are only importable by a core with an equal version.
const ServerVersion = "v1.0.0-beta.pre-2"

var versionPattern = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)(?:-(beta|alpha)(?:\.pre-(\d+))?)?$`)

// Parsed is a decomposed version string.
type Parsed struct {
	Major, Minor, Patch int
	Label               string
	Pre                 int
}

// Parse splits a version string of the form v1.2.3[-beta[.pre-4]] into its
// components.
func Parse(v string) (Parsed, error) {
	m := versionPattern.FindStringSubmatch(v)
	if m == nil {
		return Parsed{}, fmt.Errorf("invalid version format: %q", v)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	pre := 0
	if m[5] != "" {
		pre, _ = strconv.Atoi(m[5])
	}
	return Parsed{Major: major, Minor: minor, Patch: patch, Label: m[4], Pre: pre}, nil
}

// Equal reports whether two version strings denote the same release. Strings
// that fail to parse only compare equal to themselves verbatim.
func Equal(a, b string) bool {
	pa, errA := Parse(a)
	pb, errB := Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return pa == pb
}
