// Package semver provides npm-style version and range operations on top
// of Masterminds semver. Versions are compared structurally but always
// round-tripped as the exact strings the registry published.
package semver

import (
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Valid reports whether v is a concrete published version such as
// "1.2.3" or "2.0.0-beta.1". Ranges and wildcards are not valid.
func Valid(v string) bool {
	_, err := mmsemver.StrictNewVersion(strings.TrimSpace(v))
	return err == nil
}

// ValidRange reports whether r parses as a version range. The empty
// string is the npm shorthand for "*".
func ValidRange(r string) bool {
	_, err := parseRange(r)
	return err == nil
}

// Satisfies reports whether the concrete version satisfies the range.
// Prerelease versions only match when the range itself names a
// prerelease tag, matching npm behaviour.
func Satisfies(version, rng string) bool {
	v, err := mmsemver.StrictNewVersion(strings.TrimSpace(version))
	if err != nil {
		return false
	}
	c, err := parseRange(rng)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// MaxSatisfying returns the greatest version from the list that
// satisfies the range. The returned string is the list entry itself, so
// registry-published versions round-trip exactly.
func MaxSatisfying(versions []string, rng string) (string, bool) {
	c, err := parseRange(rng)
	if err != nil {
		return "", false
	}
	var (
		best    *mmsemver.Version
		bestRaw string
	)
	for _, raw := range versions {
		v, err := mmsemver.StrictNewVersion(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = raw
		}
	}
	if best == nil {
		return "", false
	}
	return bestRaw, true
}

func parseRange(r string) (*mmsemver.Constraints, error) {
	r = strings.TrimSpace(r)
	if r == "" {
		r = "*"
	}
	return mmsemver.NewConstraint(r)
}
