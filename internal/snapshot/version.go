package snapshot

import "regexp"

// versionPattern matches the first major.minor, optionally followed by
// .patch, in a describe string.
var versionPattern = regexp.MustCompile(`(\d+\.\d+)(?:\.\d+)?`)

// ParseVersion extracts "major.minor" from a tag descriptor such as
// "release-2.3.1-4-gabc1234". It reports false when the descriptor holds no
// version number.
func ParseVersion(descriptor string) (string, bool) {
	m := versionPattern.FindStringSubmatch(descriptor)
	if m == nil {
		return "", false
	}
	return m[1], true
}
