package scm

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	illegalRefChars = regexp.MustCompile(`[\s~^:?*\[\\\x00-\x1f\x7f]+`)
	repeatedSlashes = regexp.MustCompile(`/{2,}`)
)

// BranchName derives a deterministic branch name for an issue key. Characters
// git does not allow in ref names are replaced with '-'. When that changes the
// key, a short hash of the raw key is appended so keys differing only in
// replaced characters still get distinct branches.
func BranchName(prefix, issueKey string) string {
	name := illegalRefChars.ReplaceAllString(issueKey, "-")
	name = strings.ReplaceAll(name, "..", "-")
	name = strings.ReplaceAll(name, "@{", "-")
	name = repeatedSlashes.ReplaceAllString(name, "/")
	name = strings.Trim(name, "/.-")
	name = strings.TrimSuffix(name, ".lock")
	if name == "" {
		name = "issue"
	}
	if name != issueKey {
		sum := sha256.Sum256([]byte(issueKey))
		name += "-" + hex.EncodeToString(sum[:4])
	}
	return prefix + name
}
