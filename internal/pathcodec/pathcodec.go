// Package pathcodec provides the bidirectional, lossless mapping between a
// remote repository URL and the filesystem-safe basename of its local mirror
// directory.
package pathcodec

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// wordBoundaryDash matches a single '-' flanked by word boundaries on both
// sides: exactly the runs that Encode introduces to stand in for a '/' in
// the original URL, as opposed to a doubled "--" standing in for a literal
// '-'.
var wordBoundaryDash = regexp.MustCompile(`\b-\b`)

// Encode converts a remote URL into the basename of its mirror directory.
//
// The mapping is: host+path, trailing ".git" dropped, every literal '-'
// doubled (so it survives the next step unambiguously), every '/' turned
// into a single '-', lowercased.
func Encode(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %q (%w)", rawURL, err)
	}

	netpath := u.Host + u.Path
	netpath = strings.TrimSuffix(netpath, ".git")

	netpath = strings.ReplaceAll(netpath, "-", "--")
	netpath = strings.ReplaceAll(netpath, "/", "-")

	return strings.ToLower(netpath), nil
}

// Decode converts a mirror directory basename back into its https:// URL.
//
// This is the inverse of Encode for any basename that does not itself
// contain an ambiguous run of three or more consecutive '-' characters.
func Decode(basename string) string {
	netpath := wordBoundaryDash.ReplaceAllString(basename, "/")
	netpath = strings.ReplaceAll(netpath, "--", "-")

	return "https://" + netpath
}
