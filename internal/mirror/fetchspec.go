package mirror

import (
	"fmt"
	"sort"
	"strings"
)

// BuiltinFetchLine is always present in a configured mirror's
// remote.origin.fetch after configure() runs; user-supplied specs are
// additive to it, never a replacement for it.
const BuiltinFetchLine = "+refs/heads/*:refs/heads/*"

// FetchSpec is a pair (fetch-line, match-regex): the fetch-line has the
// shape "+<src>:<dst>", and the match-regex selects the existing
// configuration entries a "git config --replace-all" of this line is
// intended to replace.
type FetchSpec struct {
	Line  string
	Regex string
}

// ParseFetchSpec parses and canonicalizes a raw --ref argument (or a line
// read back from remote.origin.fetch) into its FetchSpec form.
//
// <src> defaults to refs/heads/<name> when the caller supplied a short
// name rather than a full ref; <dst> defaults to <src>.
func ParseFetchSpec(spec string) FetchSpec {
	parts := strings.SplitN(spec, ":", 2)

	src := strings.TrimRight(strings.TrimLeft(parts[0], "+"), "/")
	if !strings.HasPrefix(src, "refs/") {
		src = "refs/heads/" + src
	}

	dst := src
	if len(parts) > 1 {
		dst = strings.TrimRight(parts[1], "/")
	}

	escapedSrc := strings.ReplaceAll(src, "*", `\*`)

	return FetchSpec{
		Line:  fmt.Sprintf("+%s:%s", src, dst),
		Regex: fmt.Sprintf(`\+%s:.*`, escapedSrc),
	}
}

// fetchSpecSet is a set of FetchSpecs keyed by their canonical Line, so that
// adding the same ref twice (from --ref flags or from preserved config) is
// naturally deduplicated.
type fetchSpecSet map[string]FetchSpec

func newFetchSpecSet(refs []string) fetchSpecSet {
	set := make(fetchSpecSet, len(refs))
	for _, ref := range refs {
		spec := ParseFetchSpec(ref)
		set[spec.Line] = spec
	}

	return set
}

func (s fetchSpecSet) add(raw string) {
	spec := ParseFetchSpec(raw)
	s[spec.Line] = spec
}

// sorted returns the set's specs in a deterministic order, for
// reproducible configuration writes and tests.
func (s fetchSpecSet) sorted() []FetchSpec {
	specs := make([]FetchSpec, 0, len(s))
	for _, spec := range s {
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Line < specs[j].Line })

	return specs
}
