package revision

import (
	"regexp"
	"strings"
)

// Step is one generated Alembic migration script.
type Step struct {
	Revision      string   // "1a2b3c4d5e6f", from the revision assignment
	DownRevisions []string // parents; empty for a base revision
	Message       string   // first line of the module docstring
	FilePath      string
}

// IsBase reports whether the step starts a history (down_revision = None).
func (s Step) IsBase() bool {
	return len(s.DownRevisions) == 0
}

var (
	revisionPattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once
		`(?m)^revision(?:[ \t]*:[^=\n]*)?[ \t]*=[ \t]*['"]([^'"]+)['"]`,
	)
	downRevisionPattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once
		`(?m)^down_revision(?:[ \t]*:[^=\n]*)?[ \t]*=[ \t]*(.+)$`,
	)
	quotedPattern = regexp.MustCompile(`['"]([^'"]+)['"]`) //nolint:gochecknoglobals // compiled once
)

// parseStep extracts revision metadata from a script's source.
// ok is false when the source has no revision assignment.
func parseStep(src string) (Step, bool) {
	m := revisionPattern.FindStringSubmatch(src)
	if m == nil {
		return Step{}, false
	}

	s := Step{Revision: m[1], Message: docstringSummary(src)}

	if dm := downRevisionPattern.FindStringSubmatch(src); dm != nil {
		for _, q := range quotedPattern.FindAllStringSubmatch(dm[1], -1) {
			s.DownRevisions = append(s.DownRevisions, q[1])
		}
	}

	return s, true
}

// docstringSummary returns the text on the line opening the first triple-quoted string.
func docstringSummary(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, q := range []string{`"""`, `'''`} {
			if rest, ok := strings.CutPrefix(trimmed, q); ok {
				rest, _, _ = strings.Cut(rest, q)

				return strings.TrimSpace(rest)
			}
		}
	}

	return ""
}
