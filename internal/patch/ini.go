package patch

import (
	"fmt"
	"strings"
)

// SetOption returns a copy of an ini document with key set to value in section.
// Comments, ordering, other keys and "%(...)s" interpolation syntax are kept
// byte for byte. An existing key (matched case-insensitively, with "=" or ":"
// as delimiter) is replaced together with any continuation lines; a missing
// key is inserted directly below the section header.
func SetOption(data []byte, section, key, value string) ([]byte, error) {
	lines := strings.Split(string(data), "\n")
	out := make([]string, 0, len(lines)+1)
	entry := key + " = " + value

	var (
		inSection   bool
		sectionSeen bool
		done        bool
		skipping    bool
	)

	for _, line := range lines {
		if skipping {
			if isContinuation(line) {
				continue
			}

			skipping = false
		}

		if name, ok := sectionName(line); ok {
			if inSection && !done {
				out = insertAfterHeader(out, entry)
				done = true
			}

			inSection = strings.EqualFold(name, section)
			sectionSeen = sectionSeen || inSection
			out = append(out, line)

			continue
		}

		if inSection && !done {
			if k, ok := optionName(line); ok && strings.EqualFold(k, key) {
				out = append(out, entry)
				done = true
				skipping = true

				continue
			}
		}

		out = append(out, line)
	}

	if !sectionSeen {
		return nil, fmt.Errorf("%w: [%s]", ErrSectionNotFound, section)
	}

	if !done {
		out = insertAfterHeader(out, entry)
	}

	return []byte(strings.Join(out, "\n")), nil
}

// Option returns the single-line value of key in section.
func Option(data []byte, section, key string) (string, bool) {
	inSection := false

	for _, line := range strings.Split(string(data), "\n") {
		if name, ok := sectionName(line); ok {
			inSection = strings.EqualFold(name, section)

			continue
		}

		if !inSection {
			continue
		}

		if k, ok := optionName(line); ok && strings.EqualFold(k, key) {
			_, v, _ := strings.Cut(line, delimiterOf(line))

			return strings.TrimSpace(v), true
		}
	}

	return "", false
}

// insertAfterHeader places entry right after the most recent section header in out.
func insertAfterHeader(out []string, entry string) []string {
	for i := len(out) - 1; i >= 0; i-- {
		if _, ok := sectionName(out[i]); ok {
			out = append(out, "")
			copy(out[i+2:], out[i+1:])
			out[i+1] = entry

			return out
		}
	}

	return append(out, entry)
}

func sectionName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return "", false
	}

	return strings.TrimSpace(trimmed[1 : len(trimmed)-1]), true
}

func optionName(line string) (string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return "", false
	}

	if line[0] == '#' || line[0] == ';' {
		return "", false
	}

	d := delimiterOf(line)
	if d == "" {
		return "", false
	}

	k, _, _ := strings.Cut(line, d)

	return strings.TrimSpace(k), true
}

// delimiterOf returns whichever of "=" and ":" appears first in line.
func delimiterOf(line string) string {
	eq := strings.Index(line, "=")
	colon := strings.Index(line, ":")

	switch {
	case eq < 0 && colon < 0:
		return ""
	case eq < 0:
		return ":"
	case colon < 0 || eq < colon:
		return "="
	default:
		return ":"
	}
}

func isContinuation(line string) bool {
	return strings.TrimSpace(line) != "" && (line[0] == ' ' || line[0] == '\t')
}

// EscapePercent doubles every "%" that the config parser would otherwise treat
// as the start of an interpolation, such as the "%40" in a URL-encoded password.
// "%(name)s" references and already doubled "%%" are kept.
func EscapePercent(value string) string {
	var b strings.Builder
	b.Grow(len(value))

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '%' {
			b.WriteByte(c)

			continue
		}

		if i+1 < len(value) && (value[i+1] == '%' || value[i+1] == '(') {
			b.WriteByte(c)
			b.WriteByte(value[i+1])
			i++

			continue
		}

		b.WriteString("%%")
	}

	return b.String()
}

// UnescapePercent reverses EscapePercent for a value read from a config file.
func UnescapePercent(value string) string {
	return strings.ReplaceAll(value, "%%", "%")
}
