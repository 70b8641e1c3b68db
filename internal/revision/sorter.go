package revision

import (
	"fmt"
	"slices"
)

// Heads returns the revisions no other step names as a parent, sorted.
func Heads(steps []Step) []string {
	parents := make(map[string]bool)

	for _, s := range steps {
		for _, d := range s.DownRevisions {
			parents[d] = true
		}
	}

	heads := []string{}

	for _, s := range steps {
		if !parents[s.Revision] {
			heads = append(heads, s.Revision)
		}
	}

	slices.Sort(heads)

	return heads
}

// Order returns a new slice of steps in application order: every step comes
// after all of its parents that are present. Ties break by revision identifier.
// Parents outside the set are treated as already applied.
func Order(steps []Step) ([]Step, error) {
	byRev := make(map[string]Step, len(steps))
	for _, s := range steps {
		byRev[s.Revision] = s
	}

	pending := make(map[string]int, len(steps))
	children := make(map[string][]string)

	for _, s := range steps {
		for _, d := range s.DownRevisions {
			if _, known := byRev[d]; known {
				pending[s.Revision]++
				children[d] = append(children[d], s.Revision)
			}
		}
	}

	var ready []string

	for _, s := range steps {
		if pending[s.Revision] == 0 {
			ready = append(ready, s.Revision)
		}
	}

	ordered := make([]Step, 0, len(steps))

	for len(ready) > 0 {
		slices.Sort(ready)
		next := ready[0]
		ready = ready[1:]

		ordered = append(ordered, byRev[next])

		for _, c := range children[next] {
			pending[c]--
			if pending[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(ordered) != len(steps) {
		return nil, fmt.Errorf("%w: %d of %d steps unreachable from a base", ErrCycle, len(steps)-len(ordered), len(steps))
	}

	return ordered, nil
}
