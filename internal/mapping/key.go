package mapping

import "strings"

// KeyDelimiter joins composite key segments. It is fixed so keys remain
// stable across runs and across the reference/relationship resolution paths.
const KeyDelimiter = ":"

// BuildKey concatenates the trimmed, case-preserved string form of each key
// field value in declared order. It reports ok=false when every segment is
// empty: such keys are unresolvable and the caller must skip the record
// rather than create a meaningless empty instance. Partial emptiness still
// produces a key, with empty segments kept in place, because sparse keys are
// common in real data.
func BuildKey(values []string) (string, bool) {
	segments := make([]string, len(values))
	empty := true
	for i, v := range values {
		v = strings.TrimSpace(v)
		segments[i] = v
		if v != "" {
			empty = false
		}
	}
	if empty {
		return "", false
	}
	return strings.Join(segments, KeyDelimiter), true
}
