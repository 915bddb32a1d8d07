package yamlpatch

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// indexedSegment matches "name[N]". The name is greedy so "a[1][2]"
// addresses index 2 of the property named "a[1]".
var indexedSegment = regexp.MustCompile(`^(.+)\[(\d+)\]$`)

// SplitPath splits a property path on unescaped dots and unescapes each
// segment: `\.` becomes a literal dot and `\\` a literal backslash. A
// backslash before any other character is kept as is.
func SplitPath(path string) []string {
	var (
		segments []string
		current  strings.Builder
	)

	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '\\' && i+1 < len(path) && (path[i+1] == '.' || path[i+1] == '\\'):
			current.WriteByte(path[i+1])
			i++
		case c == '.':
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	return append(segments, current.String())
}

// EscapeSegment escapes a literal property name so SplitPath returns it as a
// single segment.
func EscapeSegment(segment string) string {
	if !strings.ContainsAny(segment, `.\`) {
		return segment
	}

	var b strings.Builder
	b.Grow(len(segment) * 2)
	for i := 0; i < len(segment); i++ {
		if segment[i] == '.' || segment[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(segment[i])
	}
	return b.String()
}

// JoinPath escapes each literal segment and joins them with dots.
func JoinPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = EscapeSegment(s)
	}
	return strings.Join(escaped, ".")
}

// parseIndexed reports whether segment has the form name[N].
func parseIndexed(segment string) (name string, index int, ok bool) {
	m := indexedSegment.FindStringSubmatch(segment)
	if m == nil {
		return "", 0, false
	}

	index, err := strconv.Atoi(m[2])
	if err != nil {
		// Too many digits for an int: no sequence can be that long.
		index = math.MaxInt
	}
	return m[1], index, true
}
