package yamlpatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"single segment", "a", []string{"a"}},
		{"dotted", "a.b.c", []string{"a", "b", "c"}},
		{"escaped dot", `a\.b.c`, []string{"a.b", "c"}},
		{"escaped dot at start", `\.hidden.x`, []string{".hidden", "x"}},
		{"escaped backslash before separator", `a\\.b`, []string{`a\`, "b"}},
		{"escaped backslash then escaped dot", `a\\\.b`, []string{`a\.b`}},
		{"other escapes are kept", `a\nb`, []string{`a\nb`}},
		{"trailing backslash is kept", `a\`, []string{`a\`}},
		{"indexed segments", "items[0].name", []string{"items[0]", "name"}},
		{"empty path", "", []string{""}},
		{"empty segments", "a..b", []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitPath(tt.path))
		})
	}
}

func TestJoinPathRoundTrip(t *testing.T) {
	segments := []string{"app.kubernetes.io/name", `C:\temp`, "plain"}

	joined := JoinPath(segments...)
	assert.Equal(t, `app\.kubernetes\.io/name.C:\\temp.plain`, joined)
	assert.Equal(t, segments, SplitPath(joined))
}

func TestEscapeSegment(t *testing.T) {
	assert.Equal(t, "plain", EscapeSegment("plain"))
	assert.Equal(t, `a\.b`, EscapeSegment("a.b"))
	assert.Equal(t, `a\\b`, EscapeSegment(`a\b`))
}

func TestParseIndexed(t *testing.T) {
	tests := []struct {
		segment   string
		wantName  string
		wantIndex int
		wantOK    bool
	}{
		{"a[3]", "a", 3, true},
		{"ports[0]", "ports", 0, true},
		{"a[1][2]", "a[1]", 2, true},
		{"a", "", 0, false},
		{"[3]", "", 0, false},
		{"a[x]", "", 0, false},
		{"a[-1]", "", 0, false},
		{"a[1]b", "", 0, false},
		{"a[99999999999999999999999]", "a", math.MaxInt, true},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			name, index, ok := parseIndexed(tt.segment)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantIndex, index)
		})
	}
}
