package yamlpatch

import (
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// LineOp marks a line of a Diff.
type LineOp int

const (
	LineEqual LineOp = iota
	LineInsert
	LineDelete
)

// DiffLine is one line of a line-based diff.
type DiffLine struct {
	Op   LineOp
	Text string
}

// Diff compares the file as loaded with the document as it would be
// written now.
func (p *Patcher) Diff() ([]DiffLine, error) {
	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	return DiffLines(string(p.original), string(data)), nil
}

// Changed reports whether Close would write content different from what
// was loaded.
func (p *Patcher) Changed() (bool, error) {
	data, err := p.Bytes()
	if err != nil {
		return false, err
	}
	return string(data) != string(p.original), nil
}

// DiffLines computes a line diff between from and to.
func DiffLines(from, to string) []DiffLine {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		op := LineEqual
		switch d.Type {
		case diffpatch.DiffInsert:
			op = LineInsert
		case diffpatch.DiffDelete:
			op = LineDelete
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}
