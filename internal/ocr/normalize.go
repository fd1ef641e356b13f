package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-=|~]{3,}\s*$`)

	// letters, marks, digits, whitespace and : / - . , # ' & ( ) survive Clean
	reUnsafePunct = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s:/\-.,#'&()]`)
	reHSpace      = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	reBlankRun    = regexp.MustCompile(`\n{2,}`)
)

// Normalize collapses noisy whitespace.
// Conservative: keeps line breaks; collapses >2 newlines into a single blank line.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Clean is the aggressive pass run before field extraction: line endings are
// normalized, punctuation outside the safe set is dropped, horizontal
// whitespace collapses to one space, lines are trimmed and runs of blank
// lines collapse to one.
func Clean(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reUnsafePunct.ReplaceAllString(s, "")
	s = reHSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reBlankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
