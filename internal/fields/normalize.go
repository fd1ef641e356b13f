package fields

import (
	"regexp"
	"strings"
)

var (
	idSeparators   = regexp.MustCompile(`[\s-]`)
	dateSeparators = regexp.MustCompile(`[/\-.]`)
)

// normalizeIDNumber strips separators and regroups the 12 digits as NNNN NNNN NNNN.
func normalizeIDNumber(raw string) string {
	digits := idSeparators.ReplaceAllString(raw, "")
	if len(digits) != 12 {
		return ""
	}
	return digits[0:4] + " " + digits[4:8] + " " + digits[8:12]
}

// normalizeDate converts a D/M/Y or Y/M/D token to YYYY-MM-DD.
// A first group of four digits means year-first; anything else is read day-first.
// MM/DD/YYYY input is therefore misread when the day is <= 12.
func normalizeDate(raw string) string {
	parts := dateSeparators.Split(raw, -1)
	if len(parts) != 3 {
		return ""
	}
	var y, m, d string
	if len(parts[0]) == 4 {
		y, m, d = parts[0], parts[1], parts[2]
	} else {
		d, m, y = parts[0], parts[1], parts[2]
	}
	return y + "-" + pad2(m) + "-" + pad2(d)
}

func pad2(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

// normalizeGender maps M/Male and F/Female in any case to the canonical token.
func normalizeGender(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "m"):
		return "Male"
	case strings.HasPrefix(s, "f"):
		return "Female"
	}
	return ""
}

// normalizeAddress joins captured lines with ", ".
// Lines are trimmed along with trailing commas and empty lines are dropped.
func normalizeAddress(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(l), ","))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, ", ")
}
