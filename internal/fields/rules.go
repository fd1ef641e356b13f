package fields

import (
	"regexp"
	"strings"
)

// Rule is one strategy for populating a field. Apply returns the raw
// capture and its canonical value; an empty value means no match.
type Rule struct {
	Name  string
	Apply func(text string) (raw, value string)
}

// FieldRules is the ordered rule list for one field. The first rule
// producing a non-empty value wins and later rules are not evaluated.
type FieldRules struct {
	Field Field
	Rules []Rule
}

// Labels are matched case-insensitively; value shapes that rely on
// capitalization stay case-sensitive.
var (
	idNumberRe = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)

	dobLabeledRe = regexp.MustCompile(
		`(?i:DOB|Date of Birth|Birth Date)[\s:]*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4}|\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2})`)

	genderLabeledRe = regexp.MustCompile(`(?i:Gender|Sex)[\s:]*(?i:(female|male|f|m))`)

	nameLabeledRe = regexp.MustCompile(`(?i:Full Name|Name)[\s:]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`)
	nameLineRe    = regexp.MustCompile(`^[A-Z][a-z]+(?: [A-Z][a-z]+)+$`)

	addressLabelRe = regexp.MustCompile(`(?i:Address|Add)[\s:]+`)
	// a continuation line that opens with another label ends the address
	addressStopRe = regexp.MustCompile(
		`^(?i:full name|name|dob|date of birth|birth date|gender|sex|aadhaar|aadhar|passport|visa|document|phone|mobile|email|address)\b`)

	documentNumberRe = regexp.MustCompile(
		`(?i:Passport|Visa|Document)(?:[\s#:]*(?i:number|no)[.\s#:])?[\s#:]*([A-Z0-9]+)\b`)
)

// DefaultRules returns the built-in rule set in schema order.
func DefaultRules() []FieldRules {
	return []FieldRules{
		{Field: FullName, Rules: []Rule{
			patternRule("name.labeled", nameLabeledRe, strings.TrimSpace),
			{Name: "name.capitalized_line", Apply: capitalizedLine},
		}},
		{Field: DateOfBirth, Rules: []Rule{
			patternRule("dob.labeled", dobLabeledRe, normalizeDate),
		}},
		{Field: IDNumber, Rules: []Rule{
			{Name: "id.twelve_digits", Apply: func(text string) (string, string) {
				raw := idNumberRe.FindString(text)
				return raw, normalizeIDNumber(raw)
			}},
		}},
		{Field: Gender, Rules: []Rule{
			patternRule("gender.labeled", genderLabeledRe, normalizeGender),
		}},
		{Field: Address, Rules: []Rule{
			{Name: "address.labeled", Apply: labeledAddress},
		}},
		{Field: DocumentNumber, Rules: []Rule{
			patternRule("document.labeled", documentNumberRe, func(s string) string { return s }),
		}},
	}
}

// patternRule captures group 1 of the first match of re and normalizes it.
func patternRule(name string, re *regexp.Regexp, norm func(string) string) Rule {
	return Rule{Name: name, Apply: func(text string) (string, string) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", ""
		}
		return m[1], norm(m[1])
	}}
}

// capitalizedLine returns the first line made only of two or more
// capitalized words separated by single spaces.
func capitalizedLine(text string) (string, string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if nameLineRe.MatchString(line) {
			return line, line
		}
	}
	return "", ""
}

// labeledAddress takes the lines after an address label up to the first
// blank line or the first line opening with another label. Each label hit
// only reads its own block.
func labeledAddress(text string) (string, string) {
	for _, loc := range addressLabelRe.FindAllStringIndex(text, -1) {
		var lines []string
		end := loc[1]
		for rest := text[loc[1]:]; ; {
			line, next, more := strings.Cut(rest, "\n")
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || addressStopRe.MatchString(trimmed) {
				break
			}
			lines = append(lines, line)
			end = len(text) - len(rest) + len(line)
			if !more {
				break
			}
			rest = next
		}
		if v := normalizeAddress(lines); v != "" {
			return text[loc[1]:end], v
		}
	}
	return "", ""
}
