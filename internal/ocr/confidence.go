package ocr

import (
	"regexp"
	"strings"
)

var (
	reTwelveDigits = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	reDOBLabel     = regexp.MustCompile(`\b(dob|date of birth|birth date|yob)\b`)
	reGenderLabel  = regexp.MustCompile(`\b(gender|sex)\b|\b(male|female)\b`)
	reNameLabel    = regexp.MustCompile(`\bname\b`)
	reDocLabel     = regexp.MustCompile(`\b(passport|visa|aadhaa?r|government of india|republic)\b`)
)

// HeuristicConfidence scores recognized text by how much it looks like an
// identity document. Each cue adds to a small base score.
func HeuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reTwelveDigits.MatchString(txtL) {
		score += 0.2
	}
	if reDOBLabel.MatchString(txtL) {
		score += 0.15
	}
	if reGenderLabel.MatchString(txtL) {
		score += 0.1
	}
	if reNameLabel.MatchString(txtL) {
		score += 0.1
	}
	if reDocLabel.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 80 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
