package utils

import (
	"fmt"
	"regexp"
)

// EnumValidator accepts only the listed values.
func EnumValidator(allowed ...string) func(string) error {
	set := map[string]struct{}{}
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(s string) error {
		if _, ok := set[s]; ok {
			return nil
		}
		return fmt.Errorf("value %q is not one of %q", s, allowed)
	}
}

// OptionalPattern accepts "" (field not found) or a full match of pattern.
func OptionalPattern(pattern string) func(string) error {
	re := regexp.MustCompile(`^(?:` + pattern + `)$`)
	return func(s string) error {
		if s == "" || re.MatchString(s) {
			return nil
		}
		return fmt.Errorf("value %q does not match %s", s, pattern)
	}
}
