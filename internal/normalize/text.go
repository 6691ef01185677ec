package normalize

import (
	"strings"
	"unicode"
)

// Key canonicalizes free text used as a lookup key: lower case, punctuation
// replaced by spaces, whitespace collapsed. "Selly-Oak " and "selly oak" share a key.
func Key(raw string) string {
	if raw == "" {
		return ""
	}

	b := strings.Builder{}
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Contains reports whether needle occurs in haystack ignoring case.
// An empty needle never matches.
func Contains(haystack, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" || haystack == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// EqualFold compares two values after trimming surrounding whitespace.
func EqualFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Intersects reports whether the two sets share at least one value, ignoring case.
func Intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		if k := Key(v); k != "" {
			seen[k] = struct{}{}
		}
	}
	for _, v := range b {
		if _, ok := seen[Key(v)]; ok {
			return true
		}
	}
	return false
}

// Furnished reads the loosely typed furnished flag found on listings.
// known is false when the value carries no usable information.
func Furnished(raw string) (value bool, known bool) {
	switch Key(raw) {
	case "true", "yes", "y", "1", "furnished", "fully furnished":
		return true, true
	case "false", "no", "n", "0", "unfurnished", "not furnished":
		return false, true
	}
	return false, false
}
