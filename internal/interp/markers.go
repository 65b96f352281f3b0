package interp

import (
	"strings"
	"unicode"
)

const (
	openMarker  = "(("
	closeMarker = "))"
	exprQuote   = "`"
)

// marker is one (( ... )) span in a string value.
type marker struct {
	start, end int // byte offsets of the span, end exclusive
	content    string
}

// scanMarkers returns the markers of s from left to right. A closing "))" only
// counts when no further ")" follows it, so "((`a` * (2)))" is one marker.
// An opening "((" without a closing is literal text.
func scanMarkers(s string) []marker {
	var out []marker
	for i := 0; i < len(s); {
		open := strings.Index(s[i:], openMarker)
		if open < 0 {
			break
		}
		open += i
		end := findClose(s, open+len(openMarker))
		if end < 0 {
			break
		}
		out = append(out, marker{start: open, end: end + len(closeMarker), content: s[open+len(openMarker) : end]})
		i = end + len(closeMarker)
	}
	return out
}

func findClose(s string, from int) int {
	for j := from; j+1 < len(s); j++ {
		if s[j] == ')' && s[j+1] == ')' && (j+2 == len(s) || s[j+2] != ')') {
			return j
		}
	}
	return -1
}

// HasMarkers reports whether s contains at least one marker.
func HasMarkers(s string) bool {
	return len(scanMarkers(s)) > 0
}

// isEnvName reports whether a reference names an environment variable: it has
// at least one cased letter and none in lower case.
func isEnvName(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
