// Package normalize holds the whitespace rules every string comparison in the
// pipeline is built on.
package normalize

import "strings"

// Text collapses each run of whitespace (newlines and tabs included) into a
// single space and trims both ends. Empty input yields "".
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

// Lower is Text followed by lowercasing; it is the form used for keyword
// matching and fingerprinting.
func Lower(s string) string {
	return strings.ToLower(Text(s))
}
