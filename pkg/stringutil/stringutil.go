// Package stringutil holds small string helpers for console output.
package stringutil

import "strings"

// Ellipsis flattens s to one trimmed line and cuts it to maxLength bytes,
// ending with "..." when cut. With maxLength <= 3 no ellipsis is added.
func Ellipsis(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if maxLength < 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
