package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML markup from user text and trims the result. What is
// left is stored as plain text, so entities bluemonday escapes on output are
// decoded again and `a < b && c` comes back unchanged.
func Sanitize(input string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(input)))
}
