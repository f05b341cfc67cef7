package models

import "strings"

// DefaultAuthor is used when a post or reply is submitted without an author.
const DefaultAuthor = "Anonymous"

// AuthorOrDefault trims the author name and falls back to DefaultAuthor.
func AuthorOrDefault(author string) string {
	if a := strings.TrimSpace(author); a != "" {
		return a
	}
	return DefaultAuthor
}
