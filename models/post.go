package models

import "time"

// Post is a top-level discussion topic. Replies are always attached when a
// post leaves the store, oldest first.
type Post struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	Votes      int       `json:"votes"`
	CreatedAt  time.Time `json:"createdAt"`
	IsAnswered bool      `json:"isAnswered"`
	Replies    []Reply   `json:"replies"`
}
