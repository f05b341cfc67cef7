package models

import "time"

// Reply is a response attached to exactly one post.
type Reply struct {
	ID        string    `json:"_id"`
	PostID    string    `json:"postId"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	IsAnswer  bool      `json:"isAnswer"`
}
