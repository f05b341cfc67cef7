// Package store persists posts and replies behind a single interface. The
// concrete backend (memory, MongoDB or SQL) is chosen once at startup.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cppla/askboard/models"
)

var (
	// ErrValidation reports a missing or empty required field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports that a referenced post does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBackend reports an infrastructure failure in the underlying store.
	ErrBackend = errors.New("backend failure")
)

// Store is the storage contract shared by every backend.
type Store interface {
	CreatePost(ctx context.Context, title, content, author string) (models.Post, error)
	CreateReply(ctx context.Context, postID, content, author string) (models.Reply, error)
	// ListPosts returns posts ordered by votes desc, newest first. A non-empty
	// search keeps posts whose title or content contains it, ignoring case.
	ListPosts(ctx context.Context, search string) ([]models.Post, error)
	GetPost(ctx context.Context, postID string) (models.Post, error)
	UpvotePost(ctx context.Context, postID string) (models.Post, error)
	// MarkAnswered flags the post as answered and, when replyID is set, flags
	// that reply as the answer. The reply is looked up by id alone, so a reply
	// under another post is flagged too; a missing reply is ignored.
	MarkAnswered(ctx context.Context, postID, replyID string) (models.Post, error)
	Stats(ctx context.Context) (Stats, error)
	Close(ctx context.Context) error
}

// Stats holds aggregate counters for the board.
type Stats struct {
	Posts         int64 `json:"post_count"`
	Replies       int64 `json:"reply_count"`
	AnsweredPosts int64 `json:"answered_count"`
}

// Backend names a storage implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendMongo  Backend = "mongo"
	BackendSQL    Backend = "sql"
)

// ParseBackend maps a configuration value onto a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendMemory:
		return BackendMemory, nil
	case BackendMongo, "mongodb":
		return BackendMongo, nil
	case BackendSQL, "mysql", "sqlite":
		return BackendSQL, nil
	}
	return "", fmt.Errorf("unknown store backend %q", s)
}

func validationError(field string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, field)
}

func notFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

func backendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}

type postInput struct {
	title, content, author string
}

func newPostInput(title, content, author string) (postInput, error) {
	in := postInput{
		title:   strings.TrimSpace(title),
		content: strings.TrimSpace(content),
		author:  models.AuthorOrDefault(author),
	}
	if in.title == "" {
		return in, validationError("title")
	}
	if in.content == "" {
		return in, validationError("content")
	}
	return in, nil
}

type replyInput struct {
	content, author string
}

func newReplyInput(content, author string) (replyInput, error) {
	in := replyInput{
		content: strings.TrimSpace(content),
		author:  models.AuthorOrDefault(author),
	}
	if in.content == "" {
		return in, validationError("content")
	}
	return in, nil
}

// matchesSearch reports whether term occurs in the post title or content,
// ignoring case. An empty term matches everything.
func matchesSearch(p *models.Post, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Content), term)
}

// sortPosts orders posts by votes desc, then creation time desc.
func sortPosts(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Votes != posts[j].Votes {
			return posts[i].Votes > posts[j].Votes
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
