package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cppla/askboard/models"
)

// MemoryStore keeps posts and replies in process memory. Data is lost on
// restart.
type MemoryStore struct {
	mu sync.RWMutex

	posts   []*models.Post // insertion order
	byID    map[string]*models.Post
	replies []*models.Reply
	replyBy map[string]*models.Reply

	nextPostID  int64
	nextReplyID int64

	now      func() time.Time
	lastTime time.Time
}

// NewMemoryStore returns an empty memory-resident store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*models.Post),
		replyBy: make(map[string]*models.Reply),
		now:     time.Now,
	}
}

// stamp returns a strictly increasing creation time so that newest-first
// ordering stays deterministic for records created within one clock tick.
// Callers hold mu.
func (m *MemoryStore) stamp() time.Time {
	t := m.now().UTC()
	if !t.After(m.lastTime) {
		t = m.lastTime.Add(time.Nanosecond)
	}
	m.lastTime = t
	return t
}

func (m *MemoryStore) CreatePost(ctx context.Context, title, content, author string) (models.Post, error) {
	if err := ctx.Err(); err != nil {
		return models.Post{}, err
	}
	in, err := newPostInput(title, content, author)
	if err != nil {
		return models.Post{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPostID++
	p := &models.Post{
		ID:        strconv.FormatInt(m.nextPostID, 10),
		Title:     in.title,
		Content:   in.content,
		Author:    in.author,
		CreatedAt: m.stamp(),
	}
	m.posts = append(m.posts, p)
	m.byID[p.ID] = p
	return m.withRepliesLocked(p), nil
}

func (m *MemoryStore) CreateReply(ctx context.Context, postID, content, author string) (models.Reply, error) {
	if err := ctx.Err(); err != nil {
		return models.Reply{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[postID]; !ok {
		return models.Reply{}, notFound("post", postID)
	}
	in, err := newReplyInput(content, author)
	if err != nil {
		return models.Reply{}, err
	}
	m.nextReplyID++
	r := &models.Reply{
		ID:        strconv.FormatInt(m.nextReplyID, 10),
		PostID:    postID,
		Content:   in.content,
		Author:    in.author,
		CreatedAt: m.stamp(),
	}
	m.replies = append(m.replies, r)
	m.replyBy[r.ID] = r
	return *r, nil
}

func (m *MemoryStore) ListPosts(ctx context.Context, search string) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if !matchesSearch(p, search) {
			continue
		}
		out = append(out, m.withRepliesLocked(p))
	}
	sortPosts(out)
	return out, nil
}

func (m *MemoryStore) GetPost(ctx context.Context, postID string) (models.Post, error) {
	if err := ctx.Err(); err != nil {
		return models.Post{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[postID]
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	return m.withRepliesLocked(p), nil
}

func (m *MemoryStore) UpvotePost(ctx context.Context, postID string) (models.Post, error) {
	if err := ctx.Err(); err != nil {
		return models.Post{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[postID]
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	p.Votes++
	return m.withRepliesLocked(p), nil
}

func (m *MemoryStore) MarkAnswered(ctx context.Context, postID, replyID string) (models.Post, error) {
	if err := ctx.Err(); err != nil {
		return models.Post{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[postID]
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	p.IsAnswered = true
	if r, ok := m.replyBy[replyID]; ok {
		r.IsAnswer = true
	}
	return m.withRepliesLocked(p), nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{Posts: int64(len(m.posts)), Replies: int64(len(m.replies))}
	for _, p := range m.posts {
		if p.IsAnswered {
			s.AnsweredPosts++
		}
	}
	return s, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

// withRepliesLocked copies p and attaches copies of its replies in creation
// order. Callers hold mu.
func (m *MemoryStore) withRepliesLocked(p *models.Post) models.Post {
	out := *p
	out.Replies = []models.Reply{}
	for _, r := range m.replies {
		if r.PostID == p.ID {
			out.Replies = append(out.Replies, *r)
		}
	}
	return out
}
