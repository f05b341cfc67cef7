package store

import (
	"context"
	"errors"
	"testing"

	"github.com/cppla/askboard/models"
)

// runContract exercises behaviour every backend must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create post starts unanswered with no votes", func(t *testing.T) {
		s := newStore(t)
		p, err := s.CreatePost(ctx, "  How do closures work?  ", "Explain please", "")
		if err != nil {
			t.Fatalf("CreatePost: %v", err)
		}
		if p.ID == "" {
			t.Fatal("expected an id")
		}
		if p.Title != "How do closures work?" {
			t.Fatalf("title not trimmed: %q", p.Title)
		}
		if p.Votes != 0 || p.IsAnswered {
			t.Fatalf("unexpected initial state: votes=%d answered=%v", p.Votes, p.IsAnswered)
		}
		if p.Author != "Anonymous" {
			t.Fatalf("author = %q, want Anonymous", p.Author)
		}
		if p.CreatedAt.IsZero() {
			t.Fatal("createdAt not set")
		}
		if p.Replies == nil || len(p.Replies) != 0 {
			t.Fatalf("replies = %#v, want empty slice", p.Replies)
		}
	})

	t.Run("create post rejects empty fields", func(t *testing.T) {
		s := newStore(t)
		cases := []struct{ title, content string }{
			{"", "body"},
			{"title", ""},
			{"   ", "body"},
			{"title", "\n\t "},
		}
		for _, c := range cases {
			if _, err := s.CreatePost(ctx, c.title, c.content, "ann"); !errors.Is(err, ErrValidation) {
				t.Fatalf("CreatePost(%q, %q) err = %v, want ErrValidation", c.title, c.content, err)
			}
		}
		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.Posts != 0 {
			t.Fatalf("posts = %d after rejected creates", st.Posts)
		}
	})

	t.Run("upvotes accumulate", func(t *testing.T) {
		s := newStore(t)
		p := mustCreatePost(t, s, "Votes", "count me")
		var got int
		for i := 0; i < 3; i++ {
			up, err := s.UpvotePost(ctx, p.ID)
			if err != nil {
				t.Fatalf("UpvotePost: %v", err)
			}
			got = up.Votes
		}
		if got != 3 {
			t.Fatalf("votes = %d, want 3", got)
		}
		fetched, err := s.GetPost(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetPost: %v", err)
		}
		if fetched.Votes != 3 {
			t.Fatalf("stored votes = %d, want 3", fetched.Votes)
		}
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"999999", "not-an-id", ""} {
			if _, err := s.GetPost(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetPost(%q) err = %v, want ErrNotFound", id, err)
			}
			if _, err := s.UpvotePost(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Fatalf("UpvotePost(%q) err = %v, want ErrNotFound", id, err)
			}
			if _, err := s.MarkAnswered(ctx, id, ""); !errors.Is(err, ErrNotFound) {
				t.Fatalf("MarkAnswered(%q) err = %v, want ErrNotFound", id, err)
			}
		}
	})

	t.Run("list orders by votes then newest", func(t *testing.T) {
		s := newStore(t)
		a := mustCreatePost(t, s, "A", "first")
		b := mustCreatePost(t, s, "B", "second")
		c := mustCreatePost(t, s, "C", "third")
		d := mustCreatePost(t, s, "D", "fourth")
		mustUpvote(t, s, b.ID, 2)
		mustUpvote(t, s, a.ID, 1)

		posts, err := s.ListPosts(ctx, "")
		if err != nil {
			t.Fatalf("ListPosts: %v", err)
		}
		want := []string{b.ID, a.ID, d.ID, c.ID}
		if len(posts) != len(want) {
			t.Fatalf("got %d posts, want %d", len(posts), len(want))
		}
		for i, id := range want {
			if posts[i].ID != id {
				t.Fatalf("position %d: got %s (%s), want %s", i, posts[i].ID, posts[i].Title, id)
			}
		}
	})

	t.Run("search matches title or content ignoring case", func(t *testing.T) {
		s := newStore(t)
		arrays := mustCreatePost(t, s, "Help with arrays", "indexing question")
		mustCreatePost(t, s, "Cooking tips", "how long to boil eggs")
		body := mustCreatePost(t, s, "Loops", "iterating an ARRAY backwards")

		posts, err := s.ListPosts(ctx, "array")
		if err != nil {
			t.Fatalf("ListPosts: %v", err)
		}
		if len(posts) != 2 {
			t.Fatalf("got %d matches, want 2", len(posts))
		}
		seen := map[string]bool{}
		for _, p := range posts {
			seen[p.ID] = true
		}
		if !seen[arrays.ID] || !seen[body.ID] {
			t.Fatalf("unexpected matches: %+v", posts)
		}
	})

	t.Run("search treats wildcards literally", func(t *testing.T) {
		s := newStore(t)
		pct := mustCreatePost(t, s, "Progress at 100% now", "done")
		mustCreatePost(t, s, "Progress at 1000 now", "almost")

		posts, err := s.ListPosts(ctx, "0%")
		if err != nil {
			t.Fatalf("ListPosts: %v", err)
		}
		if len(posts) != 1 || posts[0].ID != pct.ID {
			t.Fatalf("got %+v, want only %s", posts, pct.ID)
		}
	})

	t.Run("reply to missing post stores nothing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.CreateReply(ctx, "424242", "hello", ""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("CreateReply err = %v, want ErrNotFound", err)
		}
		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.Replies != 0 {
			t.Fatalf("replies = %d, want 0", st.Replies)
		}
	})

	t.Run("reply requires content", func(t *testing.T) {
		s := newStore(t)
		p := mustCreatePost(t, s, "Q", "body")
		if _, err := s.CreateReply(ctx, p.ID, "   ", "bob"); !errors.Is(err, ErrValidation) {
			t.Fatalf("CreateReply err = %v, want ErrValidation", err)
		}
	})

	t.Run("replies are returned in creation order", func(t *testing.T) {
		s := newStore(t)
		p := mustCreatePost(t, s, "Q", "body")
		r1, err := s.CreateReply(ctx, p.ID, "first", "")
		if err != nil {
			t.Fatalf("CreateReply: %v", err)
		}
		r2, err := s.CreateReply(ctx, p.ID, "second", "bob")
		if err != nil {
			t.Fatalf("CreateReply: %v", err)
		}
		if r1.PostID != p.ID || r1.Author != "Anonymous" || r1.IsAnswer {
			t.Fatalf("unexpected reply: %+v", r1)
		}

		got, err := s.GetPost(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetPost: %v", err)
		}
		if len(got.Replies) != 2 || got.Replies[0].ID != r1.ID || got.Replies[1].ID != r2.ID {
			t.Fatalf("replies = %+v", got.Replies)
		}

		list, err := s.ListPosts(ctx, "")
		if err != nil {
			t.Fatalf("ListPosts: %v", err)
		}
		if len(list) != 1 || len(list[0].Replies) != 2 {
			t.Fatalf("list replies = %+v", list)
		}
	})

	t.Run("mark answered is idempotent", func(t *testing.T) {
		s := newStore(t)
		p := mustCreatePost(t, s, "Q", "body")
		r, err := s.CreateReply(ctx, p.ID, "answer", "")
		if err != nil {
			t.Fatalf("CreateReply: %v", err)
		}

		for i := 0; i < 2; i++ {
			got, err := s.MarkAnswered(ctx, p.ID, r.ID)
			if err != nil {
				t.Fatalf("MarkAnswered #%d: %v", i+1, err)
			}
			if !got.IsAnswered {
				t.Fatalf("MarkAnswered #%d: post not answered", i+1)
			}
			if len(got.Replies) != 1 || !got.Replies[0].IsAnswer {
				t.Fatalf("MarkAnswered #%d: reply not flagged: %+v", i+1, got.Replies)
			}
		}

		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.Posts != 1 || st.Replies != 1 || st.AnsweredPosts != 1 {
			t.Fatalf("stats = %+v", st)
		}
	})

	t.Run("mark answered flags any existing reply by id", func(t *testing.T) {
		s := newStore(t)
		p1 := mustCreatePost(t, s, "P1", "body")
		p2 := mustCreatePost(t, s, "P2", "body")
		other, err := s.CreateReply(ctx, p2.ID, "elsewhere", "")
		if err != nil {
			t.Fatalf("CreateReply: %v", err)
		}

		got, err := s.MarkAnswered(ctx, p1.ID, other.ID)
		if err != nil {
			t.Fatalf("MarkAnswered: %v", err)
		}
		if !got.IsAnswered {
			t.Fatal("post not answered")
		}
		if _, err := s.MarkAnswered(ctx, p1.ID, "777777"); err != nil {
			t.Fatalf("MarkAnswered with missing reply: %v", err)
		}

		p2got, err := s.GetPost(ctx, p2.ID)
		if err != nil {
			t.Fatalf("GetPost: %v", err)
		}
		if p2got.IsAnswered {
			t.Fatalf("other post marked answered: %+v", p2got)
		}
		if len(p2got.Replies) != 1 || !p2got.Replies[0].IsAnswer {
			t.Fatalf("reply under other post not flagged: %+v", p2got.Replies)
		}
	})
}

func mustCreatePost(t *testing.T, s Store, title, content string) models.Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), title, content, "")
	if err != nil {
		t.Fatalf("CreatePost(%q): %v", title, err)
	}
	return p
}

func mustUpvote(t *testing.T, s Store, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.UpvotePost(context.Background(), id); err != nil {
			t.Fatalf("UpvotePost(%s): %v", id, err)
		}
	}
}
