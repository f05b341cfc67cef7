package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/askboard/models"
)

// postRow maps a post onto the posts table.
type postRow struct {
	ID         uint      `gorm:"primaryKey"`
	Title      string    `gorm:"size:255;not null"`
	Content    string    `gorm:"type:text;not null"`
	Author     string    `gorm:"size:64;not null;default:'Anonymous'"`
	Votes      int       `gorm:"not null;default:0;index"`
	CreatedAt  time.Time `gorm:"not null"`
	IsAnswered bool      `gorm:"not null;default:false"`
}

func (postRow) TableName() string { return "posts" }

// replyRow maps a reply onto the replies table.
type replyRow struct {
	ID        uint      `gorm:"primaryKey"`
	PostID    uint      `gorm:"index;not null"`
	Content   string    `gorm:"type:text;not null"`
	Author    string    `gorm:"size:64;not null;default:'Anonymous'"`
	CreatedAt time.Time `gorm:"not null"`
	IsAnswer  bool      `gorm:"not null;default:false"`
}

func (replyRow) TableName() string { return "replies" }

func (r *postRow) model() models.Post {
	return models.Post{
		ID:         formatRowID(r.ID),
		Title:      r.Title,
		Content:    r.Content,
		Author:     r.Author,
		Votes:      r.Votes,
		CreatedAt:  r.CreatedAt,
		IsAnswered: r.IsAnswered,
		Replies:    []models.Reply{},
	}
}

func (r *replyRow) model() models.Reply {
	return models.Reply{
		ID:        formatRowID(r.ID),
		PostID:    formatRowID(r.PostID),
		Content:   r.Content,
		Author:    r.Author,
		CreatedAt: r.CreatedAt,
		IsAnswer:  r.IsAnswer,
	}
}

// SQLStore persists posts and replies in a relational database through gorm.
// Row ids are auto-increment keys, so id order is creation order.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore binds the store to db. Call Migrate before first use on a
// fresh database.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates or extends the posts and replies tables.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&postRow{}, &replyRow{}); err != nil {
		return backendError("migrate", err)
	}
	return nil
}

func (s *SQLStore) CreatePost(ctx context.Context, title, content, author string) (models.Post, error) {
	in, err := newPostInput(title, content, author)
	if err != nil {
		return models.Post{}, err
	}
	row := postRow{
		Title:     in.title,
		Content:   in.content,
		Author:    in.author,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Post{}, backendError("insert post", err)
	}
	return row.model(), nil
}

func (s *SQLStore) CreateReply(ctx context.Context, postID, content, author string) (models.Reply, error) {
	pid, ok := parseRowID(postID)
	if !ok {
		return models.Reply{}, notFound("post", postID)
	}
	if _, err := s.findPost(ctx, pid, postID); err != nil {
		return models.Reply{}, err
	}
	in, err := newReplyInput(content, author)
	if err != nil {
		return models.Reply{}, err
	}
	row := replyRow{
		PostID:    pid,
		Content:   in.content,
		Author:    in.author,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Reply{}, backendError("insert reply", err)
	}
	return row.model(), nil
}

func (s *SQLStore) ListPosts(ctx context.Context, search string) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Model(&postRow{}).Order("votes DESC").Order("id DESC")
	if search != "" {
		like := "%" + escapeLike(strings.ToLower(search)) + "%"
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!'", like, like)
	}
	var rows []postRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, backendError("list posts", err)
	}

	posts := make([]models.Post, len(rows))
	ids := make([]uint, len(rows))
	for i := range rows {
		posts[i] = rows[i].model()
		ids[i] = rows[i].ID
	}
	if err := s.attachReplies(ctx, posts, ids); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *SQLStore) GetPost(ctx context.Context, postID string) (models.Post, error) {
	pid, ok := parseRowID(postID)
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	row, err := s.findPost(ctx, pid, postID)
	if err != nil {
		return models.Post{}, err
	}
	return s.populated(ctx, row)
}

func (s *SQLStore) UpvotePost(ctx context.Context, postID string) (models.Post, error) {
	pid, ok := parseRowID(postID)
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	res := s.db.WithContext(ctx).Model(&postRow{}).Where("id = ?", pid).
		UpdateColumn("votes", gorm.Expr("votes + ?", 1))
	if res.Error != nil {
		return models.Post{}, backendError("upvote post", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Post{}, notFound("post", postID)
	}
	return s.GetPost(ctx, postID)
}

func (s *SQLStore) MarkAnswered(ctx context.Context, postID, replyID string) (models.Post, error) {
	pid, ok := parseRowID(postID)
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	// Existence is checked up front: MySQL reports zero affected rows when
	// the flag is already set.
	if _, err := s.findPost(ctx, pid, postID); err != nil {
		return models.Post{}, err
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&postRow{}).Where("id = ?", pid).UpdateColumn("is_answered", true).Error; err != nil {
		return models.Post{}, backendError("mark answered", err)
	}
	if rid, ok := parseRowID(replyID); ok {
		if err := db.Model(&replyRow{}).Where("id = ?", rid).UpdateColumn("is_answer", true).Error; err != nil {
			return models.Post{}, backendError("mark reply", err)
		}
	}
	return s.GetPost(ctx, postID)
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats
	if err := db.Model(&postRow{}).Count(&st.Posts).Error; err != nil {
		return Stats{}, backendError("count posts", err)
	}
	if err := db.Model(&replyRow{}).Count(&st.Replies).Error; err != nil {
		return Stats{}, backendError("count replies", err)
	}
	if err := db.Model(&postRow{}).Where("is_answered = ?", true).Count(&st.AnsweredPosts).Error; err != nil {
		return Stats{}, backendError("count answered", err)
	}
	return st, nil
}

func (s *SQLStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) findPost(ctx context.Context, pid uint, postID string) (*postRow, error) {
	var row postRow
	if err := s.db.WithContext(ctx).First(&row, pid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("post", postID)
		}
		return nil, backendError("find post", err)
	}
	return &row, nil
}

func (s *SQLStore) populated(ctx context.Context, row *postRow) (models.Post, error) {
	posts := []models.Post{row.model()}
	if err := s.attachReplies(ctx, posts, []uint{row.ID}); err != nil {
		return models.Post{}, err
	}
	return posts[0], nil
}

func (s *SQLStore) attachReplies(ctx context.Context, posts []models.Post, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var rows []replyRow
	if err := s.db.WithContext(ctx).Where("post_id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
		return backendError("find replies", err)
	}
	index := make(map[uint]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	for i := range rows {
		if at, ok := index[rows[i].PostID]; ok {
			posts[at].Replies = append(posts[at].Replies, rows[i].model())
		}
	}
	return nil
}

func formatRowID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseRowID(id string) (uint, bool) {
	n, err := strconv.ParseUint(id, 10, 0)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// escapeLike escapes LIKE wildcards with '!' as the escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
