package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/askboard/realtime"
	"github.com/cppla/askboard/store"
	"github.com/cppla/askboard/utils"
)

// PostController serves posts and replies and announces changes to
// live subscribers.
type PostController struct {
	store   store.Store
	events  realtime.Broadcaster
	devMode bool
}

// NewPostController creates a PostController. devMode adds the underlying
// error detail to 500 responses.
func NewPostController(s store.Store, events realtime.Broadcaster, devMode bool) *PostController {
	return &PostController{store: s, events: events, devMode: devMode}
}

// ListPosts returns every post, optionally filtered by ?search=. The term is
// matched as given, surrounding spaces included.
func (p *PostController) ListPosts(ctx *gin.Context) {
	posts, err := p.store.ListPosts(ctx.Request.Context(), ctx.Query("search"))
	if err != nil {
		p.fail(ctx, err, 50010, "failed to fetch posts")
		return
	}
	utils.Success(ctx, posts)
}

// GetPost returns one post with its replies.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.store.GetPost(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		p.fail(ctx, err, 50011, "failed to fetch post")
		return
	}
	utils.Success(ctx, post)
}

// CreatePost stores a new question.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload", "")
		return
	}

	title := utils.Sanitize(req.Title)
	content := utils.Sanitize(req.Content)
	if title == "" || content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title and content are required", "")
		return
	}

	post, err := p.store.CreatePost(ctx.Request.Context(), title, content, utils.Sanitize(req.Author))
	if err != nil {
		p.fail(ctx, err, 50020, "failed to create post")
		return
	}

	p.events.Broadcast(realtime.EventNewPost, post)
	utils.JSON(ctx, http.StatusCreated, post)
}

// CreateReply adds a reply to an existing post.
func (p *PostController) CreateReply(ctx *gin.Context) {
	var req struct {
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload", "")
		return
	}

	content := utils.Sanitize(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "content is required", "")
		return
	}

	postID := ctx.Param("id")
	reply, err := p.store.CreateReply(ctx.Request.Context(), postID, content, utils.Sanitize(req.Author))
	if err != nil {
		p.fail(ctx, err, 50030, "failed to create reply")
		return
	}

	p.events.Broadcast(realtime.EventNewReply, realtime.NewReplyPayload{PostID: reply.PostID, Reply: reply})
	utils.JSON(ctx, http.StatusCreated, reply)
}

// UpvotePost adds one vote to a post.
func (p *PostController) UpvotePost(ctx *gin.Context) {
	post, err := p.store.UpvotePost(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		p.fail(ctx, err, 50040, "failed to upvote post")
		return
	}

	p.events.Broadcast(realtime.EventPostUpvoted, realtime.UpvotedPayload{PostID: post.ID, Votes: post.Votes})
	utils.Success(ctx, post)
}

// MarkAnswered flags a post as answered, optionally naming the accepted reply.
func (p *PostController) MarkAnswered(ctx *gin.Context) {
	var req struct {
		ReplyID string `json:"replyId"`
	}
	// the body is optional
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload", "")
		return
	}
	replyID := strings.TrimSpace(req.ReplyID)

	post, err := p.store.MarkAnswered(ctx.Request.Context(), ctx.Param("id"), replyID)
	if err != nil {
		p.fail(ctx, err, 50050, "failed to mark post as answered")
		return
	}

	p.events.Broadcast(realtime.EventPostAnswered, realtime.AnsweredPayload{PostID: post.ID, ReplyID: replyID})
	utils.Success(ctx, post)
}

// fail maps a store error onto an HTTP response. Backend failures answer 500
// with code and message; the error detail is only exposed in development.
func (p *PostController) fail(ctx *gin.Context, err error, code int, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found", "")
	case errors.Is(err, store.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40001, err.Error(), "")
	default:
		utils.Logger.Error(message,
			zap.Error(err),
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", ctx.GetString(utils.RequestIDKey)),
		)
		detail := ""
		if p.devMode {
			detail = err.Error()
		}
		utils.Error(ctx, http.StatusInternalServerError, code, message, detail)
	}
}
