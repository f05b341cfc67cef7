package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cppla/askboard/models"
)

const (
	postsCollection   = "posts"
	repliesCollection = "replies"
)

// postDoc is the stored shape of a post. Replies holds reply ids in the
// order they were added.
type postDoc struct {
	ID         primitive.ObjectID   `bson:"_id"`
	Title      string               `bson:"title"`
	Content    string               `bson:"content"`
	Author     string               `bson:"author"`
	Votes      int                  `bson:"votes"`
	CreatedAt  time.Time            `bson:"createdAt"`
	IsAnswered bool                 `bson:"isAnswered"`
	Replies    []primitive.ObjectID `bson:"replies"`
}

type replyDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	PostID    primitive.ObjectID `bson:"postId"`
	Content   string             `bson:"content"`
	Author    string             `bson:"author"`
	CreatedAt time.Time          `bson:"createdAt"`
	IsAnswer  bool               `bson:"isAnswer"`
}

func (d *postDoc) model() models.Post {
	return models.Post{
		ID:         d.ID.Hex(),
		Title:      d.Title,
		Content:    d.Content,
		Author:     d.Author,
		Votes:      d.Votes,
		CreatedAt:  d.CreatedAt,
		IsAnswered: d.IsAnswered,
		Replies:    []models.Reply{},
	}
}

func (d *replyDoc) model() models.Reply {
	return models.Reply{
		ID:        d.ID.Hex(),
		PostID:    d.PostID.Hex(),
		Content:   d.Content,
		Author:    d.Author,
		CreatedAt: d.CreatedAt,
		IsAnswer:  d.IsAnswer,
	}
}

// MongoStore persists posts and replies as MongoDB documents.
type MongoStore struct {
	client  *mongo.Client
	posts   *mongo.Collection
	replies *mongo.Collection
}

// NewMongoStore binds the store to db. The client, if any, is disconnected
// on Close.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:  db.Client(),
		posts:   db.Collection(postsCollection),
		replies: db.Collection(repliesCollection),
	}
}

// EnsureIndexes creates the indexes used by list ordering and reply lookup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "votes", Value: -1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return backendError("create posts index", err)
	}
	_, err = s.replies.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return backendError("create replies index", err)
	}
	return nil
}

func (s *MongoStore) CreatePost(ctx context.Context, title, content, author string) (models.Post, error) {
	in, err := newPostInput(title, content, author)
	if err != nil {
		return models.Post{}, err
	}
	doc := postDoc{
		ID:        primitive.NewObjectID(),
		Title:     in.title,
		Content:   in.content,
		Author:    in.author,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Replies:   []primitive.ObjectID{},
	}
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return models.Post{}, backendError("insert post", err)
	}
	return doc.model(), nil
}

func (s *MongoStore) CreateReply(ctx context.Context, postID, content, author string) (models.Reply, error) {
	pid, ok := parseObjectID(postID)
	if !ok {
		return models.Reply{}, notFound("post", postID)
	}
	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": pid}, options.Count().SetLimit(1))
	if err != nil {
		return models.Reply{}, backendError("find post", err)
	}
	if n == 0 {
		return models.Reply{}, notFound("post", postID)
	}
	in, err := newReplyInput(content, author)
	if err != nil {
		return models.Reply{}, err
	}

	doc := replyDoc{
		ID:        primitive.NewObjectID(),
		PostID:    pid,
		Content:   in.content,
		Author:    in.author,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.replies.InsertOne(ctx, doc); err != nil {
		return models.Reply{}, backendError("insert reply", err)
	}
	res, err := s.posts.UpdateByID(ctx, pid, bson.M{"$push": bson.M{"replies": doc.ID}})
	if err == nil && res.MatchedCount > 0 {
		return doc.model(), nil
	}
	// Unlinked replies are still found by postId, so drop this one.
	_, derr := s.replies.DeleteOne(ctx, bson.M{"_id": doc.ID})
	if err != nil {
		return models.Reply{}, backendError("link reply", errors.Join(err, derr))
	}
	if derr != nil {
		return models.Reply{}, backendError("unlink reply", derr)
	}
	return models.Reply{}, notFound("post", postID)
}

func (s *MongoStore) ListPosts(ctx context.Context, search string) ([]models.Post, error) {
	filter := bson.M{}
	if search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"content": pattern},
		}
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "votes", Value: -1},
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, backendError("find posts", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, backendError("decode posts", err)
	}

	posts := make([]models.Post, len(docs))
	ids := make([]primitive.ObjectID, len(docs))
	for i := range docs {
		posts[i] = docs[i].model()
		ids[i] = docs[i].ID
	}
	if err := s.attachReplies(ctx, posts, ids); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *MongoStore) GetPost(ctx context.Context, postID string) (models.Post, error) {
	pid, ok := parseObjectID(postID)
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	var doc postDoc
	if err := s.posts.FindOne(ctx, bson.M{"_id": pid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, notFound("post", postID)
		}
		return models.Post{}, backendError("find post", err)
	}
	return s.populated(ctx, &doc)
}

func (s *MongoStore) UpvotePost(ctx context.Context, postID string) (models.Post, error) {
	return s.updatePost(ctx, "upvote post", postID, bson.M{"$inc": bson.M{"votes": 1}}, nil)
}

func (s *MongoStore) MarkAnswered(ctx context.Context, postID, replyID string) (models.Post, error) {
	flagReply := func(ctx context.Context, _ primitive.ObjectID) error {
		rid, ok := parseObjectID(replyID)
		if !ok {
			return nil
		}
		_, err := s.replies.UpdateByID(ctx, rid, bson.M{"$set": bson.M{"isAnswer": true}})
		if err != nil {
			return backendError("mark reply", err)
		}
		return nil
	}
	return s.updatePost(ctx, "mark answered", postID, bson.M{"$set": bson.M{"isAnswered": true}}, flagReply)
}

// updatePost applies update atomically, runs after (if set) once the post is
// known to exist, and returns the post with its replies.
func (s *MongoStore) updatePost(ctx context.Context, op, postID string, update bson.M, after func(context.Context, primitive.ObjectID) error) (models.Post, error) {
	pid, ok := parseObjectID(postID)
	if !ok {
		return models.Post{}, notFound("post", postID)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc postDoc
	if err := s.posts.FindOneAndUpdate(ctx, bson.M{"_id": pid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, notFound("post", postID)
		}
		return models.Post{}, backendError(op, err)
	}
	if after != nil {
		if err := after(ctx, pid); err != nil {
			return models.Post{}, err
		}
	}
	return s.populated(ctx, &doc)
}

func (s *MongoStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Posts, err = s.posts.CountDocuments(ctx, bson.M{}); err != nil {
		return Stats{}, backendError("count posts", err)
	}
	if st.Replies, err = s.replies.CountDocuments(ctx, bson.M{}); err != nil {
		return Stats{}, backendError("count replies", err)
	}
	if st.AnsweredPosts, err = s.posts.CountDocuments(ctx, bson.M{"isAnswered": true}); err != nil {
		return Stats{}, backendError("count answered", err)
	}
	return st, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) populated(ctx context.Context, doc *postDoc) (models.Post, error) {
	posts := []models.Post{doc.model()}
	if err := s.attachReplies(ctx, posts, []primitive.ObjectID{doc.ID}); err != nil {
		return models.Post{}, err
	}
	return posts[0], nil
}

// attachReplies loads the replies of every post in one query. posts[i] must
// correspond to ids[i].
func (s *MongoStore) attachReplies(ctx context.Context, posts []models.Post, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.replies.Find(ctx, bson.M{"postId": bson.M{"$in": ids}}, opts)
	if err != nil {
		return backendError("find replies", err)
	}
	var docs []replyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return backendError("decode replies", err)
	}

	index := make(map[primitive.ObjectID]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	for i := range docs {
		if at, ok := index[docs[i].PostID]; ok {
			posts[at].Replies = append(posts[at].Replies, docs[i].model())
		}
	}
	return nil
}

func parseObjectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}
