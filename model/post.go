package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Post is a message written by a user, optionally in response to another post.
type Post struct {
	ID          int64
	AuthorID    int64
	Author      *User
	Text        string
	PublishedAt time.Time
	RespondsTo  *int64
}

// PostDetail is a post with everything attached to it.
type PostDetail struct {
	Post
	Parent    *Post
	Likes     []User
	Hashtags  []string
	Mentioned []User
}

// PostStats holds the counters shown under a post.
type PostStats struct {
	Likes     int
	Responses int
}

// Order selects how post listings are sorted by publish date.
type Order int

const (
	OrderNone Order = iota
	OrderAsc
	OrderDesc
)

// ParseOrder maps "asc", "desc" and "" to an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "":
		return OrderNone, nil
	case "asc", "ASC":
		return OrderAsc, nil
	case "desc", "DESC":
		return OrderDesc, nil
	}
	return OrderNone, fmt.Errorf("order %q: %w", s, ErrInvalid)
}

func (o Order) clause() string {
	switch o {
	case OrderAsc:
		return " ORDER BY p.published_at ASC, p.id ASC"
	case OrderDesc:
		return " ORDER BY p.published_at DESC, p.id DESC"
	}
	return " ORDER BY p.published_at, p.id"
}

const postSelect = "SELECT p.id, p.author_id, p.text, p.published_at, p.responds_to, " + userColumns +
	" FROM posts p JOIN users u ON u.id = p.author_id"

func scanPost(row scanner, p *Post) error {
	var respondsTo sql.NullInt64
	u := &User{}
	err := row.Scan(&p.ID, &p.AuthorID, &p.Text, &p.PublishedAt, &respondsTo,
		&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Email, &u.AvatarPath)
	if err != nil {
		return err
	}
	p.RespondsTo = nullInt(respondsTo)
	p.Author = u
	return nil
}

// CreatePost publishes text for authorID and returns the new post id.
//
// The post row, the mentions of existing users and the hashtags found in the
// text are written in one transaction: if any insert fails nothing is kept.
// Mentions of unknown usernames are skipped.
func (s *Store) CreatePost(ctx context.Context, authorID int64, text string, respondsTo *int64) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *Store) error {
		err := tx.queryRow(ctx,
			"INSERT INTO posts (author_id, text, published_at, responds_to) VALUES (?, ?, ?, ?) RETURNING id",
			authorID, text, tx.now(), respondsTo).Scan(&id)
		if err != nil {
			return storeErr("create post", err)
		}
		if err := tx.resolveMentions(ctx, id, ExtractMentions(text)); err != nil {
			return err
		}
		return tx.attachHashtags(ctx, id, ExtractHashtags(text))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) resolveMentions(ctx context.Context, postID int64, usernames []string) error {
	for _, username := range usernames {
		u, err := s.GetUserByUsername(ctx, username)
		if errors.Is(err, ErrNotFound) {
			zerolog.Ctx(ctx).Debug().Int64("post_id", postID).Str("username", username).Msg("mention of unknown user skipped")
			continue
		}
		if err != nil {
			return err
		}
		if err := s.MentionUser(ctx, postID, u.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) attachHashtags(ctx context.Context, postID int64, hashtags []string) error {
	for _, tag := range hashtags {
		if err := s.AttachHashtag(ctx, postID, tag); err != nil {
			return err
		}
	}
	return nil
}

// MentionUser records that post pid mentions user uid. Repeated calls keep a
// single mention.
func (s *Store) MentionUser(ctx context.Context, pid, uid int64) error {
	_, err := s.exec(ctx, "mention user",
		"INSERT INTO mentions (post_id, user_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		pid, uid, s.now())
	return err
}

// Mentioned returns the users mentioned in post pid.
func (s *Store) Mentioned(ctx context.Context, pid int64) ([]User, error) {
	return s.queryUsers(ctx, "list mentioned",
		"SELECT "+userColumns+" FROM mentions m JOIN users u ON u.id = m.user_id WHERE m.post_id = ? ORDER BY u.username", pid)
}

// GetPost returns a post and its author.
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	p := &Post{}
	if err := scanPost(s.queryRow(ctx, postSelect+" WHERE p.id = ?", id), p); err != nil {
		return nil, storeErr("get post", err)
	}
	return p, nil
}

// GetPostDetail returns a post with the post it responds to, its likers,
// hashtags and mentioned users.
func (s *Store) GetPostDetail(ctx context.Context, id int64) (*PostDetail, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &PostDetail{Post: *p}
	if p.RespondsTo != nil {
		d.Parent, err = s.GetPost(ctx, *p.RespondsTo)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if d.Likes, err = s.Likes(ctx, id); err != nil {
		return nil, err
	}
	if d.Hashtags, err = s.PostHashtags(ctx, id); err != nil {
		return nil, err
	}
	if d.Mentioned, err = s.Mentioned(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// DeletePost removes a post with its hashtags, mentions and likes.
// Responses to it are kept and lose their parent.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, "delete post", "DELETE FROM posts WHERE id = ?", id)
	return err
}

// SearchPosts returns the posts whose text contains q, newest first.
func (s *Store) SearchPosts(ctx context.Context, q string) ([]Post, error) {
	return s.queryPosts(ctx, "search posts", postSelect+" WHERE p.text LIKE ?"+OrderDesc.clause(), "%"+q+"%")
}

// ListPosts returns every post sorted by publish date.
func (s *Store) ListPosts(ctx context.Context, order Order) ([]Post, error) {
	return s.queryPosts(ctx, "list posts", postSelect+order.clause())
}

// ListUserPosts returns the posts of one user sorted by publish date.
func (s *Store) ListUserPosts(ctx context.Context, userID int64, order Order) ([]Post, error) {
	return s.queryPosts(ctx, "list user posts", postSelect+" WHERE p.author_id = ?"+order.clause(), userID)
}

// Responses returns the posts answering pid, oldest first.
func (s *Store) Responses(ctx context.Context, pid int64) ([]Post, error) {
	return s.queryPosts(ctx, "list responses", postSelect+" WHERE p.responds_to = ?"+OrderAsc.clause(), pid)
}

// Timeline returns the newest posts of userID and of the users they follow.
func (s *Store) Timeline(ctx context.Context, userID int64, limit int) ([]Post, error) {
	return s.queryPosts(ctx, "timeline", postSelect+`
		WHERE p.author_id = ? OR p.author_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)`+
		OrderDesc.clause()+" LIMIT ?", userID, userID, limit)
}

// PublicTimeline returns the newest posts of everyone.
func (s *Store) PublicTimeline(ctx context.Context, limit int) ([]Post, error) {
	return s.queryPosts(ctx, "public timeline", postSelect+OrderDesc.clause()+" LIMIT ?", limit)
}

func (s *Store) queryPosts(ctx context.Context, op, query string, args ...any) ([]Post, error) {
	rows, err := s.query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := scanPost(rows, &p); err != nil {
			return nil, storeErr(op, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return posts, nil
}

// PostStats counts the likes and responses of a post.
func (s *Store) PostStats(ctx context.Context, pid int64) (PostStats, error) {
	var st PostStats
	err := s.queryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM likes WHERE post_id = ?),
		(SELECT COUNT(*) FROM posts WHERE responds_to = ?)`, pid, pid).
		Scan(&st.Likes, &st.Responses)
	if err != nil {
		return PostStats{}, storeErr("post stats", err)
	}
	return st, nil
}

// Like records that uid likes pid. Liking twice is a no-op.
func (s *Store) Like(ctx context.Context, uid, pid int64) error {
	_, err := s.exec(ctx, "like",
		"INSERT INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		uid, pid, s.now())
	return err
}

// Unlike removes the like of uid on pid, if any.
func (s *Store) Unlike(ctx context.Context, uid, pid int64) error {
	_, err := s.exec(ctx, "unlike", "DELETE FROM likes WHERE user_id = ? AND post_id = ?", uid, pid)
	return err
}

// Likes returns the users who liked pid.
func (s *Store) Likes(ctx context.Context, pid int64) ([]User, error) {
	return s.queryUsers(ctx, "list likes",
		"SELECT "+userColumns+" FROM likes l JOIN users u ON u.id = l.user_id WHERE l.post_id = ? ORDER BY l.created_at", pid)
}

// HasLiked reports whether uid likes pid.
func (s *Store) HasLiked(ctx context.Context, uid, pid int64) (bool, error) {
	n, err := s.count(ctx, "has liked", "SELECT COUNT(*) FROM likes WHERE user_id = ? AND post_id = ?", uid, pid)
	return n > 0, err
}
