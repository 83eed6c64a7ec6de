package model

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// NotificationKind tells which edge a notification was derived from.
type NotificationKind string

const (
	KindLiked     NotificationKind = "liked"
	KindMentioned NotificationKind = "mentioned"
	KindFollowed  NotificationKind = "followed"
)

// Notification is a read-time view over a like, a mention or a follow edge.
//
// Actor is the liker, the author of the mentioning post or the follower.
// Post is nil for follow notifications.
type Notification struct {
	Kind   NotificationKind
	Post   *Post
	Actor  User
	Date   time.Time
	ReadAt *time.Time
}

// Unread reports whether the notification has not been marked as seen.
func (n Notification) Unread() bool { return n.ReadAt == nil }

const notificationPostColumns = "p.id, p.author_id, p.text, p.published_at, p.responds_to"

func scanEdgeNotification(rows *sql.Rows, kind NotificationKind) (Notification, error) {
	n := Notification{Kind: kind, Post: &Post{}}
	var (
		readAt     sql.NullTime
		respondsTo sql.NullInt64
	)
	err := rows.Scan(&n.Date, &readAt,
		&n.Post.ID, &n.Post.AuthorID, &n.Post.Text, &n.Post.PublishedAt, &respondsTo,
		&n.Actor.ID, &n.Actor.Username, &n.Actor.Name, &n.Actor.PasswordHash, &n.Actor.Email, &n.Actor.AvatarPath)
	if err != nil {
		return Notification{}, err
	}
	n.ReadAt = nullTime(readAt)
	n.Post.RespondsTo = nullInt(respondsTo)
	return n, nil
}

func (s *Store) queryNotifications(ctx context.Context, op string, scan func(*sql.Rows) (Notification, error), query string, args ...any) ([]Notification, error) {
	rows, err := s.query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// LikedNotifications lists the likes received on posts written by uid.
func (s *Store) LikedNotifications(ctx context.Context, uid int64) ([]Notification, error) {
	return s.queryNotifications(ctx, "liked notifications",
		func(rows *sql.Rows) (Notification, error) { return scanEdgeNotification(rows, KindLiked) },
		"SELECT l.created_at, l.read_at, "+notificationPostColumns+", "+userColumns+`
		FROM likes l
		JOIN posts p ON p.id = l.post_id
		JOIN users u ON u.id = l.user_id
		WHERE p.author_id = ?`, uid)
}

// MentionedNotifications lists the posts mentioning uid.
func (s *Store) MentionedNotifications(ctx context.Context, uid int64) ([]Notification, error) {
	return s.queryNotifications(ctx, "mentioned notifications",
		func(rows *sql.Rows) (Notification, error) { return scanEdgeNotification(rows, KindMentioned) },
		"SELECT m.created_at, m.read_at, "+notificationPostColumns+", "+userColumns+`
		FROM mentions m
		JOIN posts p ON p.id = m.post_id
		JOIN users u ON u.id = p.author_id
		WHERE m.user_id = ?`, uid)
}

// FollowedNotifications lists the users who started following uid.
func (s *Store) FollowedNotifications(ctx context.Context, uid int64) ([]Notification, error) {
	return s.queryNotifications(ctx, "followed notifications",
		func(rows *sql.Rows) (Notification, error) {
			n := Notification{Kind: KindFollowed}
			var readAt sql.NullTime
			err := rows.Scan(&n.Date, &readAt,
				&n.Actor.ID, &n.Actor.Username, &n.Actor.Name, &n.Actor.PasswordHash, &n.Actor.Email, &n.Actor.AvatarPath)
			n.ReadAt = nullTime(readAt)
			return n, err
		},
		"SELECT f.created_at, f.read_at, "+userColumns+`
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followed_id = ?`, uid)
}

// Notifications merges every notification of uid, newest first.
func (s *Store) Notifications(ctx context.Context, uid int64) ([]Notification, error) {
	var all []Notification
	for _, list := range []func(context.Context, int64) ([]Notification, error){
		s.LikedNotifications,
		s.FollowedNotifications,
		s.MentionedNotifications,
	} {
		ns, err := list(ctx, uid)
		if err != nil {
			return nil, err
		}
		all = append(all, ns...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	return all, nil
}

// UnreadNotifications counts the notifications of uid not yet seen.
func (s *Store) UnreadNotifications(ctx context.Context, uid int64) (int, error) {
	return s.count(ctx, "unread notifications", `SELECT
		(SELECT COUNT(*) FROM likes l JOIN posts p ON p.id = l.post_id WHERE p.author_id = ? AND l.read_at IS NULL) +
		(SELECT COUNT(*) FROM mentions WHERE user_id = ? AND read_at IS NULL) +
		(SELECT COUNT(*) FROM follows WHERE followed_id = ? AND read_at IS NULL)`, uid, uid, uid)
}

// MarkLikeSeen marks the like of likerID on pid as read.
func (s *Store) MarkLikeSeen(ctx context.Context, pid, likerID int64) error {
	_, err := s.exec(ctx, "mark like seen",
		"UPDATE likes SET read_at = ? WHERE user_id = ? AND post_id = ?", s.now(), likerID, pid)
	return err
}

// MarkMentionSeen marks the mention of uid in pid as read.
func (s *Store) MarkMentionSeen(ctx context.Context, uid, pid int64) error {
	_, err := s.exec(ctx, "mark mention seen",
		"UPDATE mentions SET read_at = ? WHERE user_id = ? AND post_id = ?", s.now(), uid, pid)
	return err
}

// MarkFollowSeen marks the follow edge from followerID to followedID as read.
func (s *Store) MarkFollowSeen(ctx context.Context, followedID, followerID int64) error {
	_, err := s.exec(ctx, "mark follow seen",
		"UPDATE follows SET read_at = ? WHERE follower_id = ? AND followed_id = ?", s.now(), followerID, followedID)
	return err
}

// MarkSeen marks a notification of uid as read on the row it came from.
func (s *Store) MarkSeen(ctx context.Context, uid int64, n Notification) error {
	switch n.Kind {
	case KindLiked:
		if n.Post == nil {
			return fmt.Errorf("mark seen: liked notification without post: %w", ErrInvalid)
		}
		return s.MarkLikeSeen(ctx, n.Post.ID, n.Actor.ID)
	case KindMentioned:
		if n.Post == nil {
			return fmt.Errorf("mark seen: mentioned notification without post: %w", ErrInvalid)
		}
		return s.MarkMentionSeen(ctx, uid, n.Post.ID)
	case KindFollowed:
		return s.MarkFollowSeen(ctx, uid, n.Actor.ID)
	}
	return fmt.Errorf("mark seen: kind %q: %w", n.Kind, ErrInvalid)
}
