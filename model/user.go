package model

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	Name         string
	PasswordHash string
	Email        string
	AvatarPath   string
}

// NewUser holds the registration fields of a user.
type NewUser struct {
	Username   string
	Name       string
	Password   string
	Email      string
	AvatarPath string
}

// UserStats holds the counters shown on a profile.
type UserStats struct {
	Posts     int
	Followers int
	Following int
}

const userColumns = "u.id, u.username, u.name, u.password_hash, u.email, u.avatar_path"

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, u *User) error {
	return row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Email, &u.AvatarPath)
}

func (s *Store) getUser(ctx context.Context, op, where string, arg any) (*User, error) {
	u := &User{}
	err := scanUser(s.queryRow(ctx, "SELECT "+userColumns+" FROM users u WHERE "+where, arg), u)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return u, nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "get user", "u.id = ?", id)
}

// GetUserByUsername returns the user with exactly this username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "get user by username", "u.username = ?", username)
}

// CreateUser stores a new user and returns its id. The password is hashed
// with bcrypt before it is stored. A taken username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, nu NewUser) (int64, error) {
	hash, err := hashPassword(nu.Password)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.queryRow(ctx,
		"INSERT INTO users (username, name, password_hash, email, avatar_path) VALUES (?, ?, ?, ?, ?) RETURNING id",
		nu.Username, nu.Name, hash, nu.Email, nu.AvatarPath).Scan(&id)
	if err != nil {
		return 0, storeErr("create user", err)
	}
	return id, nil
}

// UpdateUser changes the public profile fields of a user.
func (s *Store) UpdateUser(ctx context.Context, id int64, username, name, email string) error {
	return s.updateUser(ctx, "update user",
		"UPDATE users SET username = ?, name = ?, email = ? WHERE id = ?", username, name, email, id)
}

// ChangePassword replaces the stored hash with a hash of password.
func (s *Store) ChangePassword(ctx context.Context, id int64, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.updateUser(ctx, "change password", "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
}

// ChangeAvatar sets the avatar path of a user.
func (s *Store) ChangeAvatar(ctx context.Context, id int64, path string) error {
	return s.updateUser(ctx, "change avatar", "UPDATE users SET avatar_path = ? WHERE id = ?", path, id)
}

func (s *Store) updateUser(ctx context.Context, op, query string, args ...any) error {
	res, err := s.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &StoreError{Op: op, Err: ErrNotFound}
	}
	return nil
}

// DeleteUser removes a user together with their posts and edges.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, "delete user", "DELETE FROM users WHERE id = ?", id)
	return err
}

// SearchUsers returns users whose username or name contains q.
func (s *Store) SearchUsers(ctx context.Context, q string) ([]User, error) {
	pattern := "%" + q + "%"
	return s.queryUsers(ctx, "search users",
		"SELECT "+userColumns+" FROM users u WHERE u.username LIKE ? OR u.name LIKE ? ORDER BY u.username",
		pattern, pattern)
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx, "list users", "SELECT "+userColumns+" FROM users u ORDER BY u.username")
}

// Followers returns the users following id.
func (s *Store) Followers(ctx context.Context, id int64) ([]User, error) {
	return s.queryUsers(ctx, "list followers",
		"SELECT "+userColumns+" FROM users u JOIN follows f ON u.id = f.follower_id WHERE f.followed_id = ? ORDER BY u.username", id)
}

// Followings returns the users id follows.
func (s *Store) Followings(ctx context.Context, id int64) ([]User, error) {
	return s.queryUsers(ctx, "list followings",
		"SELECT "+userColumns+" FROM users u JOIN follows f ON u.id = f.followed_id WHERE f.follower_id = ? ORDER BY u.username", id)
}

func (s *Store) queryUsers(ctx context.Context, op, query string, args ...any) ([]User, error) {
	rows, err := s.query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, storeErr(op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return users, nil
}

// UserStats counts the posts, followers and followings of a user.
func (s *Store) UserStats(ctx context.Context, id int64) (UserStats, error) {
	var st UserStats
	err := s.queryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM posts WHERE author_id = ?),
		(SELECT COUNT(*) FROM follows WHERE followed_id = ?),
		(SELECT COUNT(*) FROM follows WHERE follower_id = ?)`, id, id, id).
		Scan(&st.Posts, &st.Followers, &st.Following)
	if err != nil {
		return UserStats{}, storeErr("user stats", err)
	}
	return st, nil
}

// CheckAuth returns the user when password matches their stored hash.
// Unknown usernames and wrong passwords both yield ErrNotFound.
func (s *Store) CheckAuth(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !checkPassword(u.PasswordHash, password) {
		return nil, &StoreError{Op: "check auth", Err: ErrNotFound}
	}
	return u, nil
}

// CheckAuthID returns the user when passwordHash equals their stored hash.
func (s *Store) CheckAuthID(ctx context.Context, id int64, passwordHash string) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(passwordHash)) != 1 {
		return nil, &StoreError{Op: "check auth", Err: ErrNotFound}
	}
	return u, nil
}

// Follow records that follower follows followed. Following twice is a no-op.
func (s *Store) Follow(ctx context.Context, follower, followed int64) error {
	if follower == followed {
		return fmt.Errorf("follow: user %d cannot follow themselves: %w", follower, ErrInvalid)
	}
	_, err := s.exec(ctx, "follow",
		"INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		follower, followed, s.now())
	return err
}

// Unfollow removes the follow edge, if any.
func (s *Store) Unfollow(ctx context.Context, follower, followed int64) error {
	_, err := s.exec(ctx, "unfollow",
		"DELETE FROM follows WHERE follower_id = ? AND followed_id = ?", follower, followed)
	return err
}

// IsFollowing reports whether follower follows followed.
func (s *Store) IsFollowing(ctx context.Context, follower, followed int64) (bool, error) {
	var one int
	err := s.queryRow(ctx, "SELECT 1 FROM follows WHERE follower_id = ? AND followed_id = ?", follower, followed).Scan(&one)
	if err != nil {
		err = storeErr("is following", err)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
