// Package view renders Twirper pages: one shared layout wrapping a content
// template.
package view

import (
	"bytes"
	"crypto/md5"
	"embed"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"

	"github.com/twirper/twirper/model"
)

//go:embed templates/*.html
var files embed.FS

var (
	loadOnce  sync.Once
	templates map[string]*exec.Template
	loadErr   error
)

func load() (map[string]*exec.Template, error) {
	loadOnce.Do(func() {
		entries, err := files.ReadDir("templates")
		if err != nil {
			loadErr = err
			return
		}
		templates = make(map[string]*exec.Template, len(entries))
		for _, e := range entries {
			src, err := files.ReadFile("templates/" + e.Name())
			if err != nil {
				loadErr = err
				return
			}
			tpl, err := gonja.FromString(string(src))
			if err != nil {
				loadErr = fmt.Errorf("parse %s: %w", e.Name(), err)
				return
			}
			templates[strings.TrimSuffix(e.Name(), ".html")] = tpl
		}
	})
	return templates, loadErr
}

func lookup(name string) (*exec.Template, error) {
	tpls, err := load()
	if err != nil {
		return nil, err
	}
	tpl, ok := tpls[name]
	if !ok {
		return nil, fmt.Errorf("view: no template %q", name)
	}
	return tpl, nil
}

// Page holds what the layout shows around the content.
type Page struct {
	Title       string
	CurrentUser string // empty when logged out
	Unread      int
	Flashes     []string
	Query       string
}

// Main renders the layout around content. content is called exactly once;
// nothing is written to w if it or the layout fails.
func Main(w io.Writer, page Page, content func(io.Writer) error) error {
	var body bytes.Buffer
	if err := content(&body); err != nil {
		return err
	}
	layout, err := lookup("layout")
	if err != nil {
		return err
	}
	var out bytes.Buffer
	err = layout.Execute(&out, exec.NewContext(map[string]interface{}{
		"title":        page.Title,
		"current_user": page.CurrentUser,
		"unread":       page.Unread,
		"flashes":      page.Flashes,
		"query":        page.Query,
		"content":      body.String(),
	}))
	if err != nil {
		return fmt.Errorf("view: layout: %w", err)
	}
	_, err = out.WriteTo(w)
	return err
}

// Content returns a content callback rendering the named template with data.
func Content(name string, data map[string]interface{}) func(io.Writer) error {
	return func(w io.Writer) error {
		tpl, err := lookup(name)
		if err != nil {
			return err
		}
		if err := tpl.Execute(w, exec.NewContext(data)); err != nil {
			return fmt.Errorf("view: %s: %w", name, err)
		}
		return nil
	}
}

// PostItem is a post flattened for templates.
type PostItem struct {
	ID         int64
	Username   string
	Avatar     string
	Text       string
	Date       string
	RespondsTo int64
}

// Posts flattens posts for templates. Posts without a loaded author are shown
// without a name.
func Posts(posts []model.Post) []PostItem {
	items := make([]PostItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, NewPostItem(p))
	}
	return items
}

// NewPostItem flattens one post.
func NewPostItem(p model.Post) PostItem {
	item := PostItem{ID: p.ID, Text: p.Text, Date: DateTimeFormat(p.PublishedAt)}
	if p.Author != nil {
		item.Username = p.Author.Username
		item.Avatar = Avatar(*p.Author)
	}
	if p.RespondsTo != nil {
		item.RespondsTo = *p.RespondsTo
	}
	return item
}

// NotificationItem is a notification flattened for templates.
type NotificationItem struct {
	Kind   string
	Actor  string
	Avatar string
	PostID int64
	Text   string
	Date   string
	Unread bool
}

// Notifications flattens notifications for templates.
func Notifications(ns []model.Notification) []NotificationItem {
	items := make([]NotificationItem, 0, len(ns))
	for _, n := range ns {
		item := NotificationItem{
			Kind:   string(n.Kind),
			Actor:  n.Actor.Username,
			Avatar: Avatar(n.Actor),
			Date:   DateTimeFormat(n.Date),
			Unread: n.Unread(),
		}
		if n.Post != nil {
			item.PostID = n.Post.ID
			item.Text = n.Post.Text
		}
		items = append(items, item)
	}
	return items
}

// Usernames returns the usernames of users.
func Usernames(users []model.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

// Avatar returns the avatar path of u, falling back to a gravatar.
func Avatar(u model.User) string {
	if u.AvatarPath != "" {
		return u.AvatarPath
	}
	h := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(u.Email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?d=identicon&s=48", h)
}

// DateTimeFormat formats a publish date the way timelines show it.
func DateTimeFormat(t time.Time) string {
	return t.Format("2006-01-02 @ 15:04")
}
