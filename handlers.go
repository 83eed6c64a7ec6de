package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/twirper/twirper/model"
	"github.com/twirper/twirper/view"
)

// names a user page cannot be reached under
var reservedNames = map[string]bool{
	"public": true, "login": true, "logout": true, "register": true, "add_post": true,
	"search": true, "notifications": true, "post": true, "hashtag": true,
}

// GET /: personal timeline (redirect to /public if not logged in)
func (a *app) timelineHandler(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/public", http.StatusFound)
		return
	}

	posts, err := a.store.Timeline(r.Context(), user.ID, a.perPage)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	popular, err := a.store.PopularHashtags(r.Context(), 10)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	a.render(w, r, "My Timeline", "timeline", map[string]interface{}{
		"heading": "My Timeline",
		"posts":   view.Posts(posts),
		"compose": user.Username,
		"popular": popular,
	})
}

// GET /public: public timeline
func (a *app) publicTimelineHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := a.store.PublicTimeline(r.Context(), a.perPage)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	a.render(w, r, "Public Timeline", "timeline", map[string]interface{}{
		"heading": "Public Timeline",
		"posts":   view.Posts(posts),
	})
}

// GET /{username}: user timeline
func (a *app) userTimelineHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := mux.Vars(r)["username"]

	profileUser, err := a.store.GetUserByUsername(ctx, username)
	if errors.Is(err, model.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	currentUser := a.currentUser(r)
	followed := false
	if currentUser != nil {
		followed, err = a.store.IsFollowing(ctx, currentUser.ID, profileUser.ID)
		if err != nil {
			a.serverError(w, r, err)
			return
		}
	}
	stats, err := a.store.UserStats(ctx, profileUser.ID)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	posts, err := a.store.ListUserPosts(ctx, profileUser.ID, model.OrderDesc)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	a.render(w, r, profileUser.Username+"'s Timeline", "timeline", map[string]interface{}{
		"heading":   profileUser.Username + "'s Timeline",
		"posts":     view.Posts(posts),
		"profile":   profileUser.Username,
		"stats":     stats,
		"followed":  followed,
		"logged_in": currentUser != nil,
		"is_self":   currentUser != nil && currentUser.ID == profileUser.ID,
	})
}

// GET /{username}/follow
func (a *app) followHandler(w http.ResponseWriter, r *http.Request) {
	a.followEdge(w, r, true)
}

// GET /{username}/unfollow
func (a *app) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	a.followEdge(w, r, false)
}

func (a *app) followEdge(w http.ResponseWriter, r *http.Request, follow bool) {
	user := a.currentUser(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	username := mux.Vars(r)["username"]
	whom, err := a.store.GetUserByUsername(r.Context(), username)
	if errors.Is(err, model.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	if follow {
		err = a.store.Follow(r.Context(), user.ID, whom.ID)
		switch {
		case errors.Is(err, model.ErrInvalid):
			a.addFlash(w, r, "You cannot follow yourself")
		case err != nil:
			a.serverError(w, r, err)
			return
		default:
			a.addFlash(w, r, fmt.Sprintf("You are now following \"%s\"", username))
		}
	} else {
		if err := a.store.Unfollow(r.Context(), user.ID, whom.ID); err != nil {
			a.serverError(w, r, err)
			return
		}
		a.addFlash(w, r, fmt.Sprintf("You are no longer following \"%s\"", username))
	}
	http.Redirect(w, r, "/"+username, http.StatusFound)
}

// POST /add_post
func (a *app) addPostHandler(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var respondsTo *int64
	if v := r.FormValue("responds_to"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		respondsTo = &id
	}

	text := strings.TrimSpace(r.FormValue("text"))
	if text != "" {
		id, err := a.store.CreatePost(r.Context(), user.ID, text, respondsTo)
		if err != nil {
			a.serverError(w, r, err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Int64("post_id", id).Int64("author_id", user.ID).Msg("post created")
		a.addFlash(w, r, "Your message was recorded")
	}

	if respondsTo != nil {
		http.Redirect(w, r, fmt.Sprintf("/post/%d", *respondsTo), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// GET /post/{id}
func (a *app) postHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := postIDVar(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	detail, err := a.store.GetPostDetail(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	stats, err := a.store.PostStats(ctx, id)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	responses, err := a.store.Responses(ctx, id)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"post":      view.NewPostItem(detail.Post),
		"stats":     stats,
		"hashtags":  detail.Hashtags,
		"mentioned": view.Usernames(detail.Mentioned),
		"likers":    view.Usernames(detail.Likes),
		"responses": view.Posts(responses),
	}
	if detail.Parent != nil {
		data["parent"] = view.NewPostItem(*detail.Parent)
	}
	if user := a.currentUser(r); user != nil {
		liked, err := a.store.HasLiked(ctx, user.ID, id)
		if err != nil {
			a.serverError(w, r, err)
			return
		}
		data["logged_in"] = true
		data["liked"] = liked
		data["is_author"] = user.ID == detail.AuthorID
	}

	a.render(w, r, "Post", "post", data)
}

// GET /post/{id}/like
func (a *app) likeHandler(w http.ResponseWriter, r *http.Request) {
	a.likeEdge(w, r, true)
}

// GET /post/{id}/unlike
func (a *app) unlikeHandler(w http.ResponseWriter, r *http.Request) {
	a.likeEdge(w, r, false)
}

func (a *app) likeEdge(w http.ResponseWriter, r *http.Request, like bool) {
	user := a.currentUser(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, ok := postIDVar(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := a.store.GetPost(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		a.serverError(w, r, err)
		return
	}

	var err error
	if like {
		err = a.store.Like(r.Context(), user.ID, id)
	} else {
		err = a.store.Unlike(r.Context(), user.ID, id)
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/post/%d", id), http.StatusFound)
}

// POST /post/{id}/delete
func (a *app) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, ok := postIDVar(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	post, err := a.store.GetPost(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	if post.AuthorID != user.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := a.store.DeletePost(r.Context(), id); err != nil {
		a.serverError(w, r, err)
		return
	}
	a.addFlash(w, r, "Your message was deleted")
	http.Redirect(w, r, "/", http.StatusFound)
}

// GET /hashtag/{tag}
func (a *app) hashtagHandler(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	posts, err := a.store.HashtagPosts(r.Context(), tag)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	related, err := a.store.RelatedHashtags(r.Context(), tag, 10)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	a.render(w, r, "#"+tag, "timeline", map[string]interface{}{
		"heading": "#" + tag,
		"posts":   view.Posts(posts),
		"related": related,
	})
}

// GET /search?q=
func (a *app) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		users []model.User
		posts []model.Post
		err   error
	)
	if q != "" {
		if users, err = a.store.SearchUsers(r.Context(), q); err != nil {
			a.serverError(w, r, err)
			return
		}
		if posts, err = a.store.SearchPosts(r.Context(), q); err != nil {
			a.serverError(w, r, err)
			return
		}
	}

	a.render(w, r, "Search", "search", map[string]interface{}{
		"query": q,
		"users": view.Usernames(users),
		"posts": view.Posts(posts),
	})
}

// GET /notifications: listed notifications are marked as seen once shown
func (a *app) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	notifications, err := a.store.Notifications(r.Context(), user.ID)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	a.render(w, r, "Notifications", "notifications", map[string]interface{}{
		"notifications": view.Notifications(notifications),
	})

	for _, n := range notifications {
		if !n.Unread() {
			continue
		}
		if err := a.store.MarkSeen(r.Context(), user.ID, n); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("kind", string(n.Kind)).Msg("mark notification seen")
		}
	}
}

// GET + POST /login
func (a *app) loginHandler(w http.ResponseWriter, r *http.Request) {
	if a.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	errorMsg := ""
	username := r.FormValue("username")
	if r.Method == http.MethodPost {
		password := r.FormValue("password")

		_, err := a.store.GetUserByUsername(r.Context(), username)
		switch {
		case errors.Is(err, model.ErrNotFound):
			errorMsg = "Invalid username"
		case err != nil:
			a.serverError(w, r, err)
			return
		default:
			u, err := a.store.CheckAuth(r.Context(), username, password)
			if errors.Is(err, model.ErrNotFound) {
				errorMsg = "Invalid password"
				break
			}
			if err != nil {
				a.serverError(w, r, err)
				return
			}
			a.login(w, r, u.ID)
			a.addFlash(w, r, "You were logged in")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}

	a.render(w, r, "Sign In", "login", map[string]interface{}{
		"error":    errorMsg,
		"username": username,
	})
}

// GET + POST /register
func (a *app) registerHandler(w http.ResponseWriter, r *http.Request) {
	if a.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	errorMsg := ""
	username := r.FormValue("username")
	name := r.FormValue("name")
	email := r.FormValue("email")
	if r.Method == http.MethodPost {
		password := r.FormValue("password")
		password2 := r.FormValue("password2")

		if username == "" {
			errorMsg = "You have to enter a username"
		} else if strings.ContainsAny(username, " \t\n@#/") || reservedNames[username] {
			errorMsg = "This username is not allowed"
		} else if email == "" || !strings.Contains(email, "@") {
			errorMsg = "You have to enter a valid email address"
		} else if password == "" {
			errorMsg = "You have to enter a password"
		} else if password != password2 {
			errorMsg = "The two passwords do not match"
		} else {
			_, err := a.store.CreateUser(r.Context(), model.NewUser{
				Username: username,
				Name:     name,
				Password: password,
				Email:    email,
			})
			switch {
			case errors.Is(err, model.ErrConflict):
				errorMsg = "The username is already taken"
			case err != nil:
				a.serverError(w, r, err)
				return
			default:
				a.addFlash(w, r, "You were successfully registered and can login now")
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
		}
	}

	a.render(w, r, "Sign Up", "register", map[string]interface{}{
		"error":    errorMsg,
		"username": username,
		"name":     name,
		"email":    email,
	})
}

// GET /logout
func (a *app) logoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := a.sessions.Get(r, sessionName)
	delete(session.Values, "user_id")
	session.Save(r, w)
	a.addFlash(w, r, "You were logged out")
	http.Redirect(w, r, "/public", http.StatusFound)
}
