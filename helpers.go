package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/twirper/twirper/model"
	"github.com/twirper/twirper/view"
)

const sessionName = "session"

// --- Session helpers ---

func newSessionStore(secret string) *sessions.CookieStore {
	s := sessions.NewCookieStore([]byte(secret))
	s.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return s
}

func (a *app) currentUser(r *http.Request) *model.User {
	session, _ := a.sessions.Get(r, sessionName)
	userID, ok := session.Values["user_id"].(int64)
	if !ok {
		return nil
	}
	user, err := a.store.GetUser(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			zerolog.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("load session user")
		}
		return nil
	}
	return user
}

func (a *app) login(w http.ResponseWriter, r *http.Request, userID int64) {
	session, _ := a.sessions.Get(r, sessionName)
	session.Values["user_id"] = userID
	session.Save(r, w)
}

func (a *app) addFlash(w http.ResponseWriter, r *http.Request, message string) {
	session, _ := a.sessions.Get(r, sessionName)
	session.AddFlash(message)
	session.Save(r, w)
}

func (a *app) flashes(w http.ResponseWriter, r *http.Request) []string {
	session, _ := a.sessions.Get(r, sessionName)
	var messages []string
	for _, f := range session.Flashes() {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	session.Save(r, w)
	return messages
}

// --- Rendering helpers ---

func (a *app) render(w http.ResponseWriter, r *http.Request, title, name string, data map[string]interface{}) {
	page := view.Page{
		Title: title,
		Query: r.URL.Query().Get("q"),
	}
	if user := a.currentUser(r); user != nil {
		page.CurrentUser = user.Username
		unread, err := a.store.UnreadNotifications(r.Context(), user.ID)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("count unread notifications")
		}
		page.Unread = unread
	}
	page.Flashes = a.flashes(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.Main(w, page, view.Content(name, data)); err != nil {
		a.serverError(w, r, err)
	}
}

func (a *app) serverError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func postIDVar(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

// --- Request logging ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger tags every request with an id, stores a logger carrying it
// in the request context and writes one access line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		l := log.With().Str("request_id", requestID).Logger()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(l.WithContext(r.Context())))

		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
