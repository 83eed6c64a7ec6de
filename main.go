package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"

	"github.com/twirper/twirper/internal/config"
	"github.com/twirper/twirper/internal/logger"
	"github.com/twirper/twirper/model"
)

type app struct {
	store    *model.Store
	sessions *sessions.CookieStore
	perPage  int
}

func newApp(store *model.Store, cfg *config.Config) *app {
	return &app{
		store:    store,
		sessions: newSessionStore(cfg.SecretKey),
		perPage:  cfg.PerPage,
	}
}

func (a *app) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/", a.timelineHandler).Methods(http.MethodGet)
	r.HandleFunc("/public", a.publicTimelineHandler).Methods(http.MethodGet)
	r.HandleFunc("/login", a.loginHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/register", a.registerHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/logout", a.logoutHandler).Methods(http.MethodGet)
	r.HandleFunc("/add_post", a.addPostHandler).Methods(http.MethodPost)
	r.HandleFunc("/search", a.searchHandler).Methods(http.MethodGet)
	r.HandleFunc("/notifications", a.notificationsHandler).Methods(http.MethodGet)
	r.HandleFunc("/hashtag/{tag}", a.hashtagHandler).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}", a.postHandler).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}/like", a.likeHandler).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}/unlike", a.unlikeHandler).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}/delete", a.deletePostHandler).Methods(http.MethodPost)
	r.HandleFunc("/{username}/follow", a.followHandler).Methods(http.MethodGet)
	r.HandleFunc("/{username}/unfollow", a.unfollowHandler).Methods(http.MethodGet)
	r.HandleFunc("/{username}", a.userTimelineHandler).Methods(http.MethodGet)
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx := context.Background()
	store, err := model.Open(ctx, cfg.DBDriver, cfg.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newApp(store, cfg).router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("driver", cfg.DBDriver).Msg("Listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
