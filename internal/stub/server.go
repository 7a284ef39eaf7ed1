// Package stub serves a stateful, in-memory imitation of the Disqus v1 API
// for local development and tests.
package stub

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openchat/disqus/internal/app"
	"github.com/openchat/disqus/internal/realtime"
)

type Server struct {
	cfg      app.Config
	logger   *slog.Logger
	build    app.BuildInfo
	store    *Store
	realtime *realtime.Hub
}

// NewServer builds a stub seeded with the configured user and forum keys.
func NewServer(cfg app.Config, logger *slog.Logger) *Server {
	store := NewStore()
	hub := realtime.NewHub(logger)
	store.SetBroadcaster(hub)

	if userKey := strings.TrimSpace(cfg.UserAPIKey); userKey != "" {
		store.AddUser(userKey)
		forum, forumKey := store.AddForum(userKey, cfg.StubForumName, cfg.ForumAPIKey)
		logger.Info("stub forum seeded", "forum_id", forum.ID, "shortname", forum.Shortname, "forum_api_key", forumKey)
	}

	return &Server{
		cfg:      cfg,
		logger:   logger,
		build:    app.CurrentBuildInfo(),
		store:    store,
		realtime: hub,
	}
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Hub() *realtime.Hub {
	return s.realtime
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	if !s.cfg.IsProduction() {
		router.Use(middleware.Logger)
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": s.build})
	})
	router.Get("/realtime", s.realtime.ServeWS)

	router.Route("/api", func(api chi.Router) {
		api.Use(withArguments)

		api.Group(func(user chi.Router) {
			user.Use(s.requireUser)
			user.Get("/get_forum_list/", s.getForumList)
			user.Get("/get_forum_api_key/", s.getForumAPIKey)
		})

		api.Group(func(forum chi.Router) {
			forum.Use(s.requireForum)
			forum.Post("/create_post/", s.createPost)
			forum.Get("/get_thread_list/", s.getThreadList)
			forum.Get("/get_num_posts/", s.getNumPosts)
			forum.Get("/get_thread_by_url/", s.getThreadByURL)
			forum.Get("/get_thread_posts/", s.getThreadPosts)
			forum.Post("/thread_by_identifier/", s.threadByIdentifier)
			forum.Post("/update_thread/", s.updateThread)
		})
	})

	return router
}
