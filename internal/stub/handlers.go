package stub

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openchat/disqus/pkg/disqus"
)

func (s *Server) getForumList(w http.ResponseWriter, r *http.Request) {
	forums, err := s.store.ForumList(arg(r, "user_api_key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, forums)
}

func (s *Server) getForumAPIKey(w http.ResponseWriter, r *http.Request) {
	forumID := arg(r, "forum_id")
	if forumID == "" {
		writeFailure(w, CodeInvalidArgument, "forum_id is required")
		return
	}
	key, err := s.store.ForumAPIKey(arg(r, "user_api_key"), forumID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, key)
}

func (s *Server) getThreadList(w http.ResponseWriter, r *http.Request) {
	forum := forumFromContext(r.Context())
	if forumID := arg(r, "forum_id"); forumID != "" && forumID != string(forum.ID) {
		writeStoreError(w, ErrForumNotFound)
		return
	}
	threads, err := s.store.ThreadList(string(forum.ID))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, threads)
}

func (s *Server) getNumPosts(w http.ResponseWriter, r *http.Request) {
	raw := arg(r, "thread_ids")
	if raw == "" {
		writeFailure(w, CodeInvalidArgument, "thread_ids is required")
		return
	}
	forum := forumFromContext(r.Context())
	writeSuccess(w, s.store.NumPosts(string(forum.ID), strings.Split(raw, ",")))
}

func (s *Server) getThreadByURL(w http.ResponseWriter, r *http.Request) {
	url := arg(r, "url")
	if url == "" {
		writeFailure(w, CodeInvalidArgument, "url is required")
		return
	}
	forum := forumFromContext(r.Context())
	thread := s.store.ThreadByURL(string(forum.ID), url)
	if thread == nil {
		writeSuccess(w, nil)
		return
	}
	writeSuccess(w, thread)
}

func (s *Server) getThreadPosts(w http.ResponseWriter, r *http.Request) {
	forum := forumFromContext(r.Context())
	posts, err := s.store.ThreadPosts(string(forum.ID), arg(r, "thread_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, posts)
}

func (s *Server) threadByIdentifier(w http.ResponseWriter, r *http.Request) {
	forum := forumFromContext(r.Context())
	lookup, err := s.store.ThreadByIdentifier(string(forum.ID), arg(r, "title"), arg(r, "identifier"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if lookup.Created {
		s.logger.Info("stub thread created", "forum_id", forum.ID, "thread_id", lookup.Thread.ID, "identifier", arg(r, "identifier"))
	}
	writeSuccess(w, lookup)
}

func (s *Server) updateThread(w http.ResponseWriter, r *http.Request) {
	args := argumentsFromContext(r.Context())
	var update ThreadUpdate
	if args.Has("title") {
		title := args.Get("title")
		update.Title = &title
	}
	if args.Has("slug") {
		slug := args.Get("slug")
		update.Slug = &slug
	}
	if args.Has("url") {
		url := args.Get("url")
		update.URL = &url
	}
	if args.Has("allow_comments") {
		allow, err := parseFlag(args.Get("allow_comments"))
		if err != nil {
			writeFailure(w, CodeInvalidArgument, err.Error())
			return
		}
		update.AllowComments = &allow
	}

	forum := forumFromContext(r.Context())
	if _, err := s.store.UpdateThread(string(forum.ID), arg(r, "thread_id"), update); err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, map[string]any{})
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	createdAt := arg(r, "created_at")
	if createdAt != "" {
		if _, err := time.Parse(disqus.CreatedAtLayout, createdAt); err != nil {
			writeFailure(w, CodeInvalidArgument, fmt.Sprintf("created_at must match %s", disqus.CreatedAtLayout))
			return
		}
	}

	forum := forumFromContext(r.Context())
	post, err := s.store.CreatePost(string(forum.ID), CreatePostInput{
		ThreadID:    arg(r, "thread_id"),
		Message:     arg(r, "message"),
		AuthorName:  arg(r, "author_name"),
		AuthorEmail: arg(r, "author_email"),
		AuthorURL:   arg(r, "author_url"),
		ParentPost:  arg(r, "parent_post"),
		CreatedAt:   createdAt,
		IPAddress:   arg(r, "ip_address"),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, post)
}

func parseFlag(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no", "":
		return false, nil
	default:
		if n, err := strconv.Atoi(raw); err == nil {
			return n != 0, nil
		}
		return false, fmt.Errorf("allow_comments must be 0 or 1, got %q", raw)
	}
}
