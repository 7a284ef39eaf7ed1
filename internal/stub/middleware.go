package stub

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/openchat/disqus/pkg/disqus"
)

type argumentsContextKey struct{}
type forumContextKey struct{}

// withArguments collects call arguments from the query string on GET and
// from the form body on POST.
func withArguments(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		args := r.URL.Query()
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				writeFailure(w, CodeInvalidArgument, "invalid form body")
				return
			}
			args = r.PostForm
		}
		ctx := context.WithValue(r.Context(), argumentsContextKey{}, args)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func argumentsFromContext(ctx context.Context) url.Values {
	args, ok := ctx.Value(argumentsContextKey{}).(url.Values)
	if !ok {
		return url.Values{}
	}
	return args
}

func arg(r *http.Request, name string) string {
	return strings.TrimSpace(argumentsFromContext(r.Context()).Get(name))
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.store.HasUser(arg(r, "user_api_key")) {
			writeFailure(w, CodeInvalidUserKey, ErrUserNotFound.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireForum(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forum, err := s.store.ForumByKey(arg(r, "forum_api_key"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), forumContextKey{}, forum)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func forumFromContext(ctx context.Context) disqus.Forum {
	forum, _ := ctx.Value(forumContextKey{}).(disqus.Forum)
	return forum
}
