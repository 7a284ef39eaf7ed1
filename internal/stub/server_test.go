package stub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openchat/disqus/internal/app"
	"github.com/openchat/disqus/internal/realtime"
	"github.com/openchat/disqus/pkg/disqus"
)

func newTestStub(t *testing.T) (*Server, *httptest.Server, *disqus.Client) {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.UserAPIKey = "user-test"
	cfg.ForumAPIKey = "forum-test"
	cfg.StubForumName = "testforum"
	cfg.Environment = "test"

	server := NewServer(cfg, slog.Default())
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	client := disqus.NewClient(cfg.UserAPIKey, cfg.ForumAPIKey, disqus.WithBaseURL(ts.URL+"/api/"))
	return server, ts, client
}

func TestThreadByIdentifierIsIdempotent(t *testing.T) {
	_, _, client := newTestStub(t)
	ctx := context.Background()

	first, err := client.ThreadByIdentifier(ctx, "Hello World", "node/1")
	if err != nil {
		t.Fatalf("first thread_by_identifier failed: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first call to create the thread")
	}
	second, err := client.ThreadByIdentifier(ctx, "Hello World", "node/1")
	if err != nil {
		t.Fatalf("second thread_by_identifier failed: %v", err)
	}
	if second.Created {
		t.Fatalf("expected second call to reuse the thread")
	}
	if first.Thread.ID != second.Thread.ID {
		t.Fatalf("expected same thread id, got %s and %s", first.Thread.ID, second.Thread.ID)
	}
	if first.Thread.Slug != "hello_world" {
		t.Fatalf("unexpected slug %q", first.Thread.Slug)
	}

	threads, err := client.GetThreadList(ctx, string(first.Thread.Forum))
	if err != nil {
		t.Fatalf("get_thread_list failed: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("expected exactly one thread, got %d", len(threads))
	}
}

func TestForumListAndAPIKey(t *testing.T) {
	_, _, client := newTestStub(t)
	ctx := context.Background()

	forums, err := client.GetForumList(ctx)
	if err != nil {
		t.Fatalf("get_forum_list failed: %v", err)
	}
	if len(forums) != 1 || forums[0].Shortname != "testforum" {
		t.Fatalf("unexpected forums %+v", forums)
	}
	key, err := client.GetForumAPIKey(ctx, string(forums[0].ID))
	if err != nil {
		t.Fatalf("get_forum_api_key failed: %v", err)
	}
	if key != "forum-test" {
		t.Fatalf("expected seeded forum key, got %q", key)
	}

	_, err = client.GetForumAPIKey(ctx, "does-not-exist")
	apiErr, ok := disqus.IsAPIError(err)
	if !ok || apiErr.Code != CodeObjectNotFound {
		t.Fatalf("expected object-not-found failure, got %v", err)
	}
}

func TestPostsAndCounts(t *testing.T) {
	_, _, client := newTestStub(t)
	ctx := context.Background()

	lookup, err := client.ThreadByIdentifier(ctx, "Counting", "node/2")
	if err != nil {
		t.Fatalf("thread_by_identifier failed: %v", err)
	}
	threadID := string(lookup.Thread.ID)

	root, err := client.CreatePost(ctx, disqus.CreatePostParams{
		ThreadID:    threadID,
		Message:     "first!",
		AuthorName:  "Ann",
		AuthorEmail: "Ann@Example.com",
	})
	if err != nil {
		t.Fatalf("create_post failed: %v", err)
	}
	if root.AnonymousAuthor == nil || root.AnonymousAuthor.EmailHash == "" {
		t.Fatalf("expected anonymous author with email hash, got %+v", root.AnonymousAuthor)
	}
	reply, err := client.CreatePost(ctx, disqus.CreatePostParams{
		ThreadID:    threadID,
		Message:     "reply",
		AuthorName:  "Bob",
		AuthorEmail: "bob@example.com",
		ParentPost:  string(root.ID),
		CreatedAt:   time.Date(2010, 1, 2, 3, 4, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create_post reply failed: %v", err)
	}
	if reply.ParentPost != root.ID || reply.CreatedAt != "2010-01-02T03:04" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	posts, err := client.GetThreadPosts(ctx, threadID)
	if err != nil {
		t.Fatalf("get_thread_posts failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	counts, err := client.GetNumPosts(ctx, threadID, "unknown")
	if err != nil {
		t.Fatalf("get_num_posts failed: %v", err)
	}
	if counts[threadID] != (disqus.PostCounts{Visible: 2, Total: 2}) {
		t.Fatalf("unexpected counts %+v", counts[threadID])
	}
	if _, ok := counts["unknown"]; ok {
		t.Fatalf("expected unknown thread to be left out")
	}

	_, err = client.CreatePost(ctx, disqus.CreatePostParams{ThreadID: threadID, Message: "x", AuthorName: "A", AuthorEmail: "a@b.c", ParentPost: "404"})
	if apiErr, ok := disqus.IsAPIError(err); !ok || apiErr.Code != CodeObjectNotFound {
		t.Fatalf("expected missing parent failure, got %v", err)
	}
}

func TestUpdateThreadLeavesOmittedFieldsUnchanged(t *testing.T) {
	_, _, client := newTestStub(t)
	ctx := context.Background()

	lookup, err := client.ThreadByIdentifier(ctx, "Original", "node/3")
	if err != nil {
		t.Fatalf("thread_by_identifier failed: %v", err)
	}
	threadID := string(lookup.Thread.ID)

	url := "http://example.com/node/3"
	if err := client.UpdateThread(ctx, threadID, disqus.UpdateThreadParams{URL: &url}); err != nil {
		t.Fatalf("update_thread failed: %v", err)
	}
	thread, err := client.GetThreadByURL(ctx, url)
	if err != nil {
		t.Fatalf("get_thread_by_url failed: %v", err)
	}
	if thread == nil {
		t.Fatalf("expected thread for %s", url)
	}
	if thread.Title != "Original" || thread.Slug != "original" || !thread.AllowComments {
		t.Fatalf("expected untouched fields, got %+v", thread)
	}

	closed := false
	if err := client.UpdateThread(ctx, threadID, disqus.UpdateThreadParams{AllowComments: &closed}); err != nil {
		t.Fatalf("close thread failed: %v", err)
	}
	thread, err = client.GetThreadByURL(ctx, url)
	if err != nil {
		t.Fatalf("get_thread_by_url failed: %v", err)
	}
	if thread.AllowComments {
		t.Fatalf("expected comments closed")
	}

	missing, err := client.GetThreadByURL(ctx, "http://example.com/none")
	if err != nil {
		t.Fatalf("get_thread_by_url failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil thread for unknown url")
	}
}

func TestInvalidCredentialsFail(t *testing.T) {
	_, ts, _ := newTestStub(t)
	ctx := context.Background()

	badUser := disqus.NewClient("nope", "forum-test", disqus.WithBaseURL(ts.URL+"/api/"))
	_, err := badUser.GetForumList(ctx)
	if apiErr, ok := disqus.IsAPIError(err); !ok || apiErr.Code != CodeInvalidUserKey {
		t.Fatalf("expected invalid user key failure, got %v", err)
	}

	badForum := disqus.NewClient("user-test", "nope", disqus.WithBaseURL(ts.URL+"/api/"))
	_, err = badForum.GetThreadList(ctx, "1")
	if apiErr, ok := disqus.IsAPIError(err); !ok || apiErr.Code != CodeInvalidForumKey {
		t.Fatalf("expected invalid forum key failure, got %v", err)
	}
}

func TestUnknownMethodIsTransportFailure(t *testing.T) {
	_, _, client := newTestStub(t)

	_, err := client.Call(context.Background(), "no_such_method", disqus.Args{}, false)
	apiErr, ok := disqus.IsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != http.StatusNotFound || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got code=%d status=%d", apiErr.Code, apiErr.StatusCode)
	}
}

func TestHealthzReportsBuild(t *testing.T) {
	_, ts, _ := newTestStub(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status: %d body=%s", resp.StatusCode, string(body))
	}
	var payload struct {
		Status string        `json:"status"`
		Build  app.BuildInfo `json:"build"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Status != "ok" || payload.Build.Version == "" {
		t.Fatalf("unexpected healthz payload %+v", payload)
	}
}

func TestCreatePostIsBroadcastToSubscribers(t *testing.T) {
	server, ts, client := newTestStub(t)
	ctx := context.Background()

	lookup, err := client.ThreadByIdentifier(ctx, "Live", "node/4")
	if err != nil {
		t.Fatalf("thread_by_identifier failed: %v", err)
	}
	threadID := string(lookup.Thread.ID)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/realtime?thread_id=" + threadID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial realtime: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.Hub().Subscribers(threadID) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := client.CreatePost(ctx, disqus.CreatePostParams{ThreadID: threadID, Message: "live!", AuthorName: "Ann", AuthorEmail: "ann@example.com"}); err != nil {
		t.Fatalf("create_post failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope realtime.Envelope
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("read realtime event: %v", err)
	}
	if envelope.Type != realtime.EventPostCreated {
		t.Fatalf("expected %s, got %s", realtime.EventPostCreated, envelope.Type)
	}
}
