package disqus

import (
	"bytes"
	"context"
	"strings"
	"time"
)

// CreatedAtLayout is the format create_post expects for created_at, in UTC.
const CreatedAtLayout = "2006-01-02T15:04"

type CreatePostParams struct {
	ThreadID    string
	Message     string
	AuthorName  string
	AuthorEmail string

	ParentPost string
	CreatedAt  time.Time
	AuthorURL  string
	IPAddress  string
}

func (p CreatePostParams) args() Args {
	var args Args
	args.Set("thread_id", p.ThreadID)
	args.Set("message", p.Message)
	args.Set("author_name", p.AuthorName)
	args.Set("author_email", p.AuthorEmail)
	args.Set("parent_post", p.ParentPost)
	if !p.CreatedAt.IsZero() {
		args.Set("created_at", p.CreatedAt.UTC().Format(CreatedAtLayout))
	}
	args.Set("author_url", p.AuthorURL)
	args.Set("ip_address", p.IPAddress)
	return args
}

// UpdateThreadParams holds the thread fields to change. Nil fields are not
// sent and keep their current value on the server.
type UpdateThreadParams struct {
	Title         *string
	Slug          *string
	URL           *string
	AllowComments *bool
}

// CreatePost adds a post to a thread without spam or ban-list checks. It is
// meant for importing existing comments.
func (c *Client) CreatePost(ctx context.Context, params CreatePostParams) (*Post, error) {
	message, err := c.Call(ctx, "create_post", params.args(), true)
	if err != nil {
		return nil, err
	}
	var post Post
	if err := decodeMessage("create_post", message, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetForumList returns every forum owned by the user of the user API key.
func (c *Client) GetForumList(ctx context.Context) ([]Forum, error) {
	message, err := c.Call(ctx, "get_forum_list", Args{}, false)
	if err != nil {
		return nil, err
	}
	var forums []Forum
	if err := decodeMessage("get_forum_list", message, &forums); err != nil {
		return nil, err
	}
	return forums, nil
}

func (c *Client) GetForumAPIKey(ctx context.Context, forumID string) (string, error) {
	var args Args
	args.Set("forum_id", forumID)
	message, err := c.Call(ctx, "get_forum_api_key", args, false)
	if err != nil {
		return "", err
	}
	var key string
	if err := decodeMessage("get_forum_api_key", message, &key); err != nil {
		return "", err
	}
	return key, nil
}

func (c *Client) GetThreadList(ctx context.Context, forumID string) ([]Thread, error) {
	var args Args
	args.Set("forum_id", forumID)
	message, err := c.Call(ctx, "get_thread_list", args, false)
	if err != nil {
		return nil, err
	}
	var threads []Thread
	if err := decodeMessage("get_thread_list", message, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// GetNumPosts returns post counts keyed by thread id. threadIDs may be
// separate ids or a single comma-joined string.
func (c *Client) GetNumPosts(ctx context.Context, threadIDs ...string) (map[string]PostCounts, error) {
	var args Args
	args.Set("thread_ids", strings.Join(threadIDs, ","))
	message, err := c.Call(ctx, "get_num_posts", args, false)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]PostCounts)
	if err := decodeMessage("get_num_posts", message, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// GetThreadByURL returns the thread automatically created for url by the
// embed script, or nil when there is none.
func (c *Client) GetThreadByURL(ctx context.Context, url string) (*Thread, error) {
	var args Args
	args.Set("url", url)
	message, err := c.Call(ctx, "get_thread_by_url", args, false)
	if err != nil {
		return nil, err
	}
	if isNullPayload(message) {
		return nil, nil
	}
	var thread Thread
	if err := decodeMessage("get_thread_by_url", message, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *Client) GetThreadPosts(ctx context.Context, threadID string) ([]Post, error) {
	var args Args
	args.Set("thread_id", threadID)
	message, err := c.Call(ctx, "get_thread_posts", args, false)
	if err != nil {
		return nil, err
	}
	var posts []Post
	if err := decodeMessage("get_thread_posts", message, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ThreadByIdentifier fetches the thread tied to identifier in the forum,
// creating it with title when none exists yet.
func (c *Client) ThreadByIdentifier(ctx context.Context, title string, identifier string) (*ThreadLookup, error) {
	var args Args
	args.Set("title", title)
	args.Set("identifier", identifier)
	message, err := c.Call(ctx, "thread_by_identifier", args, true)
	if err != nil {
		return nil, err
	}
	var lookup ThreadLookup
	if err := decodeMessage("thread_by_identifier", message, &lookup); err != nil {
		return nil, err
	}
	return &lookup, nil
}

// UpdateThread sets the given fields on a thread. AllowComments is always
// sent when non-nil so that comments can be closed.
func (c *Client) UpdateThread(ctx context.Context, threadID string, params UpdateThreadParams) error {
	var args Args
	args.Set("thread_id", threadID)
	args.Set("title", params.Title)
	args.Set("slug", params.Slug)
	args.Set("url", params.URL)
	if params.AllowComments != nil {
		args.Set("allow_comments", Explicit(*params.AllowComments))
	}
	_, err := c.Call(ctx, "update_thread", args, true)
	return err
}

func isNullPayload(message []byte) bool {
	trimmed := bytes.TrimSpace(message)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
