package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openchat/disqus/internal/app"
	"github.com/openchat/disqus/pkg/disqus"
)

type options struct {
	apiURL      string
	userAPIKey  string
	forumAPIKey string
	timeout     time.Duration
	verbose     bool
	command     string
	args        []string
}

const usage = `usage: disqusctl [flags] <command> [args]

commands:
  forums                                 list forums owned by the user key
  forum-key FORUM_ID                     print the forum api key
  threads FORUM_ID                       list threads of a forum
  num-posts THREAD_ID...                 visible and total post counts
  thread-by-url URL                      find the thread created for URL
  posts THREAD_ID                        list posts of a thread
  create-post [post flags]               import a post
  thread-by-identifier TITLE IDENTIFIER  fetch or create a thread
  update-thread [update flags]           change thread fields
  version                                print build information
`

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(2)
	}
	opts, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid flags:", err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	level := cfg.SlogLevel()
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	build := app.CurrentBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := disqus.NewClient(opts.userAPIKey, opts.forumAPIKey,
		disqus.WithBaseURL(opts.apiURL),
		disqus.WithTimeout(opts.timeout),
		disqus.WithLogger(logger),
		disqus.WithUserAgent(build.UserAgent()),
	)

	result, err := run(ctx, client, build, opts)
	if err != nil {
		if apiErr, ok := disqus.IsAPIError(err); ok {
			logger.Error("disqus call failed", "command", opts.command, "code", apiErr.Code, "status", apiErr.StatusCode, "error", apiErr.Message)
		} else {
			logger.Error("command failed", "command", opts.command, "error", err)
		}
		os.Exit(1)
	}
	if err := printJSON(os.Stdout, result); err != nil {
		logger.Error("write output failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(cfg app.Config, argv []string) (options, error) {
	var opts options
	var timeoutSeconds int

	fs := flag.NewFlagSet("disqusctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.apiURL, "api-url", cfg.APIURL, "Disqus API base URL (DISQUS_API_URL)")
	fs.StringVar(&opts.userAPIKey, "user-key", cfg.UserAPIKey, "user API key (DISQUS_USER_API_KEY)")
	fs.StringVar(&opts.forumAPIKey, "forum-key", cfg.ForumAPIKey, "forum API key (DISQUS_FORUM_API_KEY)")
	fs.IntVar(&timeoutSeconds, "timeout", cfg.TimeoutSeconds, "request timeout in seconds")
	fs.BoolVar(&opts.verbose, "v", false, "log each API call")
	if err := fs.Parse(argv); err != nil {
		return opts, err
	}

	if timeoutSeconds <= 0 || timeoutSeconds > 300 {
		return opts, errors.New("--timeout must be between 1 and 300")
	}
	opts.timeout = time.Duration(timeoutSeconds) * time.Second

	opts.apiURL = strings.TrimSpace(opts.apiURL)
	if _, err := url.ParseRequestURI(opts.apiURL); err != nil {
		return opts, fmt.Errorf("invalid --api-url: %w", err)
	}
	if !strings.HasSuffix(opts.apiURL, "/") {
		opts.apiURL += "/"
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return opts, errors.New("a command is required")
	}
	opts.command = rest[0]
	opts.args = rest[1:]
	return opts, nil
}

func run(ctx context.Context, client *disqus.Client, build app.BuildInfo, opts options) (any, error) {
	args := opts.args
	switch opts.command {
	case "version":
		return build, nil
	case "forums":
		return client.GetForumList(ctx)
	case "forum-key":
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		return client.GetForumAPIKey(ctx, args[0])
	case "threads":
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		return client.GetThreadList(ctx, args[0])
	case "num-posts":
		if len(args) == 0 {
			return nil, errors.New("num-posts needs at least one thread id")
		}
		return client.GetNumPosts(ctx, args...)
	case "thread-by-url":
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		return client.GetThreadByURL(ctx, args[0])
	case "posts":
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		return client.GetThreadPosts(ctx, args[0])
	case "thread-by-identifier":
		if err := wantArgs(args, 2); err != nil {
			return nil, err
		}
		return client.ThreadByIdentifier(ctx, args[0], args[1])
	case "create-post":
		params, err := parseCreatePost(args)
		if err != nil {
			return nil, err
		}
		return client.CreatePost(ctx, params)
	case "update-thread":
		threadID, params, err := parseUpdateThread(args)
		if err != nil {
			return nil, err
		}
		if err := client.UpdateThread(ctx, threadID, params); err != nil {
			return nil, err
		}
		return map[string]any{"thread_id": threadID, "updated": true}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", opts.command)
	}
}

func parseCreatePost(argv []string) (disqus.CreatePostParams, error) {
	var params disqus.CreatePostParams
	var createdAt string

	fs := flag.NewFlagSet("create-post", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&params.ThreadID, "thread", "", "thread id (required)")
	fs.StringVar(&params.Message, "message", "", "post body (required)")
	fs.StringVar(&params.AuthorName, "name", "", "author name (required)")
	fs.StringVar(&params.AuthorEmail, "email", "", "author email (required)")
	fs.StringVar(&params.ParentPost, "parent", "", "parent post id")
	fs.StringVar(&createdAt, "created-at", "", "UTC creation time, "+disqus.CreatedAtLayout)
	fs.StringVar(&params.AuthorURL, "url", "", "author homepage")
	fs.StringVar(&params.IPAddress, "ip", "", "author IP address")
	if err := fs.Parse(argv); err != nil {
		return params, err
	}

	for flagName, value := range map[string]string{
		"--thread":  params.ThreadID,
		"--message": params.Message,
		"--name":    params.AuthorName,
		"--email":   params.AuthorEmail,
	} {
		if strings.TrimSpace(value) == "" {
			return params, fmt.Errorf("%s is required", flagName)
		}
	}
	if createdAt != "" {
		parsed, err := time.Parse(disqus.CreatedAtLayout, createdAt)
		if err != nil {
			return params, fmt.Errorf("invalid --created-at: %w", err)
		}
		params.CreatedAt = parsed
	}
	return params, nil
}

func parseUpdateThread(argv []string) (string, disqus.UpdateThreadParams, error) {
	var params disqus.UpdateThreadParams
	var threadID string

	fs := flag.NewFlagSet("update-thread", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&threadID, "thread", "", "thread id (required)")
	fs.Func("title", "new title", func(v string) error {
		params.Title = &v
		return nil
	})
	fs.Func("slug", "new slug", func(v string) error {
		params.Slug = &v
		return nil
	})
	fs.Func("url", "new url", func(v string) error {
		params.URL = &v
		return nil
	})
	fs.Func("allow-comments", "open (true) or close (false) the thread", func(v string) error {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		params.AllowComments = &allow
		return nil
	})
	if err := fs.Parse(argv); err != nil {
		return "", params, err
	}
	if strings.TrimSpace(threadID) == "" {
		return "", params, errors.New("--thread is required")
	}
	return threadID, params, nil
}

func wantArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
