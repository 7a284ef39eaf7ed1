// Package disqus is a client for the Disqus v1 web API.
//
// Every remote method is reached through Call, which merges the session
// credentials into the arguments, sends a single GET or form-encoded POST and
// unwraps the {succeeded, message, code} envelope.
package disqus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "http://disqus.com/api/"
	DefaultTimeout = 5 * time.Second

	argUserAPIKey  = "user_api_key"
	argForumAPIKey = "forum_api_key"
)

// Client holds the credentials of one API consumer. The exported fields may
// be changed between calls; they must not be changed while calls are in
// flight.
type Client struct {
	UserAPIKey  string
	ForumAPIKey string
	BaseURL     string

	rest   *resty.Client
	logger *slog.Logger
}

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

type Option func(*clientOptions)

func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// NewClient returns a client for the given user and forum API keys. Either
// key may be empty. The base URL is stored verbatim; method names are
// appended to it directly.
func NewClient(userAPIKey string, forumAPIKey string, opts ...Option) *Client {
	options := clientOptions{
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		userAgent: "disqus-go",
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// resty mutates the client it wraps, so a caller's client is copied.
	var rest *resty.Client
	if options.httpClient != nil {
		httpClient := *options.httpClient
		rest = resty.NewWithClient(&httpClient)
	} else {
		rest = resty.New()
	}
	rest.SetCookieJar(nil)
	rest.SetTimeout(options.timeout)
	rest.SetRetryCount(0)
	rest.SetHeader("User-Agent", options.userAgent)
	rest.SetHeader("Accept", "application/json")
	rest.SetLogger(restyLogger{logger: options.logger})

	return &Client{
		UserAPIKey:  userAPIKey,
		ForumAPIKey: forumAPIKey,
		BaseURL:     options.baseURL,
		rest:        rest,
		logger:      options.logger,
	}
}

// Call invokes a remote method and returns the raw "message" payload of a
// successful envelope. Session credentials are added unless args already
// carries a non-nil value for them. The call is attempted once.
func (c *Client) Call(ctx context.Context, method string, args Args, post bool) (json.RawMessage, error) {
	args = c.withCredentials(args)
	encoded := args.Encode()
	endpoint := c.BaseURL + method + "/"

	req := c.rest.R().SetContext(ctx)
	httpMethod := http.MethodGet
	if post {
		httpMethod = http.MethodPost
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		req.SetBody(encoded)
	} else {
		endpoint += "?" + encoded
	}

	started := time.Now()
	resp, err := req.Execute(httpMethod, endpoint)
	if err != nil {
		c.logger.Warn("disqus call failed", "method", method, "http_method", httpMethod, "error", err)
		return nil, &APIError{
			Method:  method,
			Message: transportErrorMessage,
			Err:     err,
		}
	}
	c.logger.Debug("disqus call",
		"method", method,
		"http_method", httpMethod,
		"status", resp.StatusCode(),
		"duration", time.Since(started),
	)

	return interpret(method, resp.StatusCode(), resp.Header(), resp.Body())
}

func (c *Client) withCredentials(args Args) Args {
	args = args.Clone()
	if !args.IsSet(argUserAPIKey) {
		args.Set(argUserAPIKey, c.UserAPIKey)
	}
	if !args.IsSet(argForumAPIKey) {
		args.Set(argForumAPIKey, c.ForumAPIKey)
	}
	return args
}

func interpret(method string, status int, header http.Header, body []byte) (json.RawMessage, error) {
	if status != http.StatusOK {
		return nil, &APIError{
			Method:     method,
			Message:    transportErrorMessage,
			Code:       status,
			StatusCode: status,
			Header:     header,
			Body:       rawBody(body),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &DecodeError{Method: method, StatusCode: status, Body: body, Err: err}
	}
	if env.Succeeded == nil {
		return nil, &DecodeError{Method: method, StatusCode: status, Body: body}
	}
	if !*env.Succeeded {
		code := status
		if env.Code != nil {
			code = *env.Code
		}
		return nil, &APIError{
			Method:     method,
			Message:    env.failureMessage(),
			Code:       code,
			StatusCode: status,
			Header:     header,
			Body:       rawBody(body),
		}
	}
	return env.Message, nil
}

func rawBody(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return nil
}

func decodeMessage(method string, message json.RawMessage, out any) error {
	if err := json.Unmarshal(message, out); err != nil {
		return &DecodeError{Method: method, StatusCode: http.StatusOK, Body: message, Err: fmt.Errorf("message payload: %w", err)}
	}
	return nil
}

type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
