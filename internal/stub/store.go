package stub

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openchat/disqus/pkg/disqus"
)

var (
	ErrUserNotFound       = errors.New("invalid user_api_key")
	ErrForumNotFound      = errors.New("forum not found")
	ErrForumKeyInvalid    = errors.New("invalid forum_api_key")
	ErrThreadNotFound     = errors.New("thread not found")
	ErrParentPostNotFound = errors.New("parent post not found")
	ErrArgumentRequired   = errors.New("missing required argument")
)

// EventBroadcaster receives every post created and thread updated through
// the store.
type EventBroadcaster interface {
	BroadcastPost(post disqus.Post)
	BroadcastThread(thread disqus.Thread)
}

type CreatePostInput struct {
	ThreadID    string
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthorURL   string
	ParentPost  string
	CreatedAt   string
	IPAddress   string
}

type ThreadUpdate struct {
	Title         *string
	Slug          *string
	URL           *string
	AllowComments *bool
}

// Store is an in-memory model of the remote service: users own forums,
// forums hold threads, threads hold posts.
type Store struct {
	mu sync.RWMutex

	users         map[string][]string
	forums        map[string]disqus.Forum
	forumKeys     map[string]string
	threads       map[string]disqus.Thread
	threadOrder   map[string][]string
	identifierIdx map[string]string
	urlIdx        map[string]string
	postsByThread map[string][]disqus.Post
	nextID        int64
	now           func() time.Time
	broadcaster   EventBroadcaster
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string][]string),
		forums:        make(map[string]disqus.Forum),
		forumKeys:     make(map[string]string),
		threads:       make(map[string]disqus.Thread),
		threadOrder:   make(map[string][]string),
		identifierIdx: make(map[string]string),
		urlIdx:        make(map[string]string),
		postsByThread: make(map[string][]disqus.Post),
		nextID:        1000,
		now:           time.Now,
	}
}

func (s *Store) SetBroadcaster(broadcaster EventBroadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = broadcaster
}

func (s *Store) AddUser(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userKey]; !ok {
		s.users[userKey] = nil
	}
}

// AddForum creates a forum owned by userKey. An empty forumKey gets a
// generated one.
func (s *Store) AddForum(userKey string, shortname string, forumKey string) (disqus.Forum, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(forumKey) == "" {
		forumKey = uuid.NewString()
	}
	forum := disqus.Forum{
		ID:        s.newIDLocked(),
		Shortname: shortname,
		Name:      shortname,
		CreatedAt: s.timestampLocked(),
	}
	s.forums[string(forum.ID)] = forum
	s.forumKeys[forumKey] = string(forum.ID)
	s.users[userKey] = append(s.users[userKey], string(forum.ID))
	return forum, forumKey
}

func (s *Store) HasUser(userKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userKey]
	return ok
}

func (s *Store) ForumByKey(forumKey string) (disqus.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forumID, ok := s.forumKeys[forumKey]
	if !ok {
		return disqus.Forum{}, ErrForumKeyInvalid
	}
	return s.forums[forumID], nil
}

func (s *Store) ForumList(userKey string) ([]disqus.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forumIDs, ok := s.users[userKey]
	if !ok {
		return nil, ErrUserNotFound
	}
	forums := make([]disqus.Forum, 0, len(forumIDs))
	for _, forumID := range forumIDs {
		forums = append(forums, s.forums[forumID])
	}
	return forums, nil
}

func (s *Store) ForumAPIKey(userKey string, forumID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ownsForumLocked(userKey, forumID) {
		return "", ErrForumNotFound
	}
	keys := make([]string, 0, 1)
	for key, id := range s.forumKeys {
		if id == forumID {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return "", ErrForumNotFound
	}
	sort.Strings(keys)
	return keys[0], nil
}

func (s *Store) ThreadList(forumID string) ([]disqus.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.forums[forumID]; !ok {
		return nil, ErrForumNotFound
	}
	order := s.threadOrder[forumID]
	threads := make([]disqus.Thread, 0, len(order))
	for _, threadID := range order {
		threads = append(threads, s.threads[threadID])
	}
	return threads, nil
}

// NumPosts counts posts for each known thread of the forum. Unknown ids are
// left out of the result.
func (s *Store) NumPosts(forumID string, threadIDs []string) map[string]disqus.PostCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]disqus.PostCounts, len(threadIDs))
	for _, threadID := range threadIDs {
		threadID = strings.TrimSpace(threadID)
		thread, ok := s.threads[threadID]
		if !ok || string(thread.Forum) != forumID {
			continue
		}
		var entry disqus.PostCounts
		for _, post := range s.postsByThread[threadID] {
			entry.Total++
			if post.Shown {
				entry.Visible++
			}
		}
		counts[threadID] = entry
	}
	return counts
}

func (s *Store) ThreadByURL(forumID string, url string) *disqus.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	threadID, ok := s.urlIdx[indexKey(forumID, url)]
	if !ok {
		return nil
	}
	thread := s.threads[threadID]
	return &thread
}

func (s *Store) ThreadPosts(forumID string, threadID string) ([]disqus.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.threadInForumLocked(forumID, threadID); err != nil {
		return nil, err
	}
	posts := make([]disqus.Post, len(s.postsByThread[threadID]))
	copy(posts, s.postsByThread[threadID])
	return posts, nil
}

// ThreadByIdentifier returns the thread tied to identifier in the forum,
// creating it on first use.
func (s *Store) ThreadByIdentifier(forumID string, title string, identifier string) (disqus.ThreadLookup, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return disqus.ThreadLookup{}, fmt.Errorf("%w: identifier", ErrArgumentRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forums[forumID]; !ok {
		return disqus.ThreadLookup{}, ErrForumNotFound
	}
	key := indexKey(forumID, identifier)
	if threadID, ok := s.identifierIdx[key]; ok {
		return disqus.ThreadLookup{Thread: s.threads[threadID], Created: false}, nil
	}
	if strings.TrimSpace(title) == "" {
		return disqus.ThreadLookup{}, fmt.Errorf("%w: title", ErrArgumentRequired)
	}

	thread := disqus.Thread{
		ID:            s.newIDLocked(),
		Forum:         disqus.ID(forumID),
		Slug:          s.uniqueSlugLocked(forumID, title),
		Title:         title,
		CreatedAt:     s.timestampLocked(),
		AllowComments: true,
		Identifier:    disqus.Identifiers{identifier},
	}
	s.threads[string(thread.ID)] = thread
	s.threadOrder[forumID] = append(s.threadOrder[forumID], string(thread.ID))
	s.identifierIdx[key] = string(thread.ID)
	return disqus.ThreadLookup{Thread: thread, Created: true}, nil
}

func (s *Store) UpdateThread(forumID string, threadID string, update ThreadUpdate) (disqus.Thread, error) {
	s.mu.Lock()
	thread, err := s.threadInForumLocked(forumID, threadID)
	if err != nil {
		s.mu.Unlock()
		return disqus.Thread{}, err
	}
	if update.Title != nil {
		thread.Title = *update.Title
	}
	if update.Slug != nil {
		thread.Slug = *update.Slug
	}
	if update.URL != nil {
		if thread.URL != "" {
			delete(s.urlIdx, indexKey(forumID, thread.URL))
		}
		thread.URL = *update.URL
		if thread.URL != "" {
			s.urlIdx[indexKey(forumID, thread.URL)] = threadID
		}
	}
	if update.AllowComments != nil {
		thread.AllowComments = disqus.Flag(*update.AllowComments)
	}
	s.threads[threadID] = thread
	broadcaster := s.broadcaster
	s.mu.Unlock()

	if broadcaster != nil {
		broadcaster.BroadcastThread(thread)
	}
	return thread, nil
}

func (s *Store) CreatePost(forumID string, input CreatePostInput) (disqus.Post, error) {
	for name, value := range map[string]string{
		"thread_id":    input.ThreadID,
		"message":      input.Message,
		"author_name":  input.AuthorName,
		"author_email": input.AuthorEmail,
	} {
		if strings.TrimSpace(value) == "" {
			return disqus.Post{}, fmt.Errorf("%w: %s", ErrArgumentRequired, name)
		}
	}

	s.mu.Lock()
	if _, err := s.threadInForumLocked(forumID, input.ThreadID); err != nil {
		s.mu.Unlock()
		return disqus.Post{}, err
	}
	if input.ParentPost != "" && !s.hasPostLocked(input.ThreadID, input.ParentPost) {
		s.mu.Unlock()
		return disqus.Post{}, ErrParentPostNotFound
	}

	createdAt := input.CreatedAt
	if createdAt == "" {
		createdAt = s.timestampLocked()
	}
	post := disqus.Post{
		ID:          s.newIDLocked(),
		Forum:       disqus.ID(forumID),
		Thread:      disqus.ID(input.ThreadID),
		CreatedAt:   createdAt,
		Message:     input.Message,
		ParentPost:  disqus.ID(input.ParentPost),
		Shown:       true,
		IsAnonymous: true,
		AnonymousAuthor: &disqus.Author{
			Name:      input.AuthorName,
			URL:       input.AuthorURL,
			EmailHash: emailHash(input.AuthorEmail),
		},
		Status:    "approved",
		IPAddress: input.IPAddress,
	}
	s.postsByThread[input.ThreadID] = append(s.postsByThread[input.ThreadID], post)
	broadcaster := s.broadcaster
	s.mu.Unlock()

	if broadcaster != nil {
		broadcaster.BroadcastPost(post)
	}
	return post, nil
}

func (s *Store) ownsForumLocked(userKey string, forumID string) bool {
	for _, id := range s.users[userKey] {
		if id == forumID {
			return true
		}
	}
	return false
}

func (s *Store) threadInForumLocked(forumID string, threadID string) (disqus.Thread, error) {
	thread, ok := s.threads[strings.TrimSpace(threadID)]
	if !ok || string(thread.Forum) != forumID {
		return disqus.Thread{}, ErrThreadNotFound
	}
	return thread, nil
}

func (s *Store) hasPostLocked(threadID string, postID string) bool {
	for _, post := range s.postsByThread[threadID] {
		if string(post.ID) == postID {
			return true
		}
	}
	return false
}

func (s *Store) uniqueSlugLocked(forumID string, title string) string {
	base := slugify(title)
	taken := make(map[string]struct{})
	for _, threadID := range s.threadOrder[forumID] {
		taken[s.threads[threadID].Slug] = struct{}{}
	}
	slug := base
	for i := 2; ; i++ {
		if _, exists := taken[slug]; !exists {
			return slug
		}
		slug = base + "_" + strconv.Itoa(i)
	}
}

func (s *Store) newIDLocked() disqus.ID {
	s.nextID++
	return disqus.ID(strconv.FormatInt(s.nextID, 10))
}

func (s *Store) timestampLocked() string {
	return s.now().UTC().Format(disqus.CreatedAtLayout)
}

func slugify(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "thread"
	}
	return b.String()
}

func emailHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

func indexKey(forumID string, value string) string {
	return forumID + "\x00" + value
}
