package disqus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a remote identifier. The service sends ids both as JSON strings and
// as numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("disqus id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Flag is a boolean the service may send as true/false, 0/1 or "0"/"1".
// Values it cannot read decode as false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	switch strings.ToLower(string(data)) {
	case "true":
		*f = true
	case "false", "null", "":
		*f = false
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		*f = Flag(err == nil && n != 0)
	}
	return nil
}

// Count is an integer the service may send as a number or a numeric string.
// Values it cannot read decode as 0.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = Count(n)
	return nil
}

// Identifiers accepts a single string or a list of strings.
type Identifiers []string

func (ids *Identifiers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*ids = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*ids = Identifiers{s}
		return nil
	}
	var list []ID
	if err := json.Unmarshal(data, &list); err != nil {
		var single ID
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("disqus identifiers: %w", err)
		}
		*ids = Identifiers{string(single)}
		return nil
	}
	out := make(Identifiers, 0, len(list))
	for _, id := range list {
		out = append(out, string(id))
	}
	*ids = out
	return nil
}

// Forum, Thread, Post and ThreadLookup keep the exact JSON they were decoded
// from in Raw, including fields these types do not model.
type Forum struct {
	ID        ID     `json:"id"`
	Shortname string `json:"shortname"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (f *Forum) UnmarshalJSON(data []byte) error {
	type plain Forum
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*f = Forum(decoded)
	f.Raw = cloneRaw(data)
	return nil
}

type Thread struct {
	ID            ID          `json:"id"`
	Forum         ID          `json:"forum"`
	Slug          string      `json:"slug"`
	Title         string      `json:"title"`
	CreatedAt     string      `json:"created_at,omitempty"`
	AllowComments Flag        `json:"allow_comments"`
	URL           string      `json:"url,omitempty"`
	Identifier    Identifiers `json:"identifier,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (t *Thread) UnmarshalJSON(data []byte) error {
	type plain Thread
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*t = Thread(decoded)
	t.Raw = cloneRaw(data)
	return nil
}

type Author struct {
	ID          ID     `json:"id,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Name        string `json:"name,omitempty"`
	URL         string `json:"url,omitempty"`
	EmailHash   string `json:"email_hash,omitempty"`
}

type Post struct {
	ID              ID      `json:"id"`
	Forum           ID      `json:"forum"`
	Thread          ID      `json:"thread"`
	CreatedAt       string  `json:"created_at,omitempty"`
	Message         string  `json:"message"`
	ParentPost      ID      `json:"parent_post,omitempty"`
	Shown           Flag    `json:"shown"`
	IsAnonymous     Flag    `json:"is_anonymous"`
	AnonymousAuthor *Author `json:"anonymous_author,omitempty"`
	Author          *Author `json:"author,omitempty"`
	Points          Count   `json:"points"`
	Status          string  `json:"status,omitempty"`
	IPAddress       string  `json:"ip_address,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (p *Post) UnmarshalJSON(data []byte) error {
	type plain Post
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Post(decoded)
	p.Raw = cloneRaw(data)
	return nil
}

// PostCounts is one entry of get_num_posts: visible comments first, then
// every comment including unapproved and spam.
type PostCounts struct {
	Visible int
	Total   int
}

func (p *PostCounts) UnmarshalJSON(data []byte) error {
	var pair []json.Number
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("disqus post counts: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("disqus post counts: expected 2 values, got %d", len(pair))
	}
	visible, err := strconv.Atoi(pair[0].String())
	if err != nil {
		return fmt.Errorf("disqus post counts: %w", err)
	}
	total, err := strconv.Atoi(pair[1].String())
	if err != nil {
		return fmt.Errorf("disqus post counts: %w", err)
	}
	p.Visible = visible
	p.Total = total
	return nil
}

func (p PostCounts) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Visible, p.Total})
}

type ThreadLookup struct {
	Thread  Thread `json:"thread"`
	Created Flag   `json:"created"`

	Raw json.RawMessage `json:"-"`
}

func (l *ThreadLookup) UnmarshalJSON(data []byte) error {
	type plain ThreadLookup
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*l = ThreadLookup(decoded)
	l.Raw = cloneRaw(data)
	return nil
}

func cloneRaw(data []byte) json.RawMessage {
	return append(json.RawMessage(nil), bytes.TrimSpace(data)...)
}
