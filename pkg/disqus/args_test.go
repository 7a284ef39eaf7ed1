package disqus

import "testing"

func TestArgsEncodeKeepsInsertionOrder(t *testing.T) {
	var args Args
	args.Set("thread_id", "42").Set("message", "hello world").Set("author_name", "Ann & Bob")

	encoded := args.Encode()
	if encoded != "thread_id=42&message=hello+world&author_name=Ann+%26+Bob" {
		t.Fatalf("unexpected encoding: %q", encoded)
	}
}

func TestArgsSetReplacesInPlace(t *testing.T) {
	var args Args
	args.Set("a", "1").Set("b", "2").Set("a", "3")

	if args.Len() != 2 {
		t.Fatalf("expected 2 arguments, got %d", args.Len())
	}
	if args.Encode() != "a=3&b=2" {
		t.Fatalf("expected replaced value in original position, got %q", args.Encode())
	}
}

func TestArgsEncodeDropsFalsyValues(t *testing.T) {
	var nilString *string
	var nilBool *bool
	empty := ""
	no := false

	var args Args
	args.Set("thread_id", "7")
	args.Set("empty", "")
	args.Set("zero_string", "0")
	args.Set("zero_int", 0)
	args.Set("false", false)
	args.Set("nil", nil)
	args.Set("nil_string", nilString)
	args.Set("nil_bool", nilBool)
	args.Set("empty_ptr", &empty)
	args.Set("false_ptr", &no)
	args.Set("empty_list", []string{})
	args.Set("count", 3)
	args.Set("flag", true)

	if got := args.Encode(); got != "thread_id=7&count=3&flag=1" {
		t.Fatalf("unexpected encoding: %q", got)
	}
}

func TestExplicitBypassesOmission(t *testing.T) {
	var args Args
	args.Set("allow_comments", Explicit(false))
	args.Set("title", Explicit(""))
	args.Set("slug", Explicit(nil))

	if got := args.Encode(); got != "allow_comments=0&title=" {
		t.Fatalf("unexpected encoding: %q", got)
	}
}

func TestArgsJoinsLists(t *testing.T) {
	var args Args
	args.Set("thread_ids", []string{"1", "2", "3"})

	values := args.Values()
	if values.Get("thread_ids") != "1,2,3" {
		t.Fatalf("expected comma-joined ids, got %q", values.Get("thread_ids"))
	}
}

func TestArgsIsSetIgnoresNil(t *testing.T) {
	var key *string
	var args Args
	args.Set("user_api_key", key)

	if args.IsSet("user_api_key") {
		t.Fatalf("expected nil value to count as unset")
	}
	args.Set("user_api_key", "")
	if !args.IsSet("user_api_key") {
		t.Fatalf("expected empty string to count as set")
	}
}

func TestArgsCloneIsIndependent(t *testing.T) {
	var args Args
	args.Set("a", "1")
	clone := args.Clone()
	clone.Set("a", "2").Set("b", "3")

	if args.Encode() != "a=1" {
		t.Fatalf("original mutated by clone: %q", args.Encode())
	}
}

func TestArgsEncodeFormatsOtherNumericKinds(t *testing.T) {
	port := uint16(8080)
	var missing *int32

	var args Args
	args.Set("forum_id", int32(7))
	args.Set("limit", uint64(25))
	args.Set("port", &port)
	args.Set("ratio", 0.5)
	args.Set("zero_float", 0.0)
	args.Set("zero_uint", uint8(0))
	args.Set("missing", missing)

	if got := args.Encode(); got != "forum_id=7&limit=25&port=8080&ratio=0.5" {
		t.Fatalf("unexpected encoding: %q", got)
	}
	if args.IsSet("missing") {
		t.Fatalf("expected nil pointer to count as unset")
	}
}
