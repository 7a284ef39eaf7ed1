package cms

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openchat/disqus/pkg/disqus"
)

func TestManagerFieldsByEntityType(t *testing.T) {
	m := NewManager()
	m.AddField("node", "article", "field_disqus")
	m.AddField("node", "page", "field_disqus")
	m.AddField("node", "article", "field_disqus")
	m.AddField("taxonomy_term", "tags", "field_disqus")
	m.AddField("user", "user", "field_profile_comments")

	nodeFields := m.Fields("node")
	if len(nodeFields) != 1 {
		t.Fatalf("expected one node field, got %d", len(nodeFields))
	}
	info := nodeFields["field_disqus"]
	if info.Type != FieldType {
		t.Fatalf("expected field type %s, got %s", FieldType, info.Type)
	}
	if got := strings.Join(info.Bundles["node"], ","); got != "article,page" {
		t.Fatalf("expected deduplicated node bundles, got %q", got)
	}
	if _, ok := info.Bundles["taxonomy_term"]; ok {
		t.Fatalf("expected bundles limited to the requested entity type")
	}

	all := m.AllFields()
	if len(all) != 2 {
		t.Fatalf("expected two fields overall, got %d", len(all))
	}
	if len(all["field_disqus"].Bundles) != 2 {
		t.Fatalf("expected field_disqus on two entity types, got %v", all["field_disqus"].Bundles)
	}
	if len(m.Fields("comment")) != 0 {
		t.Fatalf("expected no fields for unrelated entity type")
	}
}

func TestSSOSignMatchesRemoteFormat(t *testing.T) {
	signer, err := NewSSOSigner(SSOConfig{PublicKey: "pub", SecretKey: "secret", Name: "Example"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	signer.now = func() time.Time { return time.Unix(1300000000, 0) }

	value, err := signer.Sign(&SSOUser{ID: "7", Username: "ann", Email: "ann@example.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	parts := strings.Split(value, " ")
	if len(parts) != 3 {
		t.Fatalf("expected three space separated parts, got %q", value)
	}
	payload, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if string(payload) != `{"id":"7","username":"ann","email":"ann@example.com"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	mac := hmac.New(sha1.New, []byte("secret"))
	mac.Write([]byte(parts[0] + " 1300000000"))
	if parts[1] != hex.EncodeToString(mac.Sum(nil)) {
		t.Fatalf("unexpected signature %s", parts[1])
	}
	if parts[2] != "1300000000" {
		t.Fatalf("unexpected timestamp %s", parts[2])
	}

	decoded, err := signer.Verify(value)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if decoded["username"] != "ann" {
		t.Fatalf("unexpected decoded payload %v", decoded)
	}
	if _, err := signer.Verify(parts[0] + " " + strings.Repeat("0", 40) + " " + parts[2]); !errors.Is(err, ErrInvalidAuthS3) {
		t.Fatalf("expected tampered value to fail, got %v", err)
	}
}

func TestManagerSSOSettings(t *testing.T) {
	m := NewManager()
	settings, err := m.SSOSettings()
	if err != nil || len(settings) != 0 {
		t.Fatalf("expected empty settings without sso, got %v (%v)", settings, err)
	}

	if _, err := NewSSOSigner(SSOConfig{PublicKey: "pub"}); !errors.Is(err, ErrSSOKeysRequired) {
		t.Fatalf("expected missing secret to fail, got %v", err)
	}
	signer, err := NewSSOSigner(SSOConfig{PublicKey: "pub", SecretKey: "secret", Name: "Example", LoginURL: "https://example.com/login"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	m.EnableSSO(signer, func() (SSOUser, bool) { return SSOUser{}, false })

	settings, err = m.SSOSettings()
	if err != nil {
		t.Fatalf("sso settings: %v", err)
	}
	if settings["api_key"] != "pub" {
		t.Fatalf("expected public key, got %v", settings["api_key"])
	}
	sso, ok := settings["sso"].(map[string]any)
	if !ok {
		t.Fatalf("expected sso block, got %T", settings["sso"])
	}
	if sso["url"] != "https://example.com/login" || sso["width"] != 800 || sso["height"] != 600 {
		t.Fatalf("unexpected sso block %v", sso)
	}
	if _, ok := sso["logout"]; ok {
		t.Fatalf("expected empty logout url to be left out")
	}
	authS3, _ := settings["remote_auth_s3"].(string)
	decoded, err := signer.Verify(authS3)
	if err != nil {
		t.Fatalf("verify anonymous payload: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty payload for anonymous visitor, got %v", decoded)
	}
}

type fakeUpdater struct {
	calls  []disqus.UpdateThreadParams
	thread string
	err    error
}

func (f *fakeUpdater) UpdateThread(_ context.Context, threadID string, params disqus.UpdateThreadParams) error {
	f.thread = threadID
	f.calls = append(f.calls, params)
	return f.err
}

func TestApplyDeletePolicy(t *testing.T) {
	ctx := context.Background()

	updater := &fakeUpdater{}
	if err := ApplyDeletePolicy(ctx, updater, "5", DeleteNoAction); err != nil {
		t.Fatalf("no action: %v", err)
	}
	if len(updater.calls) != 0 {
		t.Fatalf("expected no remote call for no-action policy")
	}

	if err := ApplyDeletePolicy(ctx, updater, "5", DeleteClose); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(updater.calls) != 1 || updater.thread != "5" {
		t.Fatalf("expected one update for thread 5, got %d for %q", len(updater.calls), updater.thread)
	}
	if allow := updater.calls[0].AllowComments; allow == nil || *allow {
		t.Fatalf("expected allow_comments=false")
	}
	if updater.calls[0].Title != nil || updater.calls[0].Slug != nil || updater.calls[0].URL != nil {
		t.Fatalf("expected only allow_comments to change")
	}

	if err := ApplyDeletePolicy(ctx, updater, "5", DeleteRemove); !errors.Is(err, ErrPolicyUnsupported) {
		t.Fatalf("expected unsupported remove policy, got %v", err)
	}

	failing := &fakeUpdater{err: errors.New("boom")}
	if err := ApplyDeletePolicy(ctx, failing, "6", DeleteClose); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped update error, got %v", err)
	}
}
