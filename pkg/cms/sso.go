package cms

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSSOKeysRequired = errors.New("sso public and secret keys are required")
	ErrInvalidAuthS3   = errors.New("invalid remote_auth_s3 value")
)

type SSOConfig struct {
	PublicKey string
	SecretKey string
	Name      string
	ButtonURL string
	IconURL   string
	LoginURL  string
	LogoutURL string
	Width     int
	Height    int
}

type SSOUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	URL      string `json:"url,omitempty"`
}

// SSOSigner produces remote_auth_s3 values: the base64 JSON user payload,
// its hex HMAC-SHA1 over "payload timestamp", and the unix timestamp,
// separated by spaces.
type SSOSigner struct {
	cfg    SSOConfig
	secret []byte
	now    func() time.Time
}

func NewSSOSigner(cfg SSOConfig) (*SSOSigner, error) {
	if strings.TrimSpace(cfg.PublicKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrSSOKeysRequired
	}
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	return &SSOSigner{cfg: cfg, secret: []byte(cfg.SecretKey), now: time.Now}, nil
}

// Settings returns the sso block, the public api_key and the signed
// remote_auth_s3 for user. A nil user signs an empty object, which logs the
// visitor out of the SSO session.
func (s *SSOSigner) Settings(user *SSOUser) (map[string]any, error) {
	authS3, err := s.Sign(user)
	if err != nil {
		return nil, err
	}
	sso := map[string]any{
		"name":   s.cfg.Name,
		"width":  s.cfg.Width,
		"height": s.cfg.Height,
	}
	for key, value := range map[string]string{
		"button": s.cfg.ButtonURL,
		"icon":   s.cfg.IconURL,
		"url":    s.cfg.LoginURL,
		"logout": s.cfg.LogoutURL,
	} {
		if value != "" {
			sso[key] = value
		}
	}
	return map[string]any{
		"sso":            sso,
		"api_key":        s.cfg.PublicKey,
		"remote_auth_s3": authS3,
	}, nil
}

func (s *SSOSigner) Sign(user *SSOUser) (string, error) {
	payload := []byte("{}")
	if user != nil {
		encoded, err := json.Marshal(user)
		if err != nil {
			return "", fmt.Errorf("marshal sso user: %w", err)
		}
		payload = encoded
	}
	message := base64.StdEncoding.EncodeToString(payload)
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	return message + " " + hex.EncodeToString(s.sign(message, timestamp)) + " " + timestamp, nil
}

// Verify checks a remote_auth_s3 value and returns its decoded user payload.
func (s *SSOSigner) Verify(value string) (map[string]any, error) {
	parts := strings.Split(value, " ")
	if len(parts) != 3 {
		return nil, ErrInvalidAuthS3
	}
	signature, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidAuthS3
	}
	if !hmac.Equal(signature, s.sign(parts[0], parts[2])) {
		return nil, ErrInvalidAuthS3
	}
	payload, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidAuthS3
	}
	out := map[string]any{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, ErrInvalidAuthS3
	}
	return out, nil
}

func (s *SSOSigner) sign(message string, timestamp string) []byte {
	mac := hmac.New(sha1.New, s.secret)
	_, _ = mac.Write([]byte(message + " " + timestamp))
	return mac.Sum(nil)
}
