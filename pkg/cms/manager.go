// Package cms describes how Disqus comment fields attach to content entities
// of a host CMS, and provides an in-memory implementation of that contract.
package cms

import (
	"sort"
	"sync"
)

// FieldType is the field type every Disqus comment field is registered as.
const FieldType = "disqus_comment"

// DeletePolicy decides what happens to an entity's thread when the entity is
// deleted.
type DeletePolicy int

const (
	DeleteNoAction DeletePolicy = 0
	DeleteClose    DeletePolicy = 1
	DeleteRemove   DeletePolicy = 2
)

func (p DeletePolicy) String() string {
	switch p {
	case DeleteNoAction:
		return "no_action"
	case DeleteClose:
		return "close"
	case DeleteRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// FieldInfo is one entry of a field map. Bundles maps an entity type to the
// bundle names the field appears in.
type FieldInfo struct {
	Type    string              `json:"type"`
	Bundles map[string][]string `json:"bundles"`
}

// CommentManager is implemented by integrations that expose Disqus comment
// fields and single sign-on settings to the host CMS.
type CommentManager interface {
	// Fields returns the comment fields attached to entityTypeID, keyed by
	// field name.
	Fields(entityTypeID string) map[string]FieldInfo
	AllFields() map[string]FieldInfo
	// SSOSettings computes the settings to merge into the basic embed
	// settings. It returns an empty map when SSO is not configured.
	SSOSettings() (map[string]any, error)
}

// Manager keeps the field map in memory.
type Manager struct {
	mu     sync.RWMutex
	fields map[string]FieldInfo
	sso    *SSOSigner
	user   func() (SSOUser, bool)
}

var _ CommentManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{fields: make(map[string]FieldInfo)}
}

// AddField attaches fieldName to bundle of entityType.
func (m *Manager) AddField(entityType string, bundle string, fieldName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.fields[fieldName]
	if !ok {
		info = FieldInfo{Type: FieldType, Bundles: make(map[string][]string)}
	}
	for _, existing := range info.Bundles[entityType] {
		if existing == bundle {
			return
		}
	}
	info.Bundles[entityType] = append(info.Bundles[entityType], bundle)
	sort.Strings(info.Bundles[entityType])
	m.fields[fieldName] = info
}

// EnableSSO turns on SSO settings. currentUser reports the signed-in user,
// or false for anonymous visitors.
func (m *Manager) EnableSSO(signer *SSOSigner, currentUser func() (SSOUser, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sso = signer
	m.user = currentUser
}

func (m *Manager) Fields(entityTypeID string) map[string]FieldInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]FieldInfo)
	for name, info := range m.fields {
		bundles, ok := info.Bundles[entityTypeID]
		if !ok {
			continue
		}
		out[name] = FieldInfo{
			Type:    info.Type,
			Bundles: map[string][]string{entityTypeID: append([]string(nil), bundles...)},
		}
	}
	return out
}

func (m *Manager) AllFields() map[string]FieldInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]FieldInfo, len(m.fields))
	for name, info := range m.fields {
		bundles := make(map[string][]string, len(info.Bundles))
		for entityType, names := range info.Bundles {
			bundles[entityType] = append([]string(nil), names...)
		}
		out[name] = FieldInfo{Type: info.Type, Bundles: bundles}
	}
	return out
}

func (m *Manager) SSOSettings() (map[string]any, error) {
	m.mu.RLock()
	signer, currentUser := m.sso, m.user
	m.mu.RUnlock()
	if signer == nil {
		return map[string]any{}, nil
	}

	var user *SSOUser
	if currentUser != nil {
		if u, ok := currentUser(); ok {
			user = &u
		}
	}
	return signer.Settings(user)
}
