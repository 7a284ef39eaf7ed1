package cms

import (
	"context"
	"errors"
	"fmt"

	"github.com/openchat/disqus/pkg/disqus"
)

// ErrPolicyUnsupported is returned for DeleteRemove: no v1 endpoint removes a
// thread.
var ErrPolicyUnsupported = errors.New("delete policy not supported by the remote api")

// ThreadUpdater is satisfied by *disqus.Client.
type ThreadUpdater interface {
	UpdateThread(ctx context.Context, threadID string, params disqus.UpdateThreadParams) error
}

// ApplyDeletePolicy runs the remote side of policy for the thread of a
// deleted entity.
func ApplyDeletePolicy(ctx context.Context, updater ThreadUpdater, threadID string, policy DeletePolicy) error {
	switch policy {
	case DeleteNoAction:
		return nil
	case DeleteClose:
		closed := false
		if err := updater.UpdateThread(ctx, threadID, disqus.UpdateThreadParams{AllowComments: &closed}); err != nil {
			return fmt.Errorf("close thread %s: %w", threadID, err)
		}
		return nil
	case DeleteRemove:
		return fmt.Errorf("%w: %s", ErrPolicyUnsupported, policy)
	default:
		return fmt.Errorf("unknown delete policy %d", int(policy))
	}
}
