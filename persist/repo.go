package persist

import "context"

// Fixed keys of the console's local state
const (
	KeyCurrentWorkspaceID = "current_workspace_id"
	KeyAuthIntent         = "auth_intent"
)

// Repo is the client-local key-value area that survives a restart of the console.
// Get and Take return errors.ErrNotFound for missing keys; deleting a missing key is not an error.
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Take reads and removes a key in one step. Of several concurrent callers only one gets the value.
	Take(ctx context.Context, key string) (string, error)
}
