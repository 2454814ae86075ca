package session

import (
	"context"

	"ai-helpdesk-be/pkg/store"
)

// Repository stores sessions by id. Get and Save work on copies, so callers
// may mutate what they receive without affecting stored state.
type Repository interface {
	Get(ctx context.Context, id string) (*store.Session, bool, error)
	Save(ctx context.Context, session *store.Session) error
	// Delete reports whether a session was removed
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	// OnEvicted registers fn to run whenever the store drops a session on its own
	OnEvicted(fn func(id string))
}
