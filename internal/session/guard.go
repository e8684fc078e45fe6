package session

import "context"

// MarkerStore persists the single "already submitted" flag per quiz. It
// outlives sessions and reloads on the same client; implementations live
// in internal/infra (memory, Redis).
type MarkerStore interface {
	Has(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string) error
}

// Guard wraps a MarkerStore with the duplicate-submission contract:
// checked before the quiz definition is fetched, marked exactly once and
// only after the sink confirms acceptance.
type Guard struct {
	store MarkerStore
}

// NewGuard builds a Guard over the given store.
func NewGuard(store MarkerStore) Guard {
	return Guard{store: store}
}

// HasSubmitted reports whether a submission was already accepted for the
// key. Store errors are treated as "not submitted": the marker is a
// best-effort client-side barrier, not a server-enforced one.
func (g Guard) HasSubmitted(ctx context.Context, key string) bool {
	has, err := g.store.Has(ctx, key)
	if err != nil {
		return false
	}
	return has
}

// MarkSubmitted sets the marker. Called only after a successful
// submission; a failed sink call must leave the marker untouched so the
// respondent can retry.
func (g Guard) MarkSubmitted(ctx context.Context, key string) error {
	return g.store.Set(ctx, key)
}

// MarkerKey scopes the submitted flag to a quiz, optionally per client.
func MarkerKey(slug, clientKey string) string {
	if clientKey == "" {
		return slug
	}
	return slug + ":" + clientKey
}
