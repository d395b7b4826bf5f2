package bridge

import "context"

// Repository is the store-agnostic contract for committing and reading
// bridge sets.  Commits are chunked by the engine; each ReplaceForElements
// call is atomic at the store, so an aborted run leaves only whole chunks
// committed and the next run remains idempotent.
type Repository interface {
	// ReplaceForElements removes any existing bridges for the given element
	// IDs and installs the supplied ones in a single transaction.  Elements
	// listed without a corresponding bridge end the call unbridged, which
	// is how stale bridges of now-unresolved elements are cleared.
	ReplaceForElements(ctx context.Context, elementIDs []string, bridges []*Bridge) error

	// ListAll returns every bridge ordered by element ID.
	ListAll(ctx context.Context) ([]*Bridge, error)

	// ForElement returns the bridge for one element, or an
	// errors.ErrCodeNotFound AppError when the element is unbridged.
	ForElement(ctx context.Context, elementID string) (*Bridge, error)
}
