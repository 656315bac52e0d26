package calls

import (
	"context"
	"time"
)

// Repository is the call record store.
//
// Every status write is conditional: Transition and Complete succeed only
// when the stored status equals the expected one, Finish only when it is not
// terminal. A mismatch yields ErrStatusConflict, a missing row ErrNotFound.
type Repository interface {
	Create(ctx context.Context, c Call) (Call, error)
	Get(ctx context.Context, id string) (Call, error)
	GetForOwner(ctx context.Context, userID, id string) (Call, error)
	// ListForOwner returns newest first with the expert joined.
	ListForOwner(ctx context.Context, userID string, f ListFilter) ([]CallWithExpert, error)

	Transition(ctx context.Context, id string, from, to Status) (Call, error)
	Complete(ctx context.Context, id string, from Status, res Result) (Call, error)
	// Finish writes a terminal failed or canceled status. reason is kept only for failed.
	Finish(ctx context.Context, id string, status Status, reason string, at time.Time) (Call, error)

	SetProviderCallSID(ctx context.Context, id, sid string) error
	SetRecordingURL(ctx context.Context, providerCallSID, url string) (Call, error)

	// ListStale returns active calls whose last write is older than before.
	ListStale(ctx context.Context, before time.Time, limit int) ([]Call, error)
	CountByStatus(ctx context.Context, userID string) (map[Status]int, error)
}
