package saga

import "context"

// Source is the interface for reading saga snapshots.
type Source interface {
	// IsLive returns true if this source reads the orchestrator's current data
	// (as opposed to a fixture or cached copy).
	IsLive() bool

	// ListSagas returns one page of sagas matching the filter.
	ListSagas(ctx context.Context, filter SagaFilter) (*SagaPage, error)

	// GetSaga returns the current snapshot of one saga, or a *NotFoundError.
	GetSaga(ctx context.Context, id string) (*Saga, error)

	// CountByState counts sagas in any of the given states.
	CountByState(ctx context.Context, states ...SagaState) (int, error)
}
