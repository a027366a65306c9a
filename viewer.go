package saga

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Viewer loads sagas from a Source into an AppState and derives their
// display statuses. When a detail fetch fails it falls back to the last
// listing held in memory or in the snapshot cache.
type Viewer struct {
	source Source
	state  *AppState
	cache  SnapshotCache
	events *ClientEvents
}

// ViewerOptions configures a Viewer.
type ViewerOptions struct {
	// Cache, if set, receives every listing and serves detail fallbacks.
	Cache  SnapshotCache
	Events *ClientEvents
}

// NewViewer creates a new Viewer. A nil state gets a fresh AppState.
func NewViewer(source Source, state *AppState, opts ViewerOptions) *Viewer {
	if state == nil {
		state = NewAppState()
	}
	return &Viewer{
		source: source,
		state:  state,
		cache:  opts.Cache,
		events: opts.Events,
	}
}

// State returns the AppState the Viewer writes to.
func (v *Viewer) State() *AppState {
	return v.state
}

// SagaView is one saga with its reconciled display statuses.
type SagaView struct {
	Saga           *Saga          `json:"saga"`
	Reconciliation Reconciliation `json:"reconciliation"`
	// Stale is set when Saga came from the listing copy instead of a fresh fetch.
	Stale bool `json:"stale"`
	// FetchError is the fresh-fetch failure that caused a stale view.
	FetchError string `json:"fetch_error,omitempty"`
}

// LoadSagas fetches a listing page, stores it in the AppState and the cache.
// A cache write failure is returned alongside the page; the page is still valid.
func (v *Viewer) LoadSagas(ctx context.Context, filter SagaFilter) (*SagaPage, error) {
	page, err := v.source.ListSagas(ctx, filter)
	if err != nil {
		return nil, err
	}
	v.state.SetSagas(page.Sagas)

	if v.cache != nil {
		if err := v.cache.StoreSagas(ctx, page.Sagas); err != nil {
			return page, err
		}
	}
	return page, nil
}

// ViewSaga fetches one saga's current status and reconciles it.
//
// If the fetch fails for any reason other than not-found, the saga is looked
// up in the AppState listing and then the cache. A view built from either is
// marked Stale. If neither holds it, the fetch error is returned.
func (v *Viewer) ViewSaga(ctx context.Context, id string) (*SagaView, error) {
	sg, err := v.source.GetSaga(ctx, id)
	if err == nil {
		return v.view(sg, false, nil), nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}

	cached, ok := v.state.Saga(id)
	if !ok && v.cache != nil {
		var cacheErr error
		cached, ok, cacheErr = FindCachedSaga(ctx, v.cache, id)
		if cacheErr != nil {
			return nil, errors.Join(err, cacheErr)
		}
	}
	if !ok {
		return nil, err
	}

	emitEvent(v.events, func() {
		if v.events.OnFallback != nil {
			v.events.OnFallback(id, err)
		}
	})
	return v.view(cached, true, err), nil
}

// Reconcile derives display statuses for every saga in the AppState listing.
func (v *Viewer) Reconcile() []SagaView {
	return v.Views(v.state.Sagas())
}

// Views derives display statuses for sagas, such as one fetched page.
func (v *Viewer) Views(sagas []Saga) []SagaView {
	views := make([]SagaView, len(sagas))
	for i := range sagas {
		views[i] = *v.view(sagas[i].Clone(), false, nil)
	}
	return views
}

func (v *Viewer) view(sg *Saga, stale bool, fetchErr error) *SagaView {
	rec := DeriveDisplayStatus(sg)
	emitEvent(v.events, func() {
		if v.events.OnReconciled != nil {
			v.events.OnReconciled(sg.ID, rec)
		}
	})
	view := &SagaView{Saga: sg, Reconciliation: rec, Stale: stale}
	if fetchErr != nil {
		view.FetchError = TruncateError(fetchErr)
	}
	return view
}

// ServiceLister is what the dashboard needs from the auxiliary services.
// HTTPClient implements it.
type ServiceLister interface {
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	ListPayments(ctx context.Context) ([]Payment, error)
	ListReports(ctx context.Context) ([]Report, error)
}

// DashboardPageSize is the saga page fetched for the dashboard overview.
const DashboardPageSize = MaxPageSize

// LoadDashboard fetches campaigns, sagas, payments and reports in parallel
// and stores each in the AppState. Campaigns, sagas and payments are
// all-or-nothing like the web dashboard: the first failure cancels the rest
// and is returned, and the AppState keeps whatever listings completed before
// it. The reports count is best-effort; a reporting failure is recorded in
// Counts.ReportsError instead.
func (v *Viewer) LoadDashboard(ctx context.Context, services ServiceLister) (Counts, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		sagaTotal  int
		reportsErr error
	)
	g.Go(func() error {
		page, err := v.LoadSagas(gctx, SagaFilter{Limit: DashboardPageSize})
		if page == nil {
			return err
		}
		// a cache write failure does not fail the overview
		sagaTotal = page.Total
		return nil
	})
	g.Go(func() error {
		campaigns, err := services.ListCampaigns(gctx)
		if err != nil {
			return err
		}
		v.state.SetCampaigns(campaigns)
		return nil
	})
	g.Go(func() error {
		payments, err := services.ListPayments(gctx)
		if err != nil {
			return err
		}
		v.state.SetPayments(payments)
		return nil
	})
	g.Go(func() error {
		reports, err := services.ListReports(gctx)
		if err != nil {
			reportsErr = err
			return nil
		}
		v.state.SetReports(reports)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Counts{}, err
	}

	counts := v.state.Counts()
	if sagaTotal > counts.Sagas {
		counts.Sagas = sagaTotal
	}
	if reportsErr != nil {
		counts.ReportsError = TruncateError(reportsErr)
	}
	return counts, nil
}
