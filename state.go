package saga

import (
	"sync"
	"time"
)

// AppState is the client's working copy of upstream data. It is passed
// explicitly to whatever needs it; there is no package-level instance.
//
// Writers replace whole collections. Concurrent fetches are not
// deduplicated: whichever Set call runs last wins.
type AppState struct {
	mu        sync.RWMutex
	sagas     []Saga
	campaigns []Campaign
	payments  []Payment
	reports   []Report
	updatedAt time.Time
}

// NewAppState creates an empty AppState.
func NewAppState() *AppState {
	return &AppState{}
}

// Counts is the dashboard summary of an AppState.
type Counts struct {
	Campaigns int `json:"campaigns"`
	Sagas     int `json:"sagas"`
	Payments  int `json:"payments"`
	Reports   int `json:"reports"`

	// ReportsError is set when the reporting service could not be listed;
	// Reports is then the last known count.
	ReportsError string `json:"reports_error,omitempty"`
}

// SetSagas replaces the saga listing.
func (s *AppState) SetSagas(sagas []Saga) {
	cp := make([]Saga, len(sagas))
	for i := range sagas {
		cp[i] = *sagas[i].Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sagas = cp
	s.updatedAt = time.Now()
}

// Sagas returns a copy of the saga listing.
func (s *AppState) Sagas() []Saga {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Saga, len(s.sagas))
	for i := range s.sagas {
		out[i] = *s.sagas[i].Clone()
	}
	return out
}

// Saga returns a copy of one saga from the listing.
func (s *AppState) Saga(id string) (*Saga, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.sagas {
		if s.sagas[i].ID == id {
			return s.sagas[i].Clone(), true
		}
	}
	return nil, false
}

// SetCampaigns replaces the campaign listing.
func (s *AppState) SetCampaigns(campaigns []Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = append([]Campaign(nil), campaigns...)
	s.updatedAt = time.Now()
}

// Campaigns returns a copy of the campaign listing.
func (s *AppState) Campaigns() []Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Campaign(nil), s.campaigns...)
}

// SetPayments replaces the payment listing.
func (s *AppState) SetPayments(payments []Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append([]Payment(nil), payments...)
	s.updatedAt = time.Now()
}

// Payments returns a copy of the payment listing.
func (s *AppState) Payments() []Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Payment(nil), s.payments...)
}

// SetReports replaces the report listing.
func (s *AppState) SetReports(reports []Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append([]Report(nil), reports...)
	s.updatedAt = time.Now()
}

// Reports returns a copy of the report listing.
func (s *AppState) Reports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Report(nil), s.reports...)
}

// Counts returns the size of each listing.
func (s *AppState) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Campaigns: len(s.campaigns),
		Sagas:     len(s.sagas),
		Payments:  len(s.payments),
		Reports:   len(s.reports),
	}
}

// UpdatedAt returns when any listing was last replaced.
func (s *AppState) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
