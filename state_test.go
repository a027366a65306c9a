package saga

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppStateCopies(t *testing.T) {
	st := NewAppState()
	assert.True(t, st.UpdatedAt().IsZero())

	in := []Saga{fixtureSaga("s-1", StateStarted, time.Now())}
	st.SetSagas(in)

	// caller mutation after Set does not leak in
	in[0].Steps[0].Kind = StepGenerateReport
	got, ok := st.Saga("s-1")
	require.True(t, ok)
	assert.Equal(t, StepCreateCampaign, got.Steps[0].Kind)

	// mutation of a read does not leak back
	got.Steps[0].Kind = StepGenerateReport
	list := st.Sagas()
	assert.Equal(t, StepCreateCampaign, list[0].Steps[0].Kind)

	_, ok = st.Saga("missing")
	assert.False(t, ok)
	assert.False(t, st.UpdatedAt().IsZero())
}

func TestAppStateReadsDoNotSharePointers(t *testing.T) {
	st := NewAppState()
	st.SetSagas([]Saga{fixtureSaga("a", StatePaymentDone, time.Now())})

	got, ok := st.Saga("a")
	require.True(t, ok)
	*got.Steps[0].Succeeded = false
	got.Steps[1].Result.(*PaymentResult).State = PaymentFailed

	again, ok := st.Saga("a")
	require.True(t, ok)
	assert.True(t, *again.Steps[0].Succeeded)
	payment, _ := again.Steps[1].Payment()
	assert.Equal(t, PaymentPending, payment.State)

	list := st.Sagas()
	*list[0].Steps[0].Succeeded = false
	again, _ = st.Saga("a")
	assert.True(t, *again.Steps[0].Succeeded)
}

func TestAppStateCounts(t *testing.T) {
	st := NewAppState()
	st.SetCampaigns([]Campaign{{ID: "c1"}, {ID: "c2"}})
	st.SetPayments([]Payment{{ID: "p1"}})
	st.SetReports([]Report{{ID: "r1"}, {ID: "r2"}, {ID: "r3"}})
	st.SetSagas([]Saga{{ID: "s1"}})

	assert.Equal(t, Counts{Campaigns: 2, Sagas: 1, Payments: 1, Reports: 3}, st.Counts())
	assert.Len(t, st.Campaigns(), 2)
	assert.Len(t, st.Payments(), 1)
	assert.Len(t, st.Reports(), 3)
}

func TestAppStateLastWriterWins(t *testing.T) {
	st := NewAppState()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sagas := make([]Saga, n)
			for j := range sagas {
				sagas[j] = Saga{ID: string(rune('a' + j))}
			}
			st.SetSagas(sagas)
			_ = st.Sagas()
			_ = st.Counts()
		}(i)
	}
	wg.Wait()

	// whichever writer ran last, the listing is one writer's whole slice
	list := st.Sagas()
	assert.Equal(t, len(list), st.Counts().Sagas)
	for j, sg := range list {
		assert.Equal(t, string(rune('a'+j)), sg.ID)
	}
}
