package saga

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, events *ClientEvents) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Endpoints{
		Sagas:     srv.URL,
		Campaigns: srv.URL + "/",
		Payments:  srv.URL,
		Reporting: srv.URL,
	}, ClientOptions{Timeout: 2 * time.Second, Events: events})
}

func TestHTTPClient_GetSaga(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/saga/s-1/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, statusFixture)
	})
	client := newTestClient(t, mux, nil)

	sg, err := client.GetSaga(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, StateCompensated, sg.State)
	require.Len(t, sg.Steps, 3)

	rec := DeriveDisplayStatus(sg)
	assert.Equal(t, LabelFailed, rec.Steps[1].Label)
	assert.Equal(t, NotePaymentFailed, rec.Steps[2].Note)
	assert.Equal(t, NoteCampaignCancelled, rec.Compensations[0].Note)
}

func TestHTTPClient_GetSagaErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"detail":"Saga no encontrada"}`)
			},
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.True(t, errors.As(err, &nf))
				assert.Equal(t, "s-1", nf.SagaID)
			},
		},
		{
			name: "server error with detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, `{"detail":"Error interno del servidor"}`)
			},
			check: func(t *testing.T, err error) {
				var se *HTTPStatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, 500, se.StatusCode)
				assert.Equal(t, "Error interno del servidor", se.Detail)
				assert.True(t, errors.Is(err, ErrHTTPStatus))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"saga_id": "s-1", "pasos": [`)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrDecode))
			},
		},
		{
			name: "missing saga id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"estado": "INICIADA"}`)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrDecode))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, nil)
			_, err := client.GetSaga(context.Background(), "s-1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(Endpoints{Sagas: url}, ClientOptions{Timeout: time.Second})
	_, err := client.GetSaga(context.Background(), "s-1")
	assert.True(t, errors.Is(err, ErrTransport))

	unconfigured := NewHTTPClient(Endpoints{Sagas: url}, ClientOptions{})
	err = unconfigured.Health(context.Background(), ServiceReporting)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestHTTPClient_ListSagas(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/saga/", r.URL.Path)
		q := r.URL.Query()
		gotQuery = map[string]string{
			"estado": q.Get("estado"),
			"tipo":   q.Get("tipo"),
			"pagina": q.Get("pagina"),
			"limite": q.Get("limite"),
		}
		io.WriteString(w, `{"sagas": [{"saga_id": "s-1", "estado": "FALLIDA", "pasos": []}], "total": 21, "pagina": 3, "limite": 10}`)
	}), nil)

	page, err := client.ListSagas(context.Background(), SagaFilter{State: StateFailed, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"estado": "FALLIDA", "tipo": "", "pagina": "3", "limite": "10"}, gotQuery)
	assert.Equal(t, 21, page.Total)
	require.Len(t, page.Sagas, 1)
	assert.Equal(t, StateFailed, page.Sagas[0].State)
}

func TestHTTPClient_CountByState(t *testing.T) {
	totals := map[string]int{"COMPLETADA": 4, "FALLIDA": 2}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"sagas": []any{}, "total": totals[r.URL.Query().Get("estado")], "pagina": 1, "limite": 1,
		})
	}), nil)

	n, err := client.CountByState(context.Background(), StateCompleted, StateFailed)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestHTTPClient_CreateSaga(t *testing.T) {
	var got CreateSagaRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/saga/crear-campana-completa", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"exito": true, "saga_id": "new-1", "estado": "INICIADA", "mensaje": "Saga iniciada"}`)
	}), nil)

	req := NewTestSagaRequest(nil, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	resp, err := client.CreateSaga(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "new-1", resp.SagaID)
	assert.Equal(t, StateStarted, resp.State)
	assert.Equal(t, req.Campaign.Name, got.Campaign.Name)
	assert.Equal(t, "USD", got.Payment.Currency)
}

func TestHTTPClient_CreateSagaValidatesFirst(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), nil)

	req := NewTestSagaRequest(nil, time.Now())
	req.Campaign.Type = "VIRAL"
	_, err := client.CreateSaga(context.Background(), req)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, called, "invalid requests must not reach the server")
}

func TestHTTPClient_CreateSagaSurfacesDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail": [{"loc": ["body", "campana"], "msg": "field required"}]}`)
	}), nil)

	_, err := client.CreateSaga(context.Background(), NewTestSagaRequest(nil, time.Now()))
	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Detail, "field required")
}

func TestHTTPClient_AuxiliaryServices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/campaigns/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"campaigns": [{"id": "c1", "nombre": "Verano", "tipo": "PROMOCIONAL"}]}`)
	})
	mux.HandleFunc("GET /pagos/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"pagos": [{"id": "p1", "estado": "EXITOSO", "monto": 10}, {"id": "p2", "estado": "FALLIDO"}]}`)
	})
	mux.HandleFunc("GET /reports", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id": "r1", "tipo_reporte": "metricas_generales", "estado": "COMPLETADO"}]`)
	})
	mux.HandleFunc("DELETE /saga/cleanup", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"mensaje": "ok", "total_eliminadas": 4}`)
	})
	mux.HandleFunc("DELETE /saga/cleanup-all", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"mensaje": "Limpieza completa realizada", "sagas_eliminadas": 4, "campanas_eliminadas": 2, "pagos_eliminados": 0, "timestamp": "2025-03-01T10:00:00"}`)
	})
	mux.HandleFunc("DELETE /api/campaigns/cleanup/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"mensaje": "ok", "total_eliminadas": 2}`)
	})
	mux.HandleFunc("DELETE /pagos/cleanup", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"mensaje": "ok", "total_eliminados": 5}`)
	})
	mux.HandleFunc("DELETE /saga/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "s-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"mensaje": "eliminada"}`)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": "healthy"}`)
	})
	client := newTestClient(t, mux, nil)
	ctx := context.Background()

	campaigns, err := client.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "Verano", campaigns[0].Name)

	payments, err := client.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	reports, err := client.ListReports(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	res, err := client.CleanupSagas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total())
	res, err = client.CleanupCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total())
	res, err = client.CleanupPayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total())

	all, err := client.CleanupAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, CleanupAllResult{Message: "Limpieza completa realizada", SagasDeleted: 4, CampaignsDeleted: 2}, *all)

	require.NoError(t, client.DeleteSaga(ctx, "s-1"))
	assert.True(t, errors.Is(client.DeleteSaga(ctx, "s-2"), ErrNotFound))

	for _, svc := range AllServices {
		assert.NoError(t, client.Health(ctx, svc), "health %s", svc)
	}
}

func TestHTTPClient_EmitsEvents(t *testing.T) {
	var (
		mu        sync.Mutex
		started   []string
		completed []int
		failed    []string
		snapshots []string
	)
	events := &ClientEvents{
		OnRequestStart: func(service, endpoint string) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, endpoint)
		},
		OnRequestComplete: func(ctx context.Context, service, endpoint string, status int, d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			completed = append(completed, status)
		},
		OnRequestFailed: func(ctx context.Context, service, endpoint string, err error, d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, endpoint)
		},
		OnSnapshot: func(id string, state SagaState) {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, id)
			panic("handler panics are contained")
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/saga/s-1/status", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"saga_id": "s-1", "estado": "INICIADA"}`)
	})
	client := newTestClient(t, mux, events)

	_, err := client.GetSaga(context.Background(), "s-1")
	require.NoError(t, err)
	_, err = client.GetSaga(context.Background(), "missing")
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"GET /saga/{id}/status", "GET /saga/{id}/status"}, started)
	assert.Equal(t, []int{http.StatusOK}, completed)
	assert.Equal(t, []string{"GET /saga/{id}/status"}, failed)
	assert.Equal(t, []string{"s-1"}, snapshots)
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "", errorDetail(nil))
	assert.Equal(t, "boom", errorDetail([]byte(`{"detail":"boom"}`)))
	assert.Equal(t, `{"code":7}`, errorDetail([]byte(`{"detail":{"code":7}}`)))
	assert.Equal(t, "Bad Gateway", errorDetail([]byte("  Bad Gateway\n")))
}
