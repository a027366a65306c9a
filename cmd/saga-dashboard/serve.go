package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"strconv"
	"time"

	saga "github.com/MicroTeam-4-0-no-monoliticos/entrega-final"
)

const shutdownTimeout = 5 * time.Second

func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	addr := fs.String("addr", a.cfg.ListenAddr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newHandler(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("listening", map[string]interface{}{"addr": *addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler serves the reconciled view as JSON. Every request re-fetches;
// nothing is reconciled ahead of time.
func newHandler(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/sagas", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("pagina"))
		limit, _ := strconv.Atoi(q.Get("limite"))
		result, err := a.viewer.LoadSagas(r.Context(), saga.SagaFilter{
			State: saga.SagaState(q.Get("estado")),
			Type:  q.Get("tipo"),
			Page:  page,
			Limit: limit,
		})
		if result == nil {
			writeError(w, err)
			return
		}
		if err != nil {
			a.log.WithError(err).Warn("could not cache saga listing")
		}
		views := a.viewer.Views(result.Sagas)
		a.metrics.SetListingLabels(views)
		writeJSON(w, http.StatusOK, map[string]any{
			"sagas":  views,
			"total":  result.Total,
			"pagina": result.Page,
			"limite": result.Limit,
		})
	})

	mux.HandleFunc("GET /api/sagas/{id}", func(w http.ResponseWriter, r *http.Request) {
		view, err := a.viewer.ViewSaga(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		counts := make(map[saga.SagaState]int, len(saga.KnownStates))
		for _, st := range saga.KnownStates {
			n, err := a.source.CountByState(r.Context(), st)
			if err != nil {
				writeError(w, err)
				return
			}
			counts[st] = n
		}
		writeJSON(w, http.StatusOK, counts)
	})

	mux.HandleFunc("GET /api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		counts, err := a.viewer.LoadDashboard(r.Context(), a.client)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = renderJSON(w, v)
}

// writeError maps client errors onto the status the caller should see.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, saga.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, saga.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{"detail": saga.TruncateError(err)})
}
