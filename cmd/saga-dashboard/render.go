package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	saga "github.com/MicroTeam-4-0-no-monoliticos/entrega-final"
)

const timeLayout = "2006-01-02 15:04:05"

// recentSagas is how many sagas the dashboard lists under the counts.
const recentSagas = 5

type stateCount struct {
	State saga.SagaState
	Count int
}

func renderList(w io.Writer, page *saga.SagaPage, views []saga.SagaView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No sagas found.")
		return
	}

	fmt.Fprintf(w, "Showing %d of %d sagas (page %d):\n\n", len(views), page.Total, page.Page)
	fmt.Fprintf(w, "%-36s %-12s %-20s %-9s %s\n", "ID", "STATE", "STARTED", "STEPS", "COMPENSATIONS")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, v := range views {
		sum := saga.Summarize(v.Reconciliation)
		fmt.Fprintf(w, "%-36s %-12s %-20s %-9s %s\n",
			truncate(v.Saga.ID, 36),
			v.Saga.State,
			formatTime(v.Saga.StartTime.Time),
			summaryCell(sum.Steps),
			summaryCell(sum.Compensations),
		)
	}
}

// summaryCell renders label counts as "✅2 ⏳1", omitting zeros.
func summaryCell(counts map[saga.DisplayLabel]int) string {
	var parts []string
	for _, label := range []saga.DisplayLabel{saga.LabelSucceeded, saga.LabelFailed, saga.LabelPending} {
		if n := counts[label]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s%d", label.Icon(), n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func renderSaga(w io.Writer, v *saga.SagaView) {
	s := v.Saga
	if v.Stale {
		fmt.Fprintf(w, "⚠ Could not refresh, showing listing copy: %s\n\n", v.FetchError)
	}

	fmt.Fprintf(w, "Saga:     %s\n", s.ID)
	fmt.Fprintf(w, "Type:     %s\n", s.Type)
	fmt.Fprintf(w, "State:    %s\n", s.State)
	fmt.Fprintf(w, "Started:  %s\n", formatTime(s.StartTime.Time))
	if s.EndTime != nil && !s.EndTime.IsZero() {
		fmt.Fprintf(w, "Finished: %s\n", formatTime(s.EndTime.Time))
	}
	if s.ErrorMessage != nil && *s.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:    %s\n", *s.ErrorMessage)
	}

	rec := v.Reconciliation
	fmt.Fprintf(w, "\nSteps (%d):\n", len(s.Steps))
	if len(s.Steps) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for i, step := range s.Steps {
		ds, _ := rec.Lookup(saga.Ref{Kind: saga.RefStep, Index: i})
		fmt.Fprintf(w, "  %d. %s %-16s %-9s %s\n", i+1, ds.Icon, step.Kind, ds.Label, ds.Note)
		if ds.Detail.PaymentState != "" {
			fmt.Fprintf(w, "     Payment: %s\n", ds.Detail.PaymentState)
		}
		if ds.Detail.Error != "" {
			fmt.Fprintf(w, "     Error:   %s\n", truncate(ds.Detail.Error, 80))
		}
		if step.Result != nil {
			if b, err := json.Marshal(step.Result); err == nil {
				fmt.Fprintf(w, "     Result:  %s\n", truncate(string(b), 80))
			}
		}
	}

	if len(s.Compensations) > 0 {
		fmt.Fprintf(w, "\nCompensations (%d):\n", len(s.Compensations))
		for i, comp := range s.Compensations {
			ds, _ := rec.Lookup(saga.Ref{Kind: saga.RefCompensation, Index: i})
			fmt.Fprintf(w, "  %d. %s %-18s %-9s %s\n", i+1, ds.Icon, comp.Kind, ds.Label, ds.Note)
			if ds.Detail.Error != "" {
				fmt.Fprintf(w, "     Error:   %s\n", truncate(ds.Detail.Error, 80))
			}
		}
	}
}

func renderStats(w io.Writer, counts []stateCount, live bool) {
	source := "orchestrator API"
	if !live {
		source = "offline copy"
	}
	fmt.Fprintf(w, "Saga Statistics (%s):\n", source)
	fmt.Fprintln(w, strings.Repeat("-", 30))

	total := 0
	for _, c := range counts {
		total += c.Count
		fmt.Fprintf(w, "%-15s %d\n", string(c.State)+":", c.Count)
	}

	fmt.Fprintln(w, strings.Repeat("-", 30))
	fmt.Fprintf(w, "%-15s %d\n", "Total:", total)
}

func renderDashboard(w io.Writer, counts saga.Counts, views []saga.SagaView) {
	fmt.Fprintln(w, "Dashboard:")
	fmt.Fprintln(w, strings.Repeat("-", 30))
	fmt.Fprintf(w, "%-15s %d\n", "Campaigns:", counts.Campaigns)
	fmt.Fprintf(w, "%-15s %d\n", "Sagas:", counts.Sagas)
	fmt.Fprintf(w, "%-15s %d\n", "Payments:", counts.Payments)
	if counts.ReportsError != "" {
		fmt.Fprintf(w, "%-15s unavailable (%s)\n", "Reports:", counts.ReportsError)
	} else {
		fmt.Fprintf(w, "%-15s %d\n", "Reports:", counts.Reports)
	}

	if len(views) == 0 {
		return
	}
	if len(views) > recentSagas {
		views = views[:recentSagas]
	}
	fmt.Fprintln(w, "\nRecent sagas:")
	for _, v := range views {
		sum := saga.Summarize(v.Reconciliation)
		fmt.Fprintf(w, "  %-36s %-12s %s\n", truncate(v.Saga.ID, 36), v.Saga.State, summaryCell(sum.Steps))
	}
}

func renderCreated(w io.Writer, resp *saga.CreateSagaResponse) {
	if !resp.OK {
		fmt.Fprintf(w, "❌ Saga not started: %s\n", resp.Message)
		return
	}
	fmt.Fprintf(w, "✅ Saga %s started (%s)\n", resp.SagaID, resp.State)
	if resp.Message != "" {
		fmt.Fprintf(w, "   %s\n", resp.Message)
	}
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

// truncate cuts s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
