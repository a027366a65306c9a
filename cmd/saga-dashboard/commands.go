package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	saga "github.com/MicroTeam-4-0-no-monoliticos/entrega-final"
)

// createTestSpacing separates consecutive create-test requests.
const createTestSpacing = time.Second

func runList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	state := fs.String("state", "", "Filter by state (INICIADA, COMPLETADA, FALLIDA, COMPENSANDO, COMPENSADA, ...)")
	typ := fs.String("type", "", "Filter by saga type")
	page := fs.Int("page", 1, "Page number")
	limit := fs.Int("limit", saga.DefaultPageSize, "Page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.viewer.LoadSagas(ctx, saga.SagaFilter{
		State: saga.SagaState(strings.ToUpper(*state)),
		Type:  *typ,
		Page:  *page,
		Limit: *limit,
	})
	if result == nil {
		return fmt.Errorf("list sagas: %w", err)
	}
	if err != nil {
		a.log.WithError(err).Warn("could not cache saga listing")
	}

	views := a.viewer.Views(result.Sagas)
	a.metrics.SetListingLabels(views)
	renderList(a.out, result, views)
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	asJSON := fs.Bool("json", false, "Print the raw snapshot and reconciliation as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("saga ID required")
	}
	id := fs.Arg(0)

	view, err := a.viewer.ViewSaga(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch saga %s: %w", id, err)
	}
	if *asJSON {
		return renderJSON(a.out, view)
	}
	renderSaga(a.out, view)
	return nil
}

func runStats(ctx context.Context, a *app, args []string) error {
	counts := make([]stateCount, 0, len(saga.KnownStates))
	for _, st := range saga.KnownStates {
		n, err := a.source.CountByState(ctx, st)
		if err != nil {
			return fmt.Errorf("count %s: %w", st, err)
		}
		counts = append(counts, stateCount{State: st, Count: n})
	}
	renderStats(a.out, counts, a.source.IsLive())
	return nil
}

func runDashboard(ctx context.Context, a *app, args []string) error {
	counts, err := a.viewer.LoadDashboard(ctx, a.client)
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	views := a.viewer.Reconcile()
	a.metrics.SetListingLabels(views)
	renderDashboard(a.out, counts, views)
	return nil
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	name := fs.String("name", "", "Campaign name")
	description := fs.String("description", "", "Campaign description")
	typ := fs.String("type", string(saga.CampaignPromotional), "Campaign type (PROMOCIONAL, FIDELIZACION, ADQUISICION, RETENCION)")
	affiliate := fs.String("affiliate", "", "Affiliate ID")
	budget := fs.Float64("budget", 0, "Campaign budget")
	amount := fs.Float64("amount", 0, "Payment amount (defaults to the budget)")
	start := fs.String("start", "", "Start date YYYY-MM-DD (default today)")
	end := fs.String("end", "", "End date YYYY-MM-DD (default 30 days after start)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startDate := time.Now()
	if *start != "" {
		ts, err := saga.ParseTimestamp(*start)
		if err != nil {
			return saga.NewValidationError("campana.fecha_inicio", "%v", err)
		}
		startDate = ts.Time
	}
	endDate := startDate.AddDate(0, 0, 30)
	if *end != "" {
		ts, err := saga.ParseTimestamp(*end)
		if err != nil {
			return saga.NewValidationError("campana.fecha_fin", "%v", err)
		}
		endDate = ts.Time
	}
	if *amount == 0 {
		*amount = *budget
	}

	req := saga.NewCreateSagaRequest(saga.CampaignInput{
		Name:          *name,
		Description:   *description,
		Type:          strings.ToUpper(*typ),
		AffiliateID:   *affiliate,
		Budget:        *budget,
		PaymentAmount: *amount,
		Start:         startDate,
		End:           endDate,
	})
	resp, err := a.client.CreateSaga(ctx, req)
	if err != nil {
		return fmt.Errorf("create saga: %w", err)
	}
	renderCreated(a.out, resp)
	return nil
}

func runCreateTest(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-test", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	count := fs.Int("count", 1, "Number of sagas to create")
	spacing := fs.Duration("spacing", createTestSpacing, "Delay between requests")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count < 1 {
		return saga.NewValidationError("count", "must be at least 1, got %d", *count)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	failed := 0
	for i := 0; i < *count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(*spacing):
			}
		}

		req := saga.NewTestSagaRequest(rng, time.Now())
		reqCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		resp, err := a.client.CreateSaga(reqCtx, req)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(a.out, "%d/%d ❌ %s\n", i+1, *count, saga.TruncateError(err))
			continue
		}
		fmt.Fprintf(a.out, "%d/%d ✅ %s [%s] %s\n", i+1, *count, resp.SagaID, req.Campaign.Type, resp.State)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d test sagas failed", failed, *count)
	}
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("saga ID required")
	}
	id := args[0]
	if err := a.client.DeleteSaga(ctx, id); err != nil {
		return fmt.Errorf("delete saga %s: %w", id, err)
	}
	fmt.Fprintf(a.out, "Saga %s deleted.\n", id)
	return nil
}

// cleanupTargets maps a cleanup argument to the services it clears, in order.
var cleanupTargets = map[string][]saga.ServiceName{
	"sagas":     {saga.ServiceSagas},
	"campaigns": {saga.ServiceCampaigns},
	"payments":  {saga.ServicePayments},
}

func runCleanup(ctx context.Context, a *app, args []string) error {
	what := "all"
	if len(args) > 0 {
		what = strings.ToLower(args[0])
	}
	if what == "all" {
		res, err := a.client.CleanupAll(ctx)
		if err != nil {
			return fmt.Errorf("cleanup all: %w", err)
		}
		fmt.Fprintf(a.out, "%-10s ✅ %d deleted\n", saga.ServiceSagas, res.SagasDeleted)
		fmt.Fprintf(a.out, "%-10s ✅ %d deleted\n", saga.ServiceCampaigns, res.CampaignsDeleted)
		fmt.Fprintf(a.out, "%-10s ✅ %d deleted\n", saga.ServicePayments, res.PaymentsDeleted)
		return nil
	}
	targets, ok := cleanupTargets[what]
	if !ok {
		return saga.NewValidationError("target", "%q is not one of sagas, campaigns, payments, all", what)
	}

	var errs []error
	for _, svc := range targets {
		var (
			res *saga.CleanupResult
			err error
		)
		switch svc {
		case saga.ServiceSagas:
			res, err = a.client.CleanupSagas(ctx)
		case saga.ServiceCampaigns:
			res, err = a.client.CleanupCampaigns(ctx)
		case saga.ServicePayments:
			res, err = a.client.CleanupPayments(ctx)
		}
		if err != nil {
			fmt.Fprintf(a.out, "%-10s ❌ %s\n", svc, saga.TruncateError(err))
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(a.out, "%-10s ✅ %d deleted\n", svc, res.Total())
	}
	return errors.Join(errs...)
}

func runHealth(ctx context.Context, a *app, args []string) error {
	unhealthy := 0
	for _, svc := range saga.AllServices {
		err := a.client.Health(ctx, svc)
		if err != nil {
			unhealthy++
			fmt.Fprintf(a.out, "%-10s ❌ %s\n", svc, saga.TruncateError(err))
			continue
		}
		fmt.Fprintf(a.out, "%-10s ✅ healthy\n", svc)
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d of %d services unhealthy", unhealthy, len(saga.AllServices))
	}
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	interval := fs.Duration("interval", a.cfg.WatchInterval, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("saga ID required")
	}
	if *interval < time.Second {
		return saga.NewValidationError("interval", "must be at least 1s, got %s", *interval)
	}
	id := fs.Arg(0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var notFound error
	refresh := func() {
		reqCtx, reqCancel := context.WithTimeout(ctx, a.cfg.HTTPTimeout)
		defer reqCancel()

		view, err := a.viewer.ViewSaga(reqCtx, id)
		if err != nil {
			fmt.Fprintf(a.out, "%s ❌ %s\n", time.Now().Format("15:04:05"), saga.TruncateError(err))
			if errors.Is(err, saga.ErrNotFound) {
				notFound = err
				cancel()
			}
			return
		}
		fmt.Fprintf(a.out, "--- %s ---\n", time.Now().Format("15:04:05"))
		renderSaga(a.out, view)
		if !view.Stale && view.Saga.State.IsTerminal() {
			cancel()
		}
	}

	refresh()
	if ctx.Err() != nil {
		return notFound
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(*interval), cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		refresh()
	}))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return notFound
}
