package saga

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MicroTeam-4-0-no-monoliticos/entrega-final"

var errNoEndpoint = errors.New("no base URL configured")

// Endpoints holds the base URL of each upstream service.
// Only Sagas is required; the others feed dashboard counts.
type Endpoints struct {
	Sagas     string
	Campaigns string
	Payments  string
	Reporting string
}

func (e Endpoints) base(service ServiceName) string {
	var u string
	switch service {
	case ServiceSagas:
		u = e.Sagas
	case ServiceCampaigns:
		u = e.Campaigns
	case ServicePayments:
		u = e.Payments
	case ServiceReporting:
		u = e.Reporting
	}
	return strings.TrimRight(u, "/")
}

// ClientOptions configures an HTTPClient.
type ClientOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Events     *ClientEvents
	Tracer     trace.Tracer
}

// HTTPClient talks to the orchestrator API and the auxiliary services.
// Requests are never retried; callers decide whether to re-trigger.
type HTTPClient struct {
	endpoints Endpoints
	client    *http.Client
	events    *ClientEvents
	tracer    trace.Tracer
}

// NewHTTPClient creates a new HTTPClient.
func NewHTTPClient(endpoints Endpoints, opts ClientOptions) *HTTPClient {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &HTTPClient{
		endpoints: endpoints,
		client:    client,
		events:    opts.Events,
		tracer:    tracer,
	}
}

// IsLive returns true - the API serves the orchestrator's current state.
func (c *HTTPClient) IsLive() bool {
	return true
}

// ListSagas calls GET /saga/.
func (c *HTTPClient) ListSagas(ctx context.Context, filter SagaFilter) (*SagaPage, error) {
	filter = filter.normalize()

	q := url.Values{}
	if filter.State != "" {
		q.Set("estado", string(filter.State))
	}
	if filter.Type != "" {
		q.Set("tipo", filter.Type)
	}
	q.Set("pagina", strconv.Itoa(filter.Page))
	q.Set("limite", strconv.Itoa(filter.Limit))

	var page SagaPage
	if err := c.do(ctx, ServiceSagas, http.MethodGet, "/saga/", "", q, nil, &page); err != nil {
		return nil, err
	}
	if page.Sagas == nil {
		page.Sagas = []Saga{}
	}
	for i := range page.Sagas {
		emitEvent(c.events, func() {
			if c.events.OnSnapshot != nil {
				c.events.OnSnapshot(page.Sagas[i].ID, page.Sagas[i].State)
			}
		})
	}
	return &page, nil
}

// GetSaga calls GET /saga/{id}/status.
func (c *HTTPClient) GetSaga(ctx context.Context, id string) (*Saga, error) {
	path := "/saga/" + url.PathEscape(id) + "/status"

	var sg Saga
	err := c.do(ctx, ServiceSagas, http.MethodGet, path, "/saga/{id}/status", nil, nil, &sg)
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil, NewNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	if sg.ID == "" {
		return nil, NewDecodeError(string(ServiceSagas), path, errors.New("missing saga_id"))
	}

	emitEvent(c.events, func() {
		if c.events.OnSnapshot != nil {
			c.events.OnSnapshot(sg.ID, sg.State)
		}
	})
	return &sg, nil
}

// CountByState reads the listing total for each state.
func (c *HTTPClient) CountByState(ctx context.Context, states ...SagaState) (int, error) {
	total := 0
	for _, st := range states {
		page, err := c.ListSagas(ctx, SagaFilter{State: st, Limit: 1})
		if err != nil {
			return 0, err
		}
		total += page.Total
	}
	return total, nil
}

// CreateSaga validates req and calls POST /saga/crear-campana-completa.
func (c *HTTPClient) CreateSaga(ctx context.Context, req CreateSagaRequest) (*CreateSagaResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var resp CreateSagaResponse
	if err := c.do(ctx, ServiceSagas, http.MethodPost, "/saga/crear-campana-completa", "", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteSaga calls DELETE /saga/{id}.
func (c *HTTPClient) DeleteSaga(ctx context.Context, id string) error {
	err := c.do(ctx, ServiceSagas, http.MethodDelete, "/saga/"+url.PathEscape(id), "/saga/{id}", nil, nil, nil)
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return NewNotFoundError(id)
	}
	return err
}

// CleanupSagas calls DELETE /saga/cleanup.
func (c *HTTPClient) CleanupSagas(ctx context.Context) (*CleanupResult, error) {
	return c.cleanup(ctx, ServiceSagas, "/saga/cleanup")
}

// CleanupAll calls DELETE /saga/cleanup-all, which clears sagas, campaigns
// and payments in one request.
func (c *HTTPClient) CleanupAll(ctx context.Context) (*CleanupAllResult, error) {
	var res CleanupAllResult
	if err := c.do(ctx, ServiceSagas, http.MethodDelete, "/saga/cleanup-all", "", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CleanupCampaigns calls DELETE /api/campaigns/cleanup/ on the campaigns service.
func (c *HTTPClient) CleanupCampaigns(ctx context.Context) (*CleanupResult, error) {
	return c.cleanup(ctx, ServiceCampaigns, "/api/campaigns/cleanup/")
}

// CleanupPayments calls DELETE /pagos/cleanup on the payments service.
func (c *HTTPClient) CleanupPayments(ctx context.Context) (*CleanupResult, error) {
	return c.cleanup(ctx, ServicePayments, "/pagos/cleanup")
}

func (c *HTTPClient) cleanup(ctx context.Context, service ServiceName, path string) (*CleanupResult, error) {
	var res CleanupResult
	if err := c.do(ctx, service, http.MethodDelete, path, "", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListCampaigns calls GET /api/campaigns/ on the campaigns service.
func (c *HTTPClient) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var body struct {
		Campaigns []Campaign `json:"campaigns"`
	}
	if err := c.do(ctx, ServiceCampaigns, http.MethodGet, "/api/campaigns/", "", nil, nil, &body); err != nil {
		return nil, err
	}
	return body.Campaigns, nil
}

// ListPayments calls GET /pagos/ on the payments service.
func (c *HTTPClient) ListPayments(ctx context.Context) ([]Payment, error) {
	var body struct {
		Payments []Payment `json:"pagos"`
	}
	if err := c.do(ctx, ServicePayments, http.MethodGet, "/pagos/", "", nil, nil, &body); err != nil {
		return nil, err
	}
	return body.Payments, nil
}

// ListReports calls GET /reports on the reporting service.
func (c *HTTPClient) ListReports(ctx context.Context) ([]Report, error) {
	var reports []Report
	if err := c.do(ctx, ServiceReporting, http.MethodGet, "/reports", "", nil, nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// Health calls GET /health on service. A nil error means the service answered 2xx.
func (c *HTTPClient) Health(ctx context.Context, service ServiceName) error {
	return c.do(ctx, service, http.MethodGet, "/health", "", nil, nil, nil)
}

// do sends one request. out may be nil to discard the body.
//
// The endpoint reported to spans and events uses route when set, so ids
// do not leak into metric labels.
func (c *HTTPClient) do(ctx context.Context, service ServiceName, method, path, route string, query url.Values, body, out any) error {
	svc := string(service)
	if route == "" {
		route = path
	}
	endpoint := method + " " + route

	base := c.endpoints.base(service)
	if base == "" {
		return NewTransportError(svc, path, errNoEndpoint)
	}
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, svc+" "+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("saga.service", svc),
		attribute.String("http.method", method),
		attribute.String("http.url", target),
	)

	emitEvent(c.events, func() {
		if c.events.OnRequestStart != nil {
			c.events.OnRequestStart(svc, endpoint)
		}
	})
	start := time.Now()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emitEvent(c.events, func() {
			if c.events.OnRequestFailed != nil {
				c.events.OnRequestFailed(ctx, svc, endpoint, err, time.Since(start))
			}
		})
		return err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fail(fmt.Errorf("marshal body: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fail(NewTransportError(svc, target, err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorLength))
		return fail(NewHTTPStatusError(svc, target, resp.StatusCode, errorDetail(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fail(NewDecodeError(svc, target, err))
		}
	}

	emitEvent(c.events, func() {
		if c.events.OnRequestComplete != nil {
			c.events.OnRequestComplete(ctx, svc, endpoint, resp.StatusCode, time.Since(start))
		}
	})
	return nil
}

// errorDetail extracts FastAPI's `detail` field, falling back to the raw body.
func errorDetail(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return TruncateMessage(s)
		}
		return TruncateMessage(string(body.Detail))
	}
	return TruncateMessage(string(raw))
}

// Ensure HTTPClient implements Source.
var _ Source = (*HTTPClient)(nil)
