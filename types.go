// Package saga is a read-side client for an external saga orchestrator.
//
// The orchestrator runs multi-step business transactions (create campaign,
// process payment, generate report) and exposes them as JSON snapshots. This
// package decodes those snapshots, fetches them from the orchestrator API or
// straight from its database, and reconciles each step and compensation into
// a single display label.
//
// Key features:
//   - Pure reconciliation: DeriveDisplayStatus is a function of the snapshot only
//   - Typed step results: each step kind decodes into its own result shape
//   - Pluggable sources: HTTP API, PostgreSQL saga_log table, or in-memory
//   - Explicit application state with an optional snapshot cache
//
// Example:
//
//	client := saga.NewHTTPClient(saga.Endpoints{Sagas: "http://localhost:8090"}, saga.ClientOptions{})
//	s, err := client.GetSaga(ctx, id)
//	if err != nil {
//	    return err
//	}
//	rec := saga.DeriveDisplayStatus(s)
//	for i, st := range rec.Steps {
//	    fmt.Println(s.Steps[i].Kind, st.Icon, st.Label, st.Note)
//	}
package saga

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Saga is a read-only snapshot of an orchestrator saga.
type Saga struct {
	ID            string         `json:"saga_id"`
	Type          string         `json:"tipo"`
	State         SagaState      `json:"estado"`
	StartTime     Timestamp      `json:"fecha_inicio"`
	EndTime       *Timestamp     `json:"fecha_fin,omitempty"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	Steps         []Step         `json:"pasos"`
	Compensations []Compensation `json:"compensaciones"`
}

// PaymentStep returns the first payment-kind step, if any.
func (s *Saga) PaymentStep() (*Step, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Steps {
		if s.Steps[i].Kind == StepProcessPayment {
			return &s.Steps[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of s: no slice, pointer or result is shared.
func (s *Saga) Clone() *Saga {
	if s == nil {
		return nil
	}
	c := *s
	c.EndTime = clonePtr(s.EndTime)
	c.ErrorMessage = clonePtr(s.ErrorMessage)
	if s.Steps != nil {
		c.Steps = make([]Step, len(s.Steps))
		for i := range s.Steps {
			c.Steps[i] = s.Steps[i].clone()
		}
	}
	if s.Compensations != nil {
		c.Compensations = make([]Compensation, len(s.Compensations))
		for i := range s.Compensations {
			c.Compensations[i] = s.Compensations[i].clone()
		}
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// Step is one action within a saga.
// Succeeded is tri-state: nil means the orchestrator has not reported an outcome.
//
// A decoded Step keeps its `resultado` payload as received, and marshals it
// back unchanged, so fields the typed results do not model survive a round
// trip through the snapshot cache.
type Step struct {
	ID         string
	Kind       StepKind
	Succeeded  *bool
	Error      *string
	ExecutedAt *Timestamp
	Result     StepResult

	payload json.RawMessage
}

func (s Step) clone() Step {
	c := s
	c.Succeeded = clonePtr(s.Succeeded)
	c.Error = clonePtr(s.Error)
	c.ExecutedAt = clonePtr(s.ExecutedAt)
	c.Result = cloneResult(s.Result)
	c.payload = cloneRaw(s.payload)
	return c
}

type stepWire struct {
	ID         string          `json:"id,omitempty"`
	Kind       StepKind        `json:"tipo"`
	Succeeded  *bool           `json:"exitoso"`
	Error      *string         `json:"error,omitempty"`
	ExecutedAt *Timestamp      `json:"fecha_ejecucion,omitempty"`
	Result     json.RawMessage `json:"resultado"`
}

// UnmarshalJSON decodes `resultado` into the variant matching `tipo`.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Step{
		ID:         w.ID,
		Kind:       w.Kind,
		Succeeded:  w.Succeeded,
		Error:      w.Error,
		ExecutedAt: w.ExecutedAt,
		Result:     decodeStepResult(w.Kind, w.Result),
	}
	if s.Result != nil {
		s.payload = cloneRaw(bytes.TrimSpace(w.Result))
	}
	return nil
}

// MarshalJSON writes the orchestrator wire shape.
func (s Step) MarshalJSON() ([]byte, error) {
	w := stepWire{
		ID:         s.ID,
		Kind:       s.Kind,
		Succeeded:  s.Succeeded,
		Error:      s.Error,
		ExecutedAt: s.ExecutedAt,
		Result:     json.RawMessage("null"),
	}
	if s.payload != nil {
		w.Result = s.payload
	} else if s.Result != nil {
		b, err := json.Marshal(s.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		w.Result = b
	}
	return json.Marshal(w)
}

// Payment returns the payment result when the step is a payment with a typed result.
func (s *Step) Payment() (*PaymentResult, bool) {
	if s == nil || s.Kind != StepProcessPayment {
		return nil, false
	}
	p, ok := s.Result.(*PaymentResult)
	return p, ok
}

// StepResult is the kind-specific `resultado` payload of a step.
// Implementations: *CampaignResult, *PaymentResult, *ReportResult, *RawResult.
type StepResult interface {
	stepResult()
}

// CampaignResult is the result of a CREAR_CAMPAÑA step.
type CampaignResult struct {
	ID         string `json:"id,omitempty"`
	CampaignID string `json:"id_campana,omitempty"`
	State      string `json:"estado,omitempty"`
}

// PaymentResult is the result of a PROCESAR_PAGO step. Its State is
// resolved asynchronously and may lag or lead the step's own flag.
type PaymentResult struct {
	PaymentID string       `json:"id_pago,omitempty"`
	State     PaymentState `json:"estado,omitempty"`
	Amount    float64      `json:"monto,omitempty"`
	Currency  string       `json:"moneda,omitempty"`
	Reference string       `json:"referencia_pago,omitempty"`
}

// ReportResult is the result of a GENERAR_REPORTE step.
type ReportResult struct {
	ID         string `json:"id,omitempty"`
	State      string `json:"estado,omitempty"`
	ReportType string `json:"tipo_reporte,omitempty"`
}

// RawResult holds a payload for an unknown kind, or one that did not fit its kind's shape.
type RawResult struct {
	Raw json.RawMessage
}

func (*CampaignResult) stepResult() {}
func (*PaymentResult) stepResult()  {}
func (*ReportResult) stepResult()   {}
func (*RawResult) stepResult()      {}

func cloneResult(r StepResult) StepResult {
	switch v := r.(type) {
	case *CampaignResult:
		return clonePtr(v)
	case *PaymentResult:
		return clonePtr(v)
	case *ReportResult:
		return clonePtr(v)
	case *RawResult:
		if v == nil {
			return v
		}
		return &RawResult{Raw: cloneRaw(v.Raw)}
	}
	return r
}

// MarshalJSON writes the payload back unchanged.
func (r *RawResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

func decodeStepResult(kind StepKind, raw json.RawMessage) StepResult {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var target StepResult
	switch kind {
	case StepCreateCampaign:
		target = &CampaignResult{}
	case StepProcessPayment:
		target = &PaymentResult{}
	case StepGenerateReport:
		target = &ReportResult{}
	default:
		return &RawResult{Raw: append(json.RawMessage(nil), trimmed...)}
	}

	// An object with a mistyped field keeps the fields that did decode, so a
	// partial payment result still carries its estado. Anything else that
	// does not match the kind's shape is kept raw rather than failing the
	// whole snapshot.
	if err := json.Unmarshal(trimmed, target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if trimmed[0] == '{' && errors.As(err, &typeErr) {
			return target
		}
		return &RawResult{Raw: append(json.RawMessage(nil), trimmed...)}
	}
	return target
}

// Compensation is a corrective action run by the orchestrator after a failure.
type Compensation struct {
	ID         string           `json:"id,omitempty"`
	Kind       CompensationKind `json:"tipo"`
	Succeeded  *bool            `json:"exitoso"`
	Error      *string          `json:"error,omitempty"`
	ExecutedAt *Timestamp       `json:"fecha_ejecucion,omitempty"`
	Result     json.RawMessage  `json:"resultado,omitempty"`
}

func (c Compensation) clone() Compensation {
	cp := c
	cp.Succeeded = clonePtr(c.Succeeded)
	cp.Error = clonePtr(c.Error)
	cp.ExecutedAt = clonePtr(c.ExecutedAt)
	cp.Result = cloneRaw(c.Result)
	return cp
}

// SagaFilter is used to list sagas.
type SagaFilter struct {
	State SagaState
	Type  string
	Page  int
	Limit int
}

// normalize applies the orchestrator's defaults (page 1, limit 10, capped).
func (f SagaFilter) normalize() SagaFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}

// SagaPage is one page of a saga listing.
type SagaPage struct {
	Sagas []Saga `json:"sagas"`
	Total int    `json:"total"`
	Page  int    `json:"pagina"`
	Limit int    `json:"limite"`
}

// Timestamp accepts the orchestrator's timezone-less ISO timestamps as well as RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses any of the layouts the orchestrator is known to emit.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
