package saga

// DisplayStatus is the derived, never persisted, presentation state of a step
// or compensation.
type DisplayStatus struct {
	Label DisplayLabel `json:"label"`
	Icon  string       `json:"icon"`
	Note  string       `json:"note,omitempty"`

	// Detail carries raw backend facts a view may print next to the label:
	// the record's error string and, for payments, the nested result state.
	Detail Detail `json:"detail"`
}

// Detail is informational only; it never influences Label.
type Detail struct {
	Error        string       `json:"error,omitempty"`
	PaymentState PaymentState `json:"paymentState,omitempty"`
}

// RefKind distinguishes steps from compensations in a Ref.
type RefKind string

const (
	RefStep         RefKind = "step"
	RefCompensation RefKind = "compensation"
)

// Ref addresses one step or compensation by position in its saga.
type Ref struct {
	Kind  RefKind
	Index int
}

// Reconciliation is the output of DeriveDisplayStatus. Steps and
// Compensations are aligned index-for-index with the saga's slices.
type Reconciliation struct {
	SagaID        string          `json:"sagaId"`
	State         SagaState       `json:"state"`
	Steps         []DisplayStatus `json:"steps"`
	Compensations []DisplayStatus `json:"compensations"`
}

// Lookup returns the display status for ref.
func (r Reconciliation) Lookup(ref Ref) (DisplayStatus, bool) {
	var list []DisplayStatus
	switch ref.Kind {
	case RefStep:
		list = r.Steps
	case RefCompensation:
		list = r.Compensations
	default:
		return DisplayStatus{}, false
	}
	if ref.Index < 0 || ref.Index >= len(list) {
		return DisplayStatus{}, false
	}
	return list[ref.Index], true
}

// DeriveDisplayStatus reconciles every step and compensation of s into a
// display status. It is a pure function of s: no state is kept between calls
// and it never panics, whatever fields are missing.
//
// Precedence for a report step is: overall saga failure, then the sibling
// payment's outcome, then the step's own flag.
func DeriveDisplayStatus(s *Saga) Reconciliation {
	if s == nil {
		return Reconciliation{Steps: []DisplayStatus{}, Compensations: []DisplayStatus{}}
	}

	rec := Reconciliation{
		SagaID:        s.ID,
		State:         s.State,
		Steps:         make([]DisplayStatus, len(s.Steps)),
		Compensations: make([]DisplayStatus, len(s.Compensations)),
	}

	for i := range s.Steps {
		rec.Steps[i] = reconcileStep(s, &s.Steps[i])
	}
	for i := range s.Compensations {
		rec.Compensations[i] = reconcileCompensation(&s.Compensations[i])
	}
	return rec
}

func reconcileStep(s *Saga, step *Step) DisplayStatus {
	var ds DisplayStatus
	switch step.Kind {
	case StepProcessPayment:
		ds = reconcilePayment(step)
	case StepGenerateReport:
		ds = reconcileReport(s, step)
	default:
		ds = fromFlag(step.Succeeded, "")
	}
	if step.Error != nil {
		ds.Detail.Error = *step.Error
	}
	return ds
}

func reconcilePayment(step *Step) DisplayStatus {
	state := paymentState(step)
	var ds DisplayStatus
	switch state {
	case PaymentSucceeded:
		ds = newStatus(LabelSucceeded, "")
	case PaymentFailed:
		ds = newStatus(LabelFailed, "")
	default:
		ds = newStatus(LabelPending, NoteAwaitingPaymentResolution)
	}
	ds.Detail.PaymentState = state
	return ds
}

func reconcileReport(s *Saga, step *Step) DisplayStatus {
	if s.State == StateFailed {
		return newStatus(LabelFailed, NoteSagaFailed)
	}

	// A missing sibling is treated like an unresolved one.
	var sibling PaymentState
	if payment, ok := s.PaymentStep(); ok {
		sibling = paymentState(payment)
	}

	switch {
	case sibling == PaymentFailed:
		return newStatus(LabelFailed, NotePaymentFailed)
	case !sibling.Resolved():
		return newStatus(LabelPending, NoteAwaitingPayment)
	default:
		return fromFlag(step.Succeeded, NoteAwaitingExecution)
	}
}

func reconcileCompensation(c *Compensation) DisplayStatus {
	ds := fromFlag(c.Succeeded, "")
	ds.Note = compensationNote(c.Kind)
	if c.Error != nil {
		ds.Detail.Error = *c.Error
	}
	return ds
}

func compensationNote(kind CompensationKind) string {
	switch kind {
	case CompensationCancelCampaign, CompensationCompensateCampaign:
		return NoteCampaignCancelled
	case CompensationRevertPayment:
		return NotePaymentReversed
	case CompensationCancelReport:
		return NoteReportCancelled
	}
	return ""
}

// paymentState reads the nested payment outcome; "" when there is none.
func paymentState(step *Step) PaymentState {
	if p, ok := step.Payment(); ok && p != nil {
		return p.State
	}
	return ""
}

// fromFlag maps the tri-state flag directly. pendingNote annotates the absent case.
func fromFlag(flag *bool, pendingNote string) DisplayStatus {
	switch {
	case flag == nil:
		return newStatus(LabelPending, pendingNote)
	case *flag:
		return newStatus(LabelSucceeded, "")
	default:
		return newStatus(LabelFailed, "")
	}
}

func newStatus(label DisplayLabel, note string) DisplayStatus {
	return DisplayStatus{Label: label, Icon: label.Icon(), Note: note}
}

// Summary counts labels across a reconciliation.
type Summary struct {
	Steps         map[DisplayLabel]int `json:"steps"`
	Compensations map[DisplayLabel]int `json:"compensations"`
}

// Summarize counts labels per kind, for list views.
func Summarize(rec Reconciliation) Summary {
	sum := Summary{
		Steps:         map[DisplayLabel]int{},
		Compensations: map[DisplayLabel]int{},
	}
	for _, ds := range rec.Steps {
		sum.Steps[ds.Label]++
	}
	for _, ds := range rec.Compensations {
		sum.Compensations[ds.Label]++
	}
	return sum
}
