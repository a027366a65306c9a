package saga

import "time"

// Hard limits.
const (
	// DefaultHTTPTimeout bounds a single request to any upstream service.
	DefaultHTTPTimeout = 10 * time.Second

	// MaxErrorLength is the maximum length of an error message kept for display (2KB).
	MaxErrorLength = 2048

	// MaxPageSize caps the limit sent to the saga listing endpoint.
	MaxPageSize = 100

	// DefaultPageSize matches the orchestrator's default `limite`.
	DefaultPageSize = 10
)

// SagaState is the orchestrator's overall saga state (`estado`).
type SagaState string

const (
	StateStarted         SagaState = "INICIADA"
	StateCampaignCreated SagaState = "CAMPAÑA_CREADA"
	StatePaymentDone     SagaState = "PAGO_PROCESADO"
	StateReportDone      SagaState = "REPORTE_GENERADO"
	StateCompleted       SagaState = "COMPLETADA"
	StateFailed          SagaState = "FALLIDA"
	StateCompensating    SagaState = "COMPENSANDO"
	StateCompensated     SagaState = "COMPENSADA"
)

// KnownStates lists every state the orchestrator is known to emit, in lifecycle order.
var KnownStates = []SagaState{
	StateStarted,
	StateCampaignCreated,
	StatePaymentDone,
	StateReportDone,
	StateCompleted,
	StateFailed,
	StateCompensating,
	StateCompensated,
}

// IsTerminal reports whether no further transitions are expected.
func (s SagaState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCompensated:
		return true
	}
	return false
}

// StepKind is the `tipo` tag of a saga step.
type StepKind string

const (
	StepCreateCampaign StepKind = "CREAR_CAMPAÑA"
	StepProcessPayment StepKind = "PROCESAR_PAGO"
	StepGenerateReport StepKind = "GENERAR_REPORTE"
)

// CompensationKind is the `tipo` tag of a compensation record.
type CompensationKind string

const (
	CompensationCancelCampaign     CompensationKind = "CANCELAR_CAMPAÑA"
	CompensationCompensateCampaign CompensationKind = "COMPENSAR_CAMPAÑA"
	CompensationRevertPayment      CompensationKind = "REVERTIR_PAGO"
	CompensationCancelReport       CompensationKind = "CANCELAR_REPORTE"
)

// PaymentState is the `estado` carried inside a payment step's result.
type PaymentState string

const (
	PaymentPending   PaymentState = "PENDIENTE"
	PaymentSucceeded PaymentState = "EXITOSO"
	PaymentFailed    PaymentState = "FALLIDO"
	PaymentReversed  PaymentState = "REVERTIDO"
)

// Resolved reports whether the payment reached a final outcome.
func (p PaymentState) Resolved() bool {
	return p == PaymentSucceeded || p == PaymentFailed
}

// DisplayLabel is the three-way label shown for a step or compensation.
type DisplayLabel string

const (
	LabelPending   DisplayLabel = "Pending"
	LabelSucceeded DisplayLabel = "Succeeded"
	LabelFailed    DisplayLabel = "Failed"
)

// Icon returns the glyph rendered next to the label.
func (l DisplayLabel) Icon() string {
	switch l {
	case LabelSucceeded:
		return "✅"
	case LabelFailed:
		return "❌"
	default:
		return "⏳"
	}
}

// Annotations attached by the reconciliation rules.
const (
	NoteAwaitingPaymentResolution = "awaiting payment resolution (10–15s)"
	NoteSagaFailed                = "saga failed — payment not processed"
	NotePaymentFailed             = "not executed — payment failed"
	NoteAwaitingPayment           = "awaiting payment completion"
	NoteAwaitingExecution         = "awaiting execution"

	NoteCampaignCancelled = "campaign marked CANCELLED"
	NotePaymentReversed   = "payment marked REVERSED"
	NoteReportCancelled   = "report marked CANCELLED"
)
