package saga

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CampaignType is the enumerated `tipo` of a campaign.
type CampaignType string

const (
	CampaignPromotional CampaignType = "PROMOCIONAL"
	CampaignLoyalty     CampaignType = "FIDELIZACION"
	CampaignAcquisition CampaignType = "ADQUISICION"
	CampaignRetention   CampaignType = "RETENCION"
)

// ValidCampaignTypes lists the accepted campaign types.
var ValidCampaignTypes = []CampaignType{
	CampaignPromotional,
	CampaignLoyalty,
	CampaignAcquisition,
	CampaignRetention,
}

// ValidateCampaignType returns a *ValidationError unless t is a known campaign type.
func ValidateCampaignType(t string) error {
	for _, v := range ValidCampaignTypes {
		if string(v) == t {
			return nil
		}
	}
	names := make([]string, len(ValidCampaignTypes))
	for i, v := range ValidCampaignTypes {
		names[i] = string(v)
	}
	return NewValidationError("campana.tipo", "%q is not one of %s", t, strings.Join(names, ", "))
}

// DefaultCurrency is used when a request leaves the currency empty.
const DefaultCurrency = "USD"

// DefaultReportType is the report generated by the dashboard.
const DefaultReportType = "metricas_generales"

// DefaultSagaTimeoutMinutes mirrors the orchestrator's default.
const DefaultSagaTimeoutMinutes = 30

// CampaignSpec is the `campana` section of a create request.
type CampaignSpec struct {
	Name        string `json:"nombre"`
	Description string `json:"descripcion"`
	Type        string `json:"tipo"`
	Budget      Money  `json:"presupuesto"`
	StartDate   string `json:"fecha_inicio"`
	EndDate     string `json:"fecha_fin"`
	AffiliateID string `json:"id_afiliado"`
}

// PaymentSpec is the `pago` section of a create request.
type PaymentSpec struct {
	Amount      float64 `json:"monto"`
	Currency    string  `json:"moneda"`
	AffiliateID string  `json:"id_afiliado"`
	Reference   string  `json:"referencia_pago"`
}

// ReportSpec is the `reporte` section of a create request.
type ReportSpec struct {
	StartDate  string `json:"fecha_inicio"`
	EndDate    string `json:"fecha_fin"`
	ReportType string `json:"tipo_reporte"`
}

// CreateSagaRequest is the body of POST /saga/crear-campana-completa.
type CreateSagaRequest struct {
	Campaign       CampaignSpec `json:"campana"`
	Payment        PaymentSpec  `json:"pago"`
	Report         ReportSpec   `json:"reporte"`
	TimeoutMinutes int          `json:"timeout_minutos,omitempty"`
}

// CreateSagaResponse is the orchestrator's reply to a create request.
type CreateSagaResponse struct {
	OK      bool      `json:"exito"`
	SagaID  string    `json:"saga_id"`
	State   SagaState `json:"estado"`
	Message string    `json:"mensaje"`
}

// Validate checks the request before it is sent. It fills defaulted fields in place.
func (r *CreateSagaRequest) Validate() error {
	if strings.TrimSpace(r.Campaign.Name) == "" {
		return NewValidationError("campana.nombre", "required")
	}
	if strings.TrimSpace(r.Campaign.AffiliateID) == "" {
		return NewValidationError("campana.id_afiliado", "required")
	}
	if err := ValidateCampaignType(r.Campaign.Type); err != nil {
		return err
	}
	if r.Campaign.Budget.Amount <= 0 {
		return NewValidationError("campana.presupuesto.monto", "must be positive, got %v", r.Campaign.Budget.Amount)
	}
	if r.Payment.Amount <= 0 {
		return NewValidationError("pago.monto", "must be positive, got %v", r.Payment.Amount)
	}

	start, err := parseRequestDate(r.Campaign.StartDate)
	if err != nil {
		return NewValidationError("campana.fecha_inicio", "%v", err)
	}
	end, err := parseRequestDate(r.Campaign.EndDate)
	if err != nil {
		return NewValidationError("campana.fecha_fin", "%v", err)
	}
	if end.Before(start) {
		return NewValidationError("campana.fecha_fin", "must not be before fecha_inicio")
	}

	if r.Campaign.Budget.Currency == "" {
		r.Campaign.Budget.Currency = DefaultCurrency
	}
	if r.Payment.Currency == "" {
		r.Payment.Currency = DefaultCurrency
	}
	if r.Payment.AffiliateID == "" {
		r.Payment.AffiliateID = r.Campaign.AffiliateID
	}
	if r.Report.ReportType == "" {
		r.Report.ReportType = DefaultReportType
	}
	if r.TimeoutMinutes <= 0 {
		r.TimeoutMinutes = DefaultSagaTimeoutMinutes
	}
	return nil
}

func parseRequestDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Time, nil
}

// CampaignInput is what an operator supplies to build a create request.
type CampaignInput struct {
	Name          string
	Description   string
	Type          string
	AffiliateID   string
	Budget        float64
	PaymentAmount float64
	Start         time.Time
	End           time.Time
}

// NewCreateSagaRequest builds a full request from operator input, the same
// way the dashboard form does: campaign dates cover whole days, the payment
// reference is generated, and the report spans the campaign.
func NewCreateSagaRequest(in CampaignInput) CreateSagaRequest {
	if in.Type == "" {
		in.Type = string(CampaignPromotional)
	}
	startDay := in.Start.Format("2006-01-02")
	endDay := in.End.Format("2006-01-02")
	return CreateSagaRequest{
		Campaign: CampaignSpec{
			Name:        in.Name,
			Description: in.Description,
			Type:        in.Type,
			Budget:      Money{Amount: in.Budget, Currency: DefaultCurrency},
			StartDate:   startDay + "T00:00:00",
			EndDate:     endDay + "T23:59:59",
			AffiliateID: in.AffiliateID,
		},
		Payment: PaymentSpec{
			Amount:      in.PaymentAmount,
			Currency:    DefaultCurrency,
			AffiliateID: in.AffiliateID,
			Reference:   "test_" + uuid.NewString(),
		},
		Report: ReportSpec{
			StartDate:  startDay,
			EndDate:    endDay,
			ReportType: DefaultReportType,
		},
		TimeoutMinutes: DefaultSagaTimeoutMinutes,
	}
}

// NewTestSagaRequest builds a valid request with a random campaign type.
// rng may be nil, in which case the global source is used.
func NewTestSagaRequest(rng *rand.Rand, now time.Time) CreateSagaRequest {
	var idx int
	if rng != nil {
		idx = rng.Intn(len(ValidCampaignTypes))
	} else {
		idx = rand.Intn(len(ValidCampaignTypes))
	}
	typ := ValidCampaignTypes[idx]

	year := now.Year()
	return NewCreateSagaRequest(CampaignInput{
		Name:          fmt.Sprintf("Test campaign - %s", typ),
		Description:   fmt.Sprintf("Test campaign created from the dashboard (%s)", typ),
		Type:          string(typ),
		AffiliateID:   "afiliado_test_" + uuid.NewString(),
		Budget:        1000,
		PaymentAmount: 1000,
		Start:         time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	})
}
