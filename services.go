package saga

// Money is an amount with its currency.
type Money struct {
	Amount   float64 `json:"monto"`
	Currency string  `json:"moneda"`
}

// Campaign is a record from the campaigns service, used for dashboard counts.
type Campaign struct {
	ID          string     `json:"id"`
	Name        string     `json:"nombre"`
	Description string     `json:"descripcion,omitempty"`
	Type        string     `json:"tipo"`
	State       string     `json:"estado"`
	Budget      Money      `json:"presupuesto"`
	AffiliateID string     `json:"id_afiliado"`
	CreatedAt   *Timestamp `json:"fecha_creacion,omitempty"`
}

// Payment is a record from the payments service, used for dashboard counts.
type Payment struct {
	ID           string     `json:"id"`
	State        string     `json:"estado"`
	Amount       float64    `json:"monto"`
	Currency     string     `json:"moneda"`
	AffiliateID  string     `json:"id_afiliado"`
	Reference    string     `json:"referencia_pago"`
	CreatedAt    *Timestamp `json:"fecha_creacion,omitempty"`
	ProcessedAt  *Timestamp `json:"fecha_procesamiento,omitempty"`
	ErrorMessage string     `json:"mensaje_error,omitempty"`
}

// Report is a record from the reporting service, used for dashboard counts.
type Report struct {
	ID         string     `json:"id"`
	ReportType string     `json:"tipo_reporte,omitempty"`
	State      string     `json:"estado,omitempty"`
	CreatedAt  *Timestamp `json:"fecha_creacion,omitempty"`
}

// CleanupResult is the body returned by the bulk delete endpoints.
type CleanupResult struct {
	Message string `json:"mensaje"`

	// Services disagree on gender agreement of the count field.
	DeletedFeminine  int `json:"total_eliminadas,omitempty"`
	DeletedMasculine int `json:"total_eliminados,omitempty"`
}

// Total returns the number of deleted records.
func (c CleanupResult) Total() int {
	if c.DeletedFeminine > 0 {
		return c.DeletedFeminine
	}
	return c.DeletedMasculine
}

// CleanupAllResult is the body of the orchestrator's combined cleanup. The
// orchestrator clears campaigns and payments itself and reports 0 for a
// service it could not reach.
type CleanupAllResult struct {
	Message          string `json:"mensaje"`
	SagasDeleted     int    `json:"sagas_eliminadas"`
	CampaignsDeleted int    `json:"campanas_eliminadas"`
	PaymentsDeleted  int    `json:"pagos_eliminados"`
}

// ServiceName identifies an upstream service.
type ServiceName string

const (
	ServiceSagas     ServiceName = "sagas"
	ServiceCampaigns ServiceName = "campaigns"
	ServicePayments  ServiceName = "payments"
	ServiceReporting ServiceName = "reporting"
)

// AllServices lists the services in display order.
var AllServices = []ServiceName{ServiceSagas, ServiceCampaigns, ServicePayments, ServiceReporting}
