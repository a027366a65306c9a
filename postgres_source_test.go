package saga

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sagaColumns = []string{"id", "tipo", "estado", "pasos", "compensaciones", "fecha_inicio", "fecha_fin", "error_message"}

func newMockSource(t *testing.T) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src, err := NewPostgresSource(db, "")
	require.NoError(t, err)
	return src, mock
}

func TestNewPostgresSourceRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresSource(db, "saga_log; DROP TABLE x")
	assert.Error(t, err)

	src, err := NewPostgresSource(db, "saga_log_v2")
	require.NoError(t, err)
	assert.True(t, src.IsLive())
}

func TestPostgresSource_GetSaga(t *testing.T) {
	src, mock := newMockSource(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	pasos := `[{"tipo":"PROCESAR_PAGO","exitoso":true,"resultado":{"estado":"EXITOSO"}},{"tipo":"GENERAR_REPORTE","exitoso":null}]`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id::text, tipo, estado, pasos, compensaciones, fecha_inicio, fecha_fin, error_message FROM saga_log WHERE id::text = $1`)).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(sagaColumns).
			AddRow("s-1", "CREAR_CAMPANA_COMPLETA", "PAGO_PROCESADO", []byte(pasos), []byte(`[]`), start, nil, nil))

	sg, err := src.GetSaga(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, StatePaymentDone, sg.State)
	assert.True(t, start.Equal(sg.StartTime.Time))
	assert.Nil(t, sg.EndTime)
	assert.Nil(t, sg.ErrorMessage)
	require.Len(t, sg.Steps, 2)

	rec := DeriveDisplayStatus(sg)
	assert.Equal(t, LabelSucceeded, rec.Steps[0].Label)
	assert.Equal(t, NoteAwaitingExecution, rec.Steps[1].Note)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_GetSagaNotFound(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(`FROM saga_log WHERE id::text = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := src.GetSaga(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_GetSagaBadJSON(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(`FROM saga_log WHERE id::text = \$1`).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(sagaColumns).
			AddRow("s-1", "X", "FALLIDA", []byte(`{not json`), nil, nil, nil, "boom"))

	_, err := src.GetSaga(context.Background(), "s-1")
	assert.Error(t, err)
}

func TestPostgresSource_ListSagas(t *testing.T) {
	src, mock := newMockSource(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM saga_log WHERE 1=1 AND estado = $1`)).
		WithArgs("FALLIDA").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM saga_log WHERE 1=1 AND estado = $1 ORDER BY fecha_inicio DESC LIMIT 5 OFFSET 5`)).
		WithArgs("FALLIDA").
		WillReturnRows(sqlmock.NewRows(sagaColumns).
			AddRow("s-6", "CREAR_CAMPANA_COMPLETA", "FALLIDA", []byte(`[]`), []byte(`[{"tipo":"REVERTIR_PAGO","exitoso":true}]`), start, end, "payment failed").
			AddRow("s-7", "CREAR_CAMPANA_COMPLETA", "FALLIDA", nil, nil, start, nil, nil))

	page, err := src.ListSagas(context.Background(), SagaFilter{State: StateFailed, Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Sagas, 2)

	first := page.Sagas[0]
	require.NotNil(t, first.EndTime)
	require.NotNil(t, first.ErrorMessage)
	assert.Equal(t, "payment failed", *first.ErrorMessage)
	require.Len(t, first.Compensations, 1)
	assert.Equal(t, CompensationRevertPayment, first.Compensations[0].Kind)

	assert.NotNil(t, page.Sagas[1].Steps)
	assert.Empty(t, page.Sagas[1].Steps)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_ListSagasByType(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM saga_log WHERE 1=1 AND tipo = $1`)).
		WithArgs("CREAR_CAMPANA_COMPLETA").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE 1=1 AND tipo = $1 ORDER BY fecha_inicio DESC LIMIT 10`)).
		WithArgs("CREAR_CAMPANA_COMPLETA").
		WillReturnRows(sqlmock.NewRows(sagaColumns))

	page, err := src.ListSagas(context.Background(), SagaFilter{Type: "CREAR_CAMPANA_COMPLETA"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Sagas)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_CountByState(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM saga_log WHERE estado IN ($1, $2)`)).
		WithArgs("FALLIDA", "COMPENSADA").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := src.CountByState(context.Background(), StateFailed, StateCompensated)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = src.CountByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, mock.ExpectationsWereMet())
}
