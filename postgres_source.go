package saga

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTableName is the orchestrator's saga table.
const DefaultTableName = "saga_log"

// PostgresSource implements Source by reading the orchestrator's saga table
// directly. It never writes.
type PostgresSource struct {
	db        *sql.DB
	tableName string
}

// NewPostgresSource creates a new PostgresSource.
// tableName defaults to "saga_log" if empty.
func NewPostgresSource(db *sql.DB, tableName string) (*PostgresSource, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}
	if !validTableName.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name: %s", tableName)
	}
	return &PostgresSource{db: db, tableName: tableName}, nil
}

// IsLive returns true - the table is the orchestrator's own record.
func (s *PostgresSource) IsLive() bool {
	return true
}

func (s *PostgresSource) selectColumns() string {
	return fmt.Sprintf(`SELECT id::text, tipo, estado, pasos, compensaciones, fecha_inicio, fecha_fin, error_message FROM %s`, s.tableName)
}

// GetSaga retrieves one saga by id.
func (s *PostgresSource) GetSaga(ctx context.Context, id string) (*Saga, error) {
	query := s.selectColumns() + ` WHERE id::text = $1`

	sg, err := scanSaga(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return sg, nil
}

// ListSagas retrieves sagas matching the filter, newest first.
func (s *PostgresSource) ListSagas(ctx context.Context, filter SagaFilter) (*SagaPage, error) {
	filter = filter.normalize()

	// Build query
	where := ` WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.State != "" {
		where += fmt.Sprintf(" AND estado = $%d", argIndex)
		args = append(args, string(filter.State))
		argIndex++
	}

	if filter.Type != "" {
		where += fmt.Sprintf(" AND tipo = $%d", argIndex)
		args = append(args, filter.Type)
		argIndex++
	}

	// Get total count
	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.tableName) + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	// Add ordering and pagination
	query := s.selectColumns() + where + " ORDER BY fecha_inicio DESC"
	query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	if offset := (filter.Page - 1) * filter.Limit; offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	sagas := []Saga{}
	for rows.Next() {
		sg, err := scanSaga(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sagas = append(sagas, *sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &SagaPage{
		Sagas: sagas,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// CountByState counts sagas by state.
func (s *PostgresSource) CountByState(ctx context.Context, states ...SagaState) (int, error) {
	if len(states) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE estado IN (`, s.tableName)
	args := make([]any, len(states))
	for i, st := range states {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("$%d", i+1)
		args[i] = string(st)
	}
	query += ")"

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSaga(row rowScanner) (*Saga, error) {
	var (
		sg           Saga
		state        string
		stepsJSON    []byte
		compJSON     []byte
		startTime    sql.NullTime
		endTime      sql.NullTime
		errorMessage sql.NullString
	)

	if err := row.Scan(
		&sg.ID,
		&sg.Type,
		&state,
		&stepsJSON,
		&compJSON,
		&startTime,
		&endTime,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	sg.State = SagaState(state)
	if startTime.Valid {
		sg.StartTime = Timestamp{Time: startTime.Time}
	}
	if endTime.Valid {
		sg.EndTime = &Timestamp{Time: endTime.Time}
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		sg.ErrorMessage = &msg
	}

	sg.Steps = []Step{}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &sg.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal pasos: %w", err)
		}
	}
	sg.Compensations = []Compensation{}
	if len(compJSON) > 0 {
		if err := json.Unmarshal(compJSON, &sg.Compensations); err != nil {
			return nil, fmt.Errorf("unmarshal compensaciones: %w", err)
		}
	}
	return &sg, nil
}

// Ensure PostgresSource implements Source.
var _ Source = (*PostgresSource)(nil)
