package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/domain"
)

// ExecutionLogRepository persists the append-only run records.
type ExecutionLogRepository struct {
	db    *sql.DB
	clock core.Clock
}

const LOG_COLUMNS = ` id, workflow_id, status, trigger_event, started_at,
		       completed_at, error, input_data, output_data `

func NewExecutionLogRepository(db *sql.DB, clock core.Clock) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, clock: clock}
}

// Create inserts a new run record, normally with status running.
func (r *ExecutionLogRepository) Create(log *domain.ExecutionLog) (string, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = r.clock.Now().UTC()
	}
	input, output, err := marshalLogColumns(log)
	if err != nil {
		return "", err
	}

	vals := []interface{}{
		log.ID, log.WorkflowID, string(log.Status), log.TriggerEvent,
		formatDateInDatabase(log.StartedAt), formatDateInDatabaseNull(log.CompletedAt),
		log.Error, input, output,
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO execution_log (` + LOG_COLUMNS + `)
		VALUES (` + strings.Join(pps, ", ") + `)`
	_, err = r.db.Exec(query, vals...)
	return log.ID, err
}

// Finalize writes the terminal state of a run. It only matches rows still in
// running status so a finalized log can never be rewritten.
func (r *ExecutionLogRepository) Finalize(log *domain.ExecutionLog) error {
	_, output, err := marshalLogColumns(log)
	if err != nil {
		return err
	}
	query := `UPDATE execution_log SET
			status = ` + placeholder(1) + `,
			completed_at = ` + placeholder(2) + `,
			error = ` + placeholder(3) + `,
			output_data = ` + placeholder(4) + `
		WHERE id = ` + placeholder(5) + ` AND status = ` + placeholder(6)
	res, err := r.db.Exec(query,
		string(log.Status), formatDateInDatabaseNull(log.CompletedAt),
		log.Error, output, log.ID, string(domain.ExecutionRunning))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("execution log %s is not running, refusing to finalize twice", log.ID)
	}
	return nil
}

func (r *ExecutionLogRepository) FindByID(id string) (*domain.ExecutionLog, error) {
	query := `SELECT ` + LOG_COLUMNS + ` FROM execution_log WHERE id = ` + placeholder(1)
	log, err := scanLog(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return log, err
}

// FindByWorkflowID pages through a workflow's run history, newest first.
func (r *ExecutionLogRepository) FindByWorkflowID(workflowID string, limit int, offset int) (*[]domain.ExecutionLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + LOG_COLUMNS + ` FROM execution_log
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY started_at DESC
		LIMIT ` + placeholder(2) + ` OFFSET ` + placeholder(3)
	rows, err := r.db.Query(query, workflowID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []domain.ExecutionLog{}
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}
	return &logs, rows.Err()
}

// CountByStatusSince counts finished runs with the given status completed after
// the cutoff; drives the last-24h dashboard numbers.
func (r *ExecutionLogRepository) CountByStatusSince(status domain.ExecutionStatus, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM execution_log
		WHERE status = ` + placeholder(1) + ` AND completed_at >= ` + placeholder(2)
	var count int
	err := r.db.QueryRow(query, string(status), formatDateInDatabase(since)).Scan(&count)
	return count, err
}

func marshalLogColumns(log *domain.ExecutionLog) (input string, output string, err error) {
	if log.InputData == nil {
		log.InputData = map[string]interface{}{}
	}
	in, err := json.Marshal(log.InputData)
	if err != nil {
		return "", "", fmt.Errorf("marshal input data: %w", err)
	}
	if log.OutputData == nil {
		log.OutputData = []domain.ActionResult{}
	}
	out, err := json.Marshal(log.OutputData)
	if err != nil {
		return "", "", fmt.Errorf("marshal output data: %w", err)
	}
	return string(in), string(out), nil
}

func scanLog(row rowScanner) (*domain.ExecutionLog, error) {
	var log domain.ExecutionLog
	var status, input, output string
	err := row.Scan(
		&log.ID,
		&log.WorkflowID,
		&status,
		&log.TriggerEvent,
		&log.StartedAt,
		&log.CompletedAt,
		&log.Error,
		&input,
		&output,
	)
	if err != nil {
		return nil, err
	}
	log.Status = domain.ExecutionStatus(status)
	if err := json.Unmarshal([]byte(input), &log.InputData); err != nil {
		return nil, fmt.Errorf("unmarshal input data for %s: %w", log.ID, err)
	}
	if err := json.Unmarshal([]byte(output), &log.OutputData); err != nil {
		return nil, fmt.Errorf("unmarshal output data for %s: %w", log.ID, err)
	}
	return &log, nil
}
