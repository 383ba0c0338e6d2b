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

// WorkflowDefinitionRepository provides persistence for workflow definitions.
type WorkflowDefinitionRepository struct {
	db    *sql.DB
	clock core.Clock
}

const DEFINITION_COLUMNS = ` id, name, description, trigger_type, trigger_config,
		       actions, conditions, enabled, execution_count,
		       last_executed_at, last_status, created, updated `

func NewWorkflowDefinitionRepository(db *sql.DB, clock core.Clock) *WorkflowDefinitionRepository {
	return &WorkflowDefinitionRepository{db: db, clock: clock}
}

func (r *WorkflowDefinitionRepository) Save(def *domain.WorkflowDefinition) (string, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := r.clock.Now().UTC()
	if def.Created.IsZero() {
		def.Created = now
	}
	def.Updated = now

	triggerConfig, actions, conditions, err := marshalDefinitionColumns(def)
	if err != nil {
		return "", err
	}

	vals := []interface{}{
		def.ID, def.Name, def.Description, string(def.Trigger.Type), triggerConfig,
		actions, conditions, def.Enabled, def.ExecutionCount,
		formatDateInDatabaseNull(def.LastExecutedAt), def.LastStatus,
		formatDateInDatabase(def.Created), formatDateInDatabase(def.Updated),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO workflow_definition (` + DEFINITION_COLUMNS + `)
		VALUES (` + strings.Join(pps, ", ") + `)`
	_, err = r.db.Exec(query, vals...)
	return def.ID, err
}

// Update replaces the definition row; run statistics are left untouched so a
// concurrent orchestrator finalize cannot be overwritten by an API edit.
func (r *WorkflowDefinitionRepository) Update(def *domain.WorkflowDefinition) error {
	def.Updated = r.clock.Now().UTC()

	triggerConfig, actions, conditions, err := marshalDefinitionColumns(def)
	if err != nil {
		return err
	}

	query := `UPDATE workflow_definition SET
			name = ` + placeholder(1) + `,
			description = ` + placeholder(2) + `,
			trigger_type = ` + placeholder(3) + `,
			trigger_config = ` + placeholder(4) + `,
			actions = ` + placeholder(5) + `,
			conditions = ` + placeholder(6) + `,
			enabled = ` + placeholder(7) + `,
			updated = ` + placeholder(8) + `
		WHERE id = ` + placeholder(9)
	res, err := r.db.Exec(query,
		def.Name, def.Description, string(def.Trigger.Type), triggerConfig,
		actions, conditions, def.Enabled, formatDateInDatabase(def.Updated), def.ID)
	if err != nil {
		return err
	}
	return requireOneRow(res, def.ID)
}

func (r *WorkflowDefinitionRepository) FindByID(id string) (*domain.WorkflowDefinition, error) {
	query := `SELECT ` + DEFINITION_COLUMNS + ` FROM workflow_definition WHERE id = ` + placeholder(1)
	row := r.db.QueryRow(query, id)
	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return def, err
}

func (r *WorkflowDefinitionRepository) FindAll() (*[]domain.WorkflowDefinition, error) {
	query := `SELECT ` + DEFINITION_COLUMNS + ` FROM workflow_definition ORDER BY created DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

// FindEnabledByTriggerType lists the enabled workflows for one trigger kind.
// This backs both the scheduler reconcile sweep and event matching.
func (r *WorkflowDefinitionRepository) FindEnabledByTriggerType(t domain.TriggerType) (*[]domain.WorkflowDefinition, error) {
	query := `SELECT ` + DEFINITION_COLUMNS + ` FROM workflow_definition
		WHERE enabled = ` + placeholder(1) + ` AND trigger_type = ` + placeholder(2)
	rows, err := r.db.Query(query, true, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

func (r *WorkflowDefinitionRepository) SetEnabled(id string, enabled bool) error {
	query := `UPDATE workflow_definition SET enabled = ` + placeholder(1) + `,
		updated = ` + placeholder(2) + ` WHERE id = ` + placeholder(3)
	res, err := r.db.Exec(query, enabled, formatDateInDatabase(r.clock.Now()), id)
	if err != nil {
		return err
	}
	return requireOneRow(res, id)
}

func (r *WorkflowDefinitionRepository) Delete(id string) error {
	query := `DELETE FROM workflow_definition WHERE id = ` + placeholder(1)
	_, err := r.db.Exec(query, id)
	return err
}

// UpdateRunStats increments the execution counter and records the last outcome.
func (r *WorkflowDefinitionRepository) UpdateRunStats(id string, lastStatus domain.ExecutionStatus, executedAt time.Time) error {
	query := `UPDATE workflow_definition SET
			execution_count = execution_count + 1,
			last_executed_at = ` + placeholder(1) + `,
			last_status = ` + placeholder(2) + `
		WHERE id = ` + placeholder(3)
	_, err := r.db.Exec(query, formatDateInDatabase(executedAt), string(lastStatus), id)
	return err
}

// CountByEnabled returns total and enabled definition counts for the stats endpoint.
func (r *WorkflowDefinitionRepository) CountByEnabled() (total int, enabled int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN enabled = ` + placeholder(1) + ` THEN 1 ELSE 0 END), 0)
		FROM workflow_definition`
	err = r.db.QueryRow(query, true).Scan(&total, &enabled)
	return total, enabled, err
}

func marshalDefinitionColumns(def *domain.WorkflowDefinition) (triggerConfig string, actions string, conditions string, err error) {
	tc, err := json.Marshal(def.Trigger.Config)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal trigger config: %w", err)
	}
	if def.Actions == nil {
		def.Actions = []domain.ActionSpec{}
	}
	ac, err := json.Marshal(def.Actions)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal actions: %w", err)
	}
	if def.Conditions == nil {
		def.Conditions = []domain.Condition{}
	}
	cc, err := json.Marshal(def.Conditions)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal conditions: %w", err)
	}
	return string(tc), string(ac), string(cc), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row rowScanner) (*domain.WorkflowDefinition, error) {
	var def domain.WorkflowDefinition
	var triggerType, triggerConfig, actions, conditions string
	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&triggerType,
		&triggerConfig,
		&actions,
		&conditions,
		&def.Enabled,
		&def.ExecutionCount,
		&def.LastExecutedAt,
		&def.LastStatus,
		&def.Created,
		&def.Updated,
	)
	if err != nil {
		return nil, err
	}
	def.Trigger.Type = domain.TriggerType(triggerType)
	if err := json.Unmarshal([]byte(triggerConfig), &def.Trigger.Config); err != nil {
		return nil, fmt.Errorf("unmarshal trigger config for %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &def.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions for %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(conditions), &def.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions for %s: %w", def.ID, err)
	}
	return &def, nil
}

func scanDefinitions(rows *sql.Rows) (*[]domain.WorkflowDefinition, error) {
	defs := []domain.WorkflowDefinition{}
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return &defs, rows.Err()
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("workflow not found: %s", id)
	}
	return nil
}
