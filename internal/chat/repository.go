package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chat messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const messageColumns = `id, care_task_id, session_id, clinician_id, user_query, assistant_answer,
	matched_domains, matched_endpoints, knowledge_sources_used, web_sources_used,
	memory_facts_used, patient_history_facts, extracted_facts, created_at`

// Create inserts one chat turn.
func (r *Repository) Create(ctx context.Context, m *Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO care_task_chat_messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.CareTaskID, m.SessionID, m.ClinicianID, m.UserQuery, m.AssistantAnswer,
		m.MatchedDomains, m.MatchedEndpoints, m.KnowledgeSourcesUsed, m.WebSourcesUsed,
		m.MemoryFactsUsed, m.PatientHistoryFacts, m.ExtractedFacts, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("chat: create message: %w", err)
	}
	return nil
}

// ListSession returns the session's messages in chronological order, up to
// limit.
func (r *Repository) ListSession(ctx context.Context, taskID uuid.UUID, sessionID string, limit int) ([]Message, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM (
		   SELECT `+messageColumns+`
		   FROM care_task_chat_messages
		   WHERE care_task_id = $1 AND session_id = $2
		   ORDER BY created_at DESC
		   LIMIT $3
		 ) recent ORDER BY created_at ASC`,
		taskID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list session: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListTask returns the task's messages in chronological order, across
// sessions unless one is given.
func (r *Repository) ListTask(ctx context.Context, taskID uuid.UUID, sessionID string, limit int) ([]Message, error) {
	if sessionID != "" {
		return r.ListSession(ctx, taskID, sessionID, limit)
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM care_task_chat_messages
		 WHERE care_task_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list task: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListPatient aggregates messages across all care tasks that share a
// patient reference, for the longitudinal history facts.
func (r *Repository) ListPatient(ctx context.Context, patientReference string, limit int) ([]Message, error) {
	if limit < 1 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixedMessageColumns("m")+`
		 FROM care_task_chat_messages m
		 JOIN care_tasks t ON t.id = m.care_task_id
		 WHERE t.patient_reference = $1
		 ORDER BY m.created_at ASC
		 LIMIT $2`, patientReference, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list patient: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func prefixedMessageColumns(alias string) string {
	return alias + ".id, " + alias + ".care_task_id, " + alias + ".session_id, " + alias + ".clinician_id, " +
		alias + ".user_query, " + alias + ".assistant_answer, " + alias + ".matched_domains, " +
		alias + ".matched_endpoints, " + alias + ".knowledge_sources_used, " + alias + ".web_sources_used, " +
		alias + ".memory_facts_used, " + alias + ".patient_history_facts, " + alias + ".extracted_facts, " +
		alias + ".created_at"
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.CareTaskID, &m.SessionID, &m.ClinicianID, &m.UserQuery,
			&m.AssistantAnswer, &m.MatchedDomains, &m.MatchedEndpoints, &m.KnowledgeSourcesUsed,
			&m.WebSourcesUsed, &m.MemoryFactsUsed, &m.PatientHistoryFacts, &m.ExtractedFacts,
			&m.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
