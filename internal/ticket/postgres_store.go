package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mobilierdefrance/sav-ai-platform/internal/evidence"
	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
	"github.com/mobilierdefrance/sav-ai-platform/internal/warranty"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

// DB is the slice of pgxpool.Pool the store needs. pgxmock satisfies it too.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the durable ticket store. Tickets land here only once
// validated (or auto-resolved); the pending stores hold everything earlier.
type PostgresStore struct {
	db     DB
	logger *logging.Logger
}

// NewPostgresStore initializes the durable store.
func NewPostgresStore(db DB, logger *logging.Logger) *PostgresStore {
	if db == nil {
		panic("ticket: database handle required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Save upserts the ticket row and appends any new actions in one
// transaction. Replayed actions are ignored, so Save is idempotent.
func (s *PostgresStore) Save(ctx context.Context, t *Ticket) error {
	classification, err := marshalRecord(t.Classification)
	if err != nil {
		return fmt.Errorf("ticket: encode classification for %s: %w", t.ID, err)
	}
	tone, err := marshalRecord(t.ToneAnalysis)
	if err != nil {
		return fmt.Errorf("ticket: encode tone analysis for %s: %w", t.ID, err)
	}
	warrantyCheck, err := marshalRecord(t.WarrantyCheck)
	if err != nil {
		return fmt.Errorf("ticket: encode warranty check for %s: %w", t.ID, err)
	}
	priority, err := marshalRecord(t.Priority)
	if err != nil {
		return fmt.Errorf("ticket: encode priority for %s: %w", t.ID, err)
	}
	evidences, err := marshalRecord(t.Evidence)
	if err != nil {
		return fmt.Errorf("ticket: encode evidence for %s: %w", t.ID, err)
	}
	evidenceCheck, err := marshalRecord(t.EvidenceCheck)
	if err != nil {
		return fmt.Errorf("ticket: encode evidence check for %s: %w", t.ID, err)
	}
	summary, err := marshalRecord(t.Summary)
	if err != nil {
		return fmt.Errorf("ticket: encode summary for %s: %w", t.ID, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ticket: begin save for %s: %w", t.ID, err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO tickets (
			id, customer_id, order_number, product_sku, product_name,
			problem_description, warranty_id, status, validation_status,
			resolution_type, resolution_description, auto_resolved, assigned_to,
			classification, tone_analysis, warranty_check, priority,
			evidences, evidence_check, evidence_complete, client_summary,
			sla_response_deadline, sla_intervention_deadline,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			validation_status = EXCLUDED.validation_status,
			resolution_type = EXCLUDED.resolution_type,
			resolution_description = EXCLUDED.resolution_description,
			auto_resolved = EXCLUDED.auto_resolved,
			assigned_to = EXCLUDED.assigned_to,
			classification = EXCLUDED.classification,
			tone_analysis = EXCLUDED.tone_analysis,
			warranty_check = EXCLUDED.warranty_check,
			priority = EXCLUDED.priority,
			evidences = EXCLUDED.evidences,
			evidence_check = EXCLUDED.evidence_check,
			evidence_complete = EXCLUDED.evidence_complete,
			client_summary = EXCLUDED.client_summary,
			sla_response_deadline = EXCLUDED.sla_response_deadline,
			sla_intervention_deadline = EXCLUDED.sla_intervention_deadline,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, upsert,
		t.ID, t.CustomerID, t.OrderNumber, t.ProductSKU, t.ProductName,
		t.ProblemDescription, t.WarrantyID, t.Status, t.ValidationStatus,
		t.ResolutionType, t.ResolutionDescription, t.AutoResolved, t.AssignedTo,
		classification, tone, warrantyCheck, priority,
		evidences, evidenceCheck, t.EvidenceComplete, summary,
		nullTime(t.SLAResponseDeadline), nullTime(t.SLAInterventionDeadline),
		t.CreatedAt, t.UpdatedAt,
	); err != nil {
		return fmt.Errorf("ticket: upsert %s: %w", t.ID, err)
	}

	insertAction := `
		INSERT INTO ticket_actions (id, ticket_id, seq, timestamp, actor, action_type, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	for i, a := range t.Actions {
		metadata, err := marshalRecord(a.Metadata)
		if err != nil {
			return fmt.Errorf("ticket: encode action metadata for %s: %w", t.ID, err)
		}
		if _, err := tx.Exec(ctx, insertAction,
			a.ID, t.ID, i, a.Timestamp, a.Actor, a.Type, a.Description, metadata,
		); err != nil {
			return fmt.Errorf("ticket: insert action %s for %s: %w", a.ID, t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ticket: commit save for %s: %w", t.ID, err)
	}

	s.logger.Info("ticket persisted", "ticket_id", t.ID, "status", t.Status, "actions", len(t.Actions))
	return nil
}

// Get loads a ticket with its action trail in chronological order.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Ticket, error) {
	query := `
		SELECT id, customer_id, order_number, product_sku, product_name,
			problem_description, warranty_id, status, validation_status,
			resolution_type, resolution_description, auto_resolved, assigned_to,
			classification, tone_analysis, warranty_check, priority,
			evidences, evidence_check, evidence_complete, client_summary,
			sla_response_deadline, sla_intervention_deadline,
			created_at, updated_at
		FROM tickets
		WHERE id = $1
	`
	var (
		t                    Ticket
		classification       []byte
		tone                 []byte
		warrantyCheck        []byte
		priority             []byte
		evidences            []byte
		evidenceCheck        []byte
		summary              []byte
		responseDeadline     *time.Time
		interventionDeadline *time.Time
	)
	if err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.CustomerID, &t.OrderNumber, &t.ProductSKU, &t.ProductName,
		&t.ProblemDescription, &t.WarrantyID, &t.Status, &t.ValidationStatus,
		&t.ResolutionType, &t.ResolutionDescription, &t.AutoResolved, &t.AssignedTo,
		&classification, &tone, &warrantyCheck, &priority,
		&evidences, &evidenceCheck, &t.EvidenceComplete, &summary,
		&responseDeadline, &interventionDeadline,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ticket: select %s: %w", id, err)
	}

	if err := unmarshalRecord(classification, &t.Classification); err != nil {
		return nil, fmt.Errorf("ticket: decode classification for %s: %w", id, err)
	}
	if err := unmarshalRecord(tone, &t.ToneAnalysis); err != nil {
		return nil, fmt.Errorf("ticket: decode tone analysis for %s: %w", id, err)
	}
	if err := unmarshalRecord(warrantyCheck, &t.WarrantyCheck); err != nil {
		return nil, fmt.Errorf("ticket: decode warranty check for %s: %w", id, err)
	}
	if err := unmarshalRecord(priority, &t.Priority); err != nil {
		return nil, fmt.Errorf("ticket: decode priority for %s: %w", id, err)
	}
	if err := unmarshalRecord(evidences, &t.Evidence); err != nil {
		return nil, fmt.Errorf("ticket: decode evidence for %s: %w", id, err)
	}
	if err := unmarshalRecord(evidenceCheck, &t.EvidenceCheck); err != nil {
		return nil, fmt.Errorf("ticket: decode evidence check for %s: %w", id, err)
	}
	if err := unmarshalRecord(summary, &t.Summary); err != nil {
		return nil, fmt.Errorf("ticket: decode summary for %s: %w", id, err)
	}
	if responseDeadline != nil {
		t.SLAResponseDeadline = *responseDeadline
	}
	if interventionDeadline != nil {
		t.SLAInterventionDeadline = *interventionDeadline
	}

	actions, err := s.loadActions(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Actions = actions

	return &t, nil
}

func (s *PostgresStore) loadActions(ctx context.Context, ticketID string) ([]Action, error) {
	// Ordering by seq, not timestamp: back-to-back actions share a
	// microsecond and would otherwise tie.
	query := `
		SELECT id, timestamp, actor, action_type, description, metadata
		FROM ticket_actions
		WHERE ticket_id = $1
		ORDER BY seq
	`
	rows, err := s.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket: select actions for %s: %w", ticketID, err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.Actor, &a.Type, &a.Description, &metadata); err != nil {
			return nil, fmt.Errorf("ticket: scan action for %s: %w", ticketID, err)
		}
		if err := unmarshalRecord(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("ticket: decode action metadata for %s: %w", ticketID, err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ticket: iterate actions for %s: %w", ticketID, err)
	}
	return actions, nil
}

// marshalRecord encodes a sub-record to JSONB, mapping nil to SQL NULL.
func marshalRecord(v any) ([]byte, error) {
	if isNil(v) {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalRecord(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func isNil(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *triage.Classification:
		return x == nil
	case *triage.ToneAnalysis:
		return x == nil
	case *triage.PriorityAssessment:
		return x == nil
	case *warranty.Check:
		return x == nil
	case *evidence.CompletenessCheck:
		return x == nil
	case *ClientSummary:
		return x == nil
	case []evidence.Analyzed:
		return x == nil
	case map[string]any:
		return x == nil
	default:
		return false
	}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
