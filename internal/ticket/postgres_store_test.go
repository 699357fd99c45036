package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
)

var ticketColumns = []string{
	"id", "customer_id", "order_number", "product_sku", "product_name",
	"problem_description", "warranty_id", "status", "validation_status",
	"resolution_type", "resolution_description", "auto_resolved", "assigned_to",
	"classification", "tone_analysis", "warranty_check", "priority",
	"evidences", "evidence_check", "evidence_complete", "client_summary",
	"sla_response_deadline", "sla_intervention_deadline",
	"created_at", "updated_at",
}

func TestPostgresStoreSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresStore(mock, nil)
	tk := newTestTicket()
	require.NoError(t, tk.Advance(StatusProblemAnalysis, ActorSystem, "problem_analyzed", "", nil))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tickets").
		WithArgs(
			tk.ID, tk.CustomerID, tk.OrderNumber, tk.ProductSKU, tk.ProductName,
			tk.ProblemDescription, tk.WarrantyID, StatusProblemAnalysis, ValidationPending,
			ResolutionType(""), "", false, "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			tk.CreatedAt, tk.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Each action row carries its index in the trail as seq.
	for i := range tk.Actions {
		mock.ExpectExec("INSERT INTO ticket_actions").
			WithArgs(pgxmock.AnyArg(), tk.ID, i, pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.Save(context.Background(), tk))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresStore(mock, nil)
	tk := newTestTicket()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tickets").
		WithArgs(
			tk.ID, tk.CustomerID, tk.OrderNumber, tk.ProductSKU, tk.ProductName,
			tk.ProblemDescription, tk.WarrantyID, StatusNew, ValidationPending,
			ResolutionType(""), "", false, "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			tk.CreatedAt, tk.UpdatedAt,
		).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = s.Save(context.Background(), tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), tk.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresStore(mock, nil)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	classification, err := json.Marshal(&triage.Classification{
		Category:   triage.CategoryFabric,
		Confidence: 0.8,
		Severity:   triage.SeverityP2,
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WithArgs("SAV-20260310-12345").
		WillReturnRows(pgxmock.NewRows(ticketColumns).AddRow(
			"SAV-20260310-12345", "client@example.com", "CMD-2025-12345",
			"MDF-CAP-TEMPLE-01", "Canapé d'angle TEMPLE",
			"Petite tache sur le tissu", "WAR-20250420-12345",
			StatusAutoResolved, ValidationValidated,
			ResolutionAutoReplacement, "Remplacement automatique", true, "",
			classification, []byte(nil), []byte(nil), []byte(nil),
			[]byte(nil), []byte(nil), false, []byte(nil),
			&now, (*time.Time)(nil),
			now.Add(-time.Hour), now,
		))
	mock.ExpectQuery("SELECT (.+) FROM ticket_actions (.+) ORDER BY seq").
		WithArgs("SAV-20260310-12345").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "timestamp", "actor", "action_type", "description", "metadata",
		}).AddRow(
			"a1", now.Add(-time.Hour), ActorSystem, "ticket_created", "Ticket SAV créé automatiquement", []byte(nil),
		).AddRow(
			"a2", now, ActorCustomer, "ticket_validated", "Ticket validé par le client", []byte(`{"channel":"email"}`),
		))

	got, err := s.Get(context.Background(), "SAV-20260310-12345")
	require.NoError(t, err)

	assert.Equal(t, StatusAutoResolved, got.Status)
	assert.Equal(t, ResolutionAutoReplacement, got.ResolutionType)
	require.NotNil(t, got.Classification)
	assert.Equal(t, triage.CategoryFabric, got.Classification.Category)
	assert.True(t, got.SLAResponseDeadline.Equal(now))
	assert.True(t, got.SLAInterventionDeadline.IsZero())

	require.Len(t, got.Actions, 2)
	assert.Equal(t, "ticket_created", got.Actions[0].Type)
	assert.Equal(t, "email", got.Actions[1].Metadata["channel"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetUnknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresStore(mock, nil)

	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WithArgs("SAV-00000000-0").
		WillReturnRows(pgxmock.NewRows(ticketColumns))

	_, err = s.Get(context.Background(), "SAV-00000000-0")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
