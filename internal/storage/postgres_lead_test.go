package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
)

func TestCreateLead_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	lead := &model.Lead{
		LeadUUID:        "3b241101-e2bb-4255-8caf-4136c566a962",
		CustomerID:      5,
		ApplicationName: "morizon",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "leads"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	err := repo.CreateLead(context.Background(), lead)
	assert.NoError(t, err)
	assert.Equal(t, uint(11), lead.ID)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLead_DuplicateUUID(t *testing.T) {
	repo, mock := newTestRepo(t)
	lead := &model.Lead{
		LeadUUID:        "3b241101-e2bb-4255-8caf-4136c566a962",
		CustomerID:      5,
		ApplicationName: "gratka",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "leads"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_leads_lead_uuid"})

	err := repo.CreateLead(context.Background(), lead)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLeadByUUID_PreloadsCustomerAndProperty(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now()
	leadUUID := "3b241101-e2bb-4255-8caf-4136c566a962"

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads" WHERE lead_uuid = $1`)).
		WithArgs(leadUUID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lead_uuid", "customer_id", "application_name", "status", "created_at", "updated_at"}).
			AddRow(11, leadUUID, 5, "morizon", "new", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "customers" WHERE "customers"."id" = $1`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(customerColumns()).
			AddRow(5, "jan@example.com", "+48123456789", "Jan", "Kowalski", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "lead_properties" WHERE "lead_properties"."lead_id" = $1`)).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lead_id", "property_id"}).
			AddRow(3, 11, "P-100"))

	lead, err := repo.FindLeadByUUID(context.Background(), leadUUID)
	assert.NoError(t, err)
	assert.Equal(t, uint(11), lead.ID)
	if assert.NotNil(t, lead.Customer) {
		assert.Equal(t, "jan@example.com", lead.Customer.Email)
	}
	if assert.NotNil(t, lead.Property) {
		assert.Equal(t, "P-100", *lead.Property.PropertyID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLeadByUUID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads" WHERE lead_uuid = $1`)).
		WithArgs("missing-uuid", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	lead, err := repo.FindLeadByUUID(context.Background(), "missing-uuid")
	assert.Nil(t, lead)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadExists(t *testing.T) {
	repo, mock := newTestRepo(t)
	leadUUID := "3b241101-e2bb-4255-8caf-4136c566a962"

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "leads" WHERE lead_uuid = $1`)).
		WithArgs(leadUUID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.LeadExists(context.Background(), leadUUID)
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadStatus_Success(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leads" SET`)).
		WithArgs("qualified", AnyTime{}, 11).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLeadStatus(context.Background(), 11, "qualified")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadStatus_MissingLead(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leads" SET`)).
		WithArgs("contacted", AnyTime{}, 404).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateLeadStatus(context.Background(), 404, "contacted")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadScore(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leads" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLeadScore(context.Background(), 11, model.LeadScore{
		Score:    85,
		Category: "hot",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteLead_RemovesPropertyFirst(t *testing.T) {
	repo, mock := newTestRepo(t)
	lead := &model.Lead{ID: 11, LeadUUID: "3b241101-e2bb-4255-8caf-4136c566a962"}

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "lead_properties" WHERE lead_id = $1`)).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "leads" WHERE id = $1`)).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteLead(context.Background(), lead)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
