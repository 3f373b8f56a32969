package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
)

func customerColumns() []string {
	return []string{"id", "email", "phone", "first_name", "last_name", "created_at", "updated_at"}
}

func TestFindOrCreateCustomer_ExistingRowIsLocked(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now()

	selectPattern := regexp.QuoteMeta(`SELECT * FROM "customers" WHERE email = $1 AND phone = $2`) + `.*FOR UPDATE`
	mock.ExpectQuery(selectPattern).
		WithArgs("jan@example.com", "+48123456789", 1).
		WillReturnRows(sqlmock.NewRows(customerColumns()).
			AddRow(42, "jan@example.com", "+48123456789", "Jan", "Kowalski", now, now))

	customer, err := repo.FindOrCreateCustomer(context.Background(), "jan@example.com", "+48123456789", "Janek", "K")
	assert.NoError(t, err)
	assert.Equal(t, uint(42), customer.ID)
	// An existing row is returned as-is; the submitted names do not mutate it.
	assert.Equal(t, "Jan", customer.FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreateCustomer_CreatesWhenMissing(t *testing.T) {
	repo, mock := newTestRepo(t)

	selectPattern := regexp.QuoteMeta(`SELECT * FROM "customers" WHERE email = $1 AND phone = $2`) + `.*FOR UPDATE`
	mock.ExpectQuery(selectPattern).
		WithArgs("new@example.com", "+48500600700", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	insertPattern := regexp.QuoteMeta(`INSERT INTO "customers"`)
	mock.ExpectQuery(insertPattern).
		WithArgs("new@example.com", "+48500600700", "Anna", "Nowak", AnyTime{}, AnyTime{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	customer, err := repo.FindOrCreateCustomer(context.Background(), "new@example.com", "+48500600700", "Anna", "Nowak")
	assert.NoError(t, err)
	assert.Equal(t, uint(7), customer.ID)
	assert.Equal(t, "Anna", customer.FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreateCustomer_LookupErrorIsSurfaced(t *testing.T) {
	repo, mock := newTestRepo(t)

	selectPattern := regexp.QuoteMeta(`SELECT * FROM "customers" WHERE email = $1 AND phone = $2`) + `.*FOR UPDATE`
	mock.ExpectQuery(selectPattern).
		WithArgs("jan@example.com", "+48123456789", 1).
		WillReturnError(errors.New("connection reset"))

	customer, err := repo.FindOrCreateCustomer(context.Background(), "jan@example.com", "+48123456789", "", "")
	assert.Nil(t, customer)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.Contains(t, err.Error(), "jan@example.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCustomerByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	selectPattern := regexp.QuoteMeta(`SELECT * FROM "customers" WHERE id = $1`)
	mock.ExpectQuery(selectPattern).
		WithArgs(99, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	customer, err := repo.FindCustomerByID(context.Background(), 99)
	assert.Nil(t, customer)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
