package model

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewCustomer creates a Customer with default fake data.
func NewCustomer(overrideDefaults ...*Customer) *Customer {
	base := &Customer{
		ID:        uint(gofakeit.Number(1, 100000)),
		Email:     gofakeit.Email(),
		Phone:     "+48" + gofakeit.DigitN(9),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != 0 {
			base.ID = ovr.ID
		}
		if ovr.Email != "" {
			base.Email = ovr.Email
		}
		if ovr.Phone != "" {
			base.Phone = ovr.Phone
		}
		if ovr.FirstName != "" {
			base.FirstName = ovr.FirstName
		}
		if ovr.LastName != "" {
			base.LastName = ovr.LastName
		}
	}
	return base
}

// NewLead creates a Lead with default fake data.
func NewLead(overrideDefaults ...*Lead) *Lead {
	base := &Lead{
		ID:              uint(gofakeit.Number(1, 100000)),
		LeadUUID:        uuid.New().String(),
		CustomerID:      uint(gofakeit.Number(1, 100000)),
		ApplicationName: gofakeit.RandomString([]string{"morizon", "gratka", "hms"}),
		Status:          LeadStatusNew,
		CreatedAt:       utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Minute),
		UpdatedAt:       utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != 0 {
			base.ID = ovr.ID
		}
		if ovr.LeadUUID != "" {
			base.LeadUUID = ovr.LeadUUID
		}
		if ovr.CustomerID != 0 {
			base.CustomerID = ovr.CustomerID
		}
		if ovr.ApplicationName != "" {
			base.ApplicationName = ovr.ApplicationName
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Customer != nil {
			base.Customer = ovr.Customer
		}
		if ovr.Property != nil {
			base.Property = ovr.Property
		}
	}
	return base
}

// NewLeadSubmission creates a valid LeadSubmission with default fake data.
func NewLeadSubmission(overrideDefaults ...*LeadSubmission) *LeadSubmission {
	price := float64(gofakeit.Number(100000, 2000000))
	city := gofakeit.City()
	base := &LeadSubmission{
		LeadUUID:        uuid.New().String(),
		ApplicationName: gofakeit.RandomString([]string{"morizon", "gratka", "hms"}),
		Customer: CustomerPayload{
			Email:     gofakeit.Email(),
			Phone:     "+48" + gofakeit.DigitN(9),
			FirstName: gofakeit.FirstName(),
			LastName:  gofakeit.LastName(),
		},
		Property: &PropertyPayload{
			Price: &price,
			City:  &city,
		},
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.LeadUUID != "" {
			base.LeadUUID = ovr.LeadUUID
		}
		if ovr.ApplicationName != "" {
			base.ApplicationName = ovr.ApplicationName
		}
		if ovr.Customer.Email != "" {
			base.Customer = ovr.Customer
		}
		if ovr.Property != nil {
			base.Property = ovr.Property
		}
	}
	return base
}

// NewFailedDelivery creates a FailedDelivery with default fake data.
func NewFailedDelivery(overrideDefaults ...*FailedDelivery) *FailedDelivery {
	base := &FailedDelivery{
		ID:            uint(gofakeit.Number(1, 100000)),
		LeadID:        uint(gofakeit.Number(1, 100000)),
		CDPSystemName: gofakeit.RandomString([]string{"salesmanago", "synerise", "ipresso"}),
		ErrorMessage:  gofakeit.Sentence(5),
		RetryCount:    0,
		MaxRetries:    3,
		Status:        DeliveryStatusPending,
		CreatedAt:     utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != 0 {
			base.ID = ovr.ID
		}
		if ovr.LeadID != 0 {
			base.LeadID = ovr.LeadID
		}
		if ovr.CDPSystemName != "" {
			base.CDPSystemName = ovr.CDPSystemName
		}
		if ovr.ErrorMessage != "" {
			base.ErrorMessage = ovr.ErrorMessage
		}
		if ovr.RetryCount != 0 {
			base.RetryCount = ovr.RetryCount
		}
		if ovr.MaxRetries != 0 {
			base.MaxRetries = ovr.MaxRetries
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.NextRetryAt != nil {
			base.NextRetryAt = ovr.NextRetryAt
		}
	}
	return base
}
