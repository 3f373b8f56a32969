package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Customer is the identity anchor for a person submitting leads. The pair
// (email, phone) is the deduplication key: not email alone, not phone alone.
type Customer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_customers_email_phone" validate:"required"`
	Phone     string    `json:"phone" gorm:"type:varchar(20);not null;uniqueIndex:idx_customers_email_phone" validate:"required"`
	FirstName string    `json:"first_name,omitempty" gorm:"type:varchar(100)"`
	LastName  string    `json:"last_name,omitempty" gorm:"type:varchar(100)"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TableName specifies the table name for the Customer model.
func (Customer) TableName(namer schema.Namer) string {
	return namer.TableName("customers")
}
