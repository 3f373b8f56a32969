package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// LeadProperty is the optional 1:1 real-estate extension of a Lead. A row is
// created only when at least one field is non-nil; it is owned exclusively by
// its Lead and removed with it.
type LeadProperty struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	LeadID        uint      `json:"lead_id" gorm:"not null;uniqueIndex:idx_lead_properties_lead_id"`
	PropertyID    *string   `json:"property_id,omitempty" gorm:"type:varchar(100)"`
	DevelopmentID *string   `json:"development_id,omitempty" gorm:"type:varchar(100)"`
	PartnerID     *string   `json:"partner_id,omitempty" gorm:"type:varchar(100)"`
	PropertyType  *string   `json:"property_type,omitempty" gorm:"type:varchar(100)"`
	Price         *float64  `json:"price,omitempty" gorm:"type:numeric(15,2)"`
	Location      *string   `json:"location,omitempty" gorm:"type:varchar(255)"`
	City          *string   `json:"city,omitempty" gorm:"type:varchar(100)"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// TableName specifies the table name for the LeadProperty model.
func (LeadProperty) TableName(namer schema.Namer) string {
	return namer.TableName("lead_properties")
}
