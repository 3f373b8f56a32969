package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Event types emitted by the pipeline. The column itself is a free-form tag;
// these constants cover the core's own events.
const (
	EventLeadCreated       = "lead_created"
	EventLeadDeleted       = "lead_deleted"
	EventLeadStatusChanged = "lead_status_changed"
	EventLeadScored        = "lead_scored"
	EventDeliverySuccess   = "delivery_success"
	EventDeliveryFailed    = "delivery_failed"
	EventDeliveryRetried   = "delivery_retried"
	EventDeliveryExhausted = "delivery_exhausted"
)

// Entity tags for the polymorphic entity reference. This is a loosely-typed
// back-reference (string tag + integer id), not a foreign key.
const (
	EntityTypeLead     = "lead"
	EntityTypeCustomer = "customer"
	EntityTypeUser     = "user"
)

// Event is one append-only audit record. Rows are never updated or deleted.
type Event struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	EventType    string         `json:"event_type" gorm:"type:varchar(100);not null;index" validate:"required"`
	EntityType   string         `json:"entity_type,omitempty" gorm:"type:varchar(50);index:idx_events_entity"`
	EntityID     uint           `json:"entity_id,omitempty" gorm:"index:idx_events_entity"`
	UserID       *uint          `json:"user_id,omitempty"`
	Details      datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
	IPAddress    string         `json:"ip_address,omitempty" gorm:"type:varchar(45)"`
	UserAgent    string         `json:"user_agent,omitempty" gorm:"type:text"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
}

// TableName specifies the table name for the Event model.
func (Event) TableName(namer schema.Namer) string {
	return namer.TableName("events")
}
