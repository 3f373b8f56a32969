package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// FailedDelivery statuses. The record is terminal once resolved or failed;
// retry_count never exceeds max_retries while the record is still live.
const (
	DeliveryStatusPending  = "pending"
	DeliveryStatusRetrying = "retrying"
	DeliveryStatusResolved = "resolved"
	DeliveryStatusFailed   = "failed"
)

// FailedDelivery records one failed attempt to deliver one Lead to one named
// downstream CDP system, with bookkeeping for the retry scheduler.
type FailedDelivery struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	LeadID        uint       `json:"lead_id" gorm:"index;not null"`
	Lead          *Lead      `json:"lead,omitempty" gorm:"foreignKey:LeadID"`
	CDPSystemName string     `json:"cdp_system_name" gorm:"column:cdp_system_name;type:varchar(100);not null" validate:"required"`
	ErrorCode     *string    `json:"error_code,omitempty" gorm:"type:varchar(50)"`
	ErrorMessage  string     `json:"error_message" gorm:"type:text"`
	RetryCount    int        `json:"retry_count" gorm:"not null;default:0"`
	MaxRetries    int        `json:"max_retries" gorm:"not null;default:3"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty" gorm:"index"`
	Status        string     `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for the FailedDelivery model.
func (FailedDelivery) TableName(namer schema.Namer) string {
	return namer.TableName("failed_deliveries")
}

// IsTerminal reports whether the record has reached a terminal status.
func (f *FailedDelivery) IsTerminal() bool {
	return f.Status == DeliveryStatusResolved || f.Status == DeliveryStatusFailed
}

// CanRetry reports whether the scheduler may attempt another delivery.
func (f *FailedDelivery) CanRetry() bool {
	return !f.IsTerminal() && f.RetryCount < f.MaxRetries
}
