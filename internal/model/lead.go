package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Lead statuses. The business process is deliberately loose: any status may
// follow any other, but every transition is logged as an Event.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusRejected  = "rejected"
)

// LeadStatuses lists every valid lead status.
func LeadStatuses() []string {
	return []string{
		LeadStatusNew,
		LeadStatusContacted,
		LeadStatusQualified,
		LeadStatusConverted,
		LeadStatusRejected,
	}
}

// IsValidLeadStatus reports whether s is a known lead status.
func IsValidLeadStatus(s string) bool {
	for _, v := range LeadStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Lead is a single inbound inquiry. LeadUUID is caller-supplied, immutable and
// globally unique; a duplicate submission is rejected, never merged.
type Lead struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	LeadUUID        string    `json:"lead_uuid" gorm:"column:lead_uuid;type:varchar(36);not null;uniqueIndex:idx_leads_lead_uuid" validate:"required"`
	CustomerID      uint      `json:"customer_id" gorm:"index;not null"`
	Customer        *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	ApplicationName string    `json:"application_name" gorm:"type:varchar(50);not null" validate:"required"`
	Status          string    `json:"status" gorm:"type:varchar(20);not null;default:new"`

	// Cached AI-scoring fields, written post-commit by the scoring collaborator.
	AIScore       *int       `json:"ai_score,omitempty" gorm:"column:ai_score"`
	AICategory    string     `json:"ai_category,omitempty" gorm:"column:ai_category;type:varchar(50)"`
	AIReasoning   string     `json:"ai_reasoning,omitempty" gorm:"column:ai_reasoning;type:text"`
	AISuggestions string     `json:"ai_suggestions,omitempty" gorm:"column:ai_suggestions;type:text"`
	AIScoredAt    *time.Time `json:"ai_scored_at,omitempty" gorm:"column:ai_scored_at"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	Property         *LeadProperty    `json:"property,omitempty" gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
	FailedDeliveries []FailedDelivery `json:"failed_deliveries,omitempty" gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Lead model.
func (Lead) TableName(namer schema.Namer) string {
	return namer.TableName("leads")
}

// LeadScore is the result produced by the scoring collaborator, cached on the
// lead. Score is bounded to 0-100.
type LeadScore struct {
	Score       int    `json:"score"`
	Category    string `json:"category"`
	Reasoning   string `json:"reasoning"`
	Suggestions string `json:"suggestions"`
}
