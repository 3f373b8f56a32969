package model

import "time"

// LeadSubmission is the structured intake payload produced by the external
// HTTP layer. Validation tags are interpreted by internal/validator; the
// custom tags (application_name, lead_phone, lead_price) are registered there.
type LeadSubmission struct {
	LeadUUID        string           `json:"lead_uuid" validate:"required,uuid4"`
	ApplicationName string           `json:"application_name" validate:"required,max=50,application_name"`
	Customer        CustomerPayload  `json:"customer"`
	Property        *PropertyPayload `json:"property,omitempty"`
}

// CustomerPayload carries the contact identity of a submission.
type CustomerPayload struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"required,lead_phone"`
	FirstName string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

// PropertyPayload carries the optional real-estate attributes of a submission.
type PropertyPayload struct {
	PropertyID    *string  `json:"property_id,omitempty" validate:"omitempty,max=100"`
	DevelopmentID *string  `json:"development_id,omitempty" validate:"omitempty,max=100"`
	PartnerID     *string  `json:"partner_id,omitempty" validate:"omitempty,max=100"`
	PropertyType  *string  `json:"property_type,omitempty" validate:"omitempty,max=100"`
	Price         *float64 `json:"price,omitempty" validate:"omitempty,lead_price"`
	Location      *string  `json:"location,omitempty" validate:"omitempty,max=255"`
	City          *string  `json:"city,omitempty" validate:"omitempty,max=100"`
}

// HasAny reports whether at least one property field is set. A LeadProperty
// row is attached only when this is true.
func (p *PropertyPayload) HasAny() bool {
	if p == nil {
		return false
	}
	return p.PropertyID != nil ||
		p.DevelopmentID != nil ||
		p.PartnerID != nil ||
		p.PropertyType != nil ||
		p.Price != nil ||
		p.Location != nil ||
		p.City != nil
}

// hmsFieldMap maps the HMS source system's prefixed property field names onto
// the canonical ones. The mapping is 1:1.
var hmsFieldMap = map[string]string{
	"hms_property_id":    "property_id",
	"hms_development_id": "development_id",
	"hms_partner_id":     "partner_id",
}

// RemapHMSProperty renames HMS-prefixed property keys in a raw property object
// to their canonical names. Unknown keys pass through untouched; a canonical
// key already present wins over its prefixed twin.
func RemapHMSProperty(raw map[string]interface{}) map[string]interface{} {
	if raw == nil {
		return nil
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if canonical, ok := hmsFieldMap[k]; ok {
			if _, exists := raw[canonical]; exists {
				continue
			}
			out[canonical] = v
			continue
		}
		out[k] = v
	}
	return out
}

// LeadCreatedResult is returned to the caller after a successful creation.
// DeliveryStatus is always "pending": delivery is asynchronous relative to the
// response and its outcome never surfaces here.
type LeadCreatedResult struct {
	LeadID         uint   `json:"lead_id"`
	LeadUUID       string `json:"lead_uuid"`
	CustomerID     uint   `json:"customer_id"`
	Status         string `json:"status"`
	DeliveryStatus string `json:"delivery_status"`
}

// DeliveryJob is the payload published to the delivery queue after a lead is
// durably committed.
type DeliveryJob struct {
	LeadUUID      string    `json:"lead_uuid"`
	CorrelationID string    `json:"correlation_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// SystemDeliveryState is one CDP system's derived delivery state for a lead,
// computed from the audit trail and the failed-delivery records.
type SystemDeliveryState struct {
	SystemName string     `json:"system_name"`
	Status     string     `json:"status"` // pending, delivered, retrying, failed
	LastError  string     `json:"last_error,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}
