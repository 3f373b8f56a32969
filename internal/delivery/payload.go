package delivery

import (
	"fmt"
	"strings"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// Known CDP system names. The set of systems actually contacted comes from
// configuration; names outside this set fail payload transformation.
const (
	SystemSalesmanago = "salesmanago"
	SystemSynerise    = "synerise"
	SystemIpresso     = "ipresso"
)

// BuildPayload transforms a lead into the JSON body expected by the named
// CDP system. Every shape carries the lead_uuid and the customer's email and
// phone for correlation; the rest of the field mapping is system-specific.
func BuildPayload(systemName string, lead *model.Lead) ([]byte, error) {
	if lead.Customer == nil {
		return nil, fmt.Errorf("lead %s has no customer loaded", lead.LeadUUID)
	}

	switch strings.ToLower(systemName) {
	case SystemSalesmanago:
		return salesmanagoPayload(lead), nil
	case SystemSynerise:
		return synerisePayload(lead), nil
	case SystemIpresso:
		return ipressoPayload(lead), nil
	default:
		return nil, fmt.Errorf("unknown CDP system %q", systemName)
	}
}

// salesmanagoPayload nests contact data under "contact" and uses camelCase
// property identifiers.
func salesmanagoPayload(lead *model.Lead) []byte {
	body := map[string]interface{}{
		"leadUuid": lead.LeadUUID,
		"source":   lead.ApplicationName,
		"contact": map[string]interface{}{
			"email": lead.Customer.Email,
			"phone": lead.Customer.Phone,
			"name":  strings.TrimSpace(lead.Customer.FirstName + " " + lead.Customer.LastName),
		},
	}
	if p := lead.Property; p != nil {
		props := map[string]interface{}{}
		putIfSet(props, "investmentId", p.DevelopmentID)
		putIfSet(props, "offerId", p.PropertyID)
		putIfSet(props, "partnerId", p.PartnerID)
		putIfSet(props, "propertyType", p.PropertyType)
		putIfSet(props, "location", p.Location)
		putIfSet(props, "city", p.City)
		if p.Price != nil {
			props["price"] = *p.Price
		}
		if len(props) > 0 {
			body["properties"] = props
		}
	}
	return utils.MustMarshalJSON(body)
}

// synerisePayload nests contact data under "client" and uses snake_case
// property identifiers.
func synerisePayload(lead *model.Lead) []byte {
	body := map[string]interface{}{
		"lead_uuid":   lead.LeadUUID,
		"application": lead.ApplicationName,
		"client": map[string]interface{}{
			"email":     lead.Customer.Email,
			"phone":     lead.Customer.Phone,
			"firstname": lead.Customer.FirstName,
			"lastname":  lead.Customer.LastName,
		},
	}
	if p := lead.Property; p != nil {
		putIfSet(body, "development_id", p.DevelopmentID)
		putIfSet(body, "property_id", p.PropertyID)
		putIfSet(body, "partner_id", p.PartnerID)
		putIfSet(body, "property_type", p.PropertyType)
		putIfSet(body, "location", p.Location)
		putIfSet(body, "city", p.City)
		if p.Price != nil {
			body["price"] = *p.Price
		}
	}
	return utils.MustMarshalJSON(body)
}

// ipressoPayload is flat: contact and property fields sit at the top level.
func ipressoPayload(lead *model.Lead) []byte {
	body := map[string]interface{}{
		"lead_uuid":  lead.LeadUUID,
		"source_app": lead.ApplicationName,
		"email":      lead.Customer.Email,
		"phone":      lead.Customer.Phone,
		"first_name": lead.Customer.FirstName,
		"last_name":  lead.Customer.LastName,
	}
	if p := lead.Property; p != nil {
		putIfSet(body, "development", p.DevelopmentID)
		putIfSet(body, "property", p.PropertyID)
		putIfSet(body, "partner", p.PartnerID)
		putIfSet(body, "property_type", p.PropertyType)
		putIfSet(body, "location", p.Location)
		putIfSet(body, "city", p.City)
		if p.Price != nil {
			body["price"] = *p.Price
		}
	}
	return utils.MustMarshalJSON(body)
}

func putIfSet(m map[string]interface{}, key string, value *string) {
	if value != nil && *value != "" {
		m[key] = *value
	}
}
