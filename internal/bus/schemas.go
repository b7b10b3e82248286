package bus

import (
	"encoding/json"

	"huntflow-sync/internal/common/validation"
)

func intProp() validation.Property { return validation.Property{Type: "integer"} }
func strProp() validation.Property { return validation.Property{Type: "string"} }

func nonEmptyStr() validation.Property {
	minLen := 1
	return validation.Property{Type: "string", MinLength: &minLen}
}

// payloadSchemas describes the minimum shape each inbound event must have
// before its handler runs. Unknown extra fields are always allowed; the
// topic schema evolves independently of this service.
var payloadSchemas = map[string]validation.JSONSchema{
	TypeRecommendationSubmitted: {
		Type: "object",
		Properties: map[string]validation.Property{
			"id":             intProp(),
			"first_name":     nonEmptyStr(),
			"last_name":      nonEmptyStr(),
			"phone":          strProp(),
			"city":           strProp(),
			"about":          strProp(),
			"circle":         strProp(),
			"specialization": strProp(),
			"is_notified":    {Type: "boolean"},
			"files":          {Type: "array", Items: &validation.Property{Type: "string"}},
			"inviter": {
				Type: "object",
				Properties: map[string]validation.Property{
					"first_name": strProp(),
					"last_name":  strProp(),
					"username":   nonEmptyStr(),
				},
				Required: []string{"username"},
			},
		},
		Required:             []string{"id", "first_name", "last_name", "inviter"},
		AdditionalProperties: true,
	},
	TypeSecurityCheckCreated: {
		Type: "object",
		Properties: map[string]validation.Property{
			"id":       intProp(),
			"arms_id":  strProp(),
			"arms_url": nonEmptyStr(),
		},
		Required:             []string{"id", "arms_url"},
		AdditionalProperties: true,
	},
	TypeSecurityCheckFilled: {
		Type: "object",
		Properties: map[string]validation.Property{
			"id": intProp(),
		},
		Required:             []string{"id"},
		AdditionalProperties: true,
	},
	TypeSecurityCheckFailed: {
		Type: "object",
		Properties: map[string]validation.Property{
			"id":            intProp(),
			"arms_id":       strProp(),
			"candidate_url": strProp(),
		},
		Required:             []string{"id"},
		AdditionalProperties: true,
	},
	TypeSecurityCheckFinished: {
		Type: "object",
		Properties: map[string]validation.Property{
			"id":      intProp(),
			"arms_id": strProp(),
			"status":  nonEmptyStr(),
		},
		Required:             []string{"id", "status"},
		AdditionalProperties: true,
	},
}

// ValidatePayload checks an inbound payload against the schema for its
// event type. Event types without a schema pass.
func ValidatePayload(eventType string, payload json.RawMessage) error {
	schema, ok := payloadSchemas[eventType]
	if !ok {
		return nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	return validation.ValidateInput(decoded, schema).Error()
}
