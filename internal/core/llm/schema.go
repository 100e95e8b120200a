package llm

import (
	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// ExtractionSchemaName is the name the schema is registered under with the provider.
const ExtractionSchemaName = "evidence_extraction"

// BuildExtractionJSONSchema returns the strict output schema as a generic map.
// We pass this to the provider as a structured output constraint and also use
// it locally to validate. Every property is required and optional values are
// nullable, which is what strict structured output expects.
func BuildExtractionJSONSchema(reqs []entity.DocumentRequirement) map[string]any {
	docTypes := constants.DocumentTypes(reqs)
	docEnum := make([]any, 0, len(docTypes)+1)
	for _, d := range docTypes {
		docEnum = append(docEnum, d)
	}
	docEnum = append(docEnum, nil)

	expense := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor":        map[string]any{"type": "string"},
			"date":          map[string]any{"type": "string"},
			"amount":        map[string]any{"type": "number", "minimum": 0},
			"category":      map[string]any{"type": "string"},
			"confidence":    confidenceProp(),
			"source_file":   map[string]any{"type": "string"},
			"source_text":   map[string]any{"type": "string"},
			"document_type": map[string]any{"type": []any{"string", "null"}, "enum": docEnum},
		},
		"required": []any{"vendor", "date", "amount", "category", "confidence", "source_file", "source_text", "document_type"},
	}

	damage := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"label":       map[string]any{"type": "string"},
			"detail":      map[string]any{"type": "string"},
			"confidence":  confidenceProp(),
			"source_file": map[string]any{"type": "string"},
			"source_text": map[string]any{"type": "string"},
		},
		"required": []any{"label", "detail", "confidence", "source_file", "source_text"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"expense_items": map[string]any{"type": "array", "items": expense},
			"damage_claims": map[string]any{"type": "array", "items": damage},
		},
		"required": []any{"expense_items", "damage_claims"},
	}
}

func confidenceProp() map[string]any {
	vals := entity.AllConfidences()
	enum := make([]any, len(vals))
	for i, v := range vals {
		enum[i] = v
	}
	return map[string]any{"type": "string", "enum": enum}
}
