package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

var (
	reFence       = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*(.*?)\\s*```\\s*$")
	reAmountJunk  = regexp.MustCompile(`[^\d.\-]`)
	expenseFields = []string{"vendor", "date", "amount", "category", "confidence", "source_file", "source_text", "document_type"}
	damageFields  = []string{"label", "detail", "confidence", "source_file", "source_text"}
)

var docTypeAliases = map[string]string{
	"utility_bill":   "utility",
	"utilities":      "utility",
	"bank_statement": "bank_statements",
	"statement":      "bank_statements",
	"tax":            "tax_returns",
	"tax_return":     "tax_returns",
	"license":        "business_license",
	"registration":   "business_license",
	"rent":           "lease",
	"invoice":        constants.DocTypeReceipt,
	"photo":          "damage_photos",
}

// NormalizeAndSanitizeJSON makes a model response friendlier to the strict schema
// without inventing data:
// - Strips markdown code fences
// - Renames known synonyms (expenses -> expense_items, total -> amount, ...)
// - Coerces "$1,234.50" style amounts to numbers
// - Lowercases confidence and maps loose spellings ("Needs Review")
// - Maps document_type aliases onto docTypes; unknown values become "other"
// - Removes unknown keys (additionalProperties = false friendliness)
// Anything it cannot repair is left for schema validation to reject.
func NormalizeAndSanitizeJSON(raw []byte, docTypes []string, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m := reFence.FindSubmatch(raw); m != nil {
		raw = m[1]
	}

	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: decode: top-level value is not an object")
	}

	s := sanitizer{allowed: make(map[string]struct{}, len(docTypes))}
	for _, d := range docTypes {
		s.allowed[d] = struct{}{}
	}

	s.rename(m, "", "expenses", "expense_items")
	s.rename(m, "", "items", "expense_items")
	s.rename(m, "", "damages", "damage_claims")
	s.rename(m, "", "damage", "damage_claims")

	m["expense_items"] = s.records(m["expense_items"], "expense_items", s.expense)
	m["damage_claims"] = s.records(m["damage_claims"], "damage_claims", s.damage)
	s.dropUnknown(m, "", []string{"expense_items", "damage_claims"})

	out, err := json.Marshal(m)
	if err != nil {
		return nil, s.dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(s.dropped) > 0 {
		logger.Warn("llm.structure.normalize_sanitize", "dropped", s.dropped)
	}
	return out, s.dropped, nil
}

type sanitizer struct {
	allowed map[string]struct{}
	dropped []string
}

func (s *sanitizer) note(path, what string) {
	s.dropped = append(s.dropped, path+what)
}

func (s *sanitizer) rename(m map[string]any, path, from, to string) {
	if v, ok := m[from]; ok {
		// don't overwrite existing value if already present
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
		s.note(path, from+"->"+to)
	}
}

func (s *sanitizer) dropUnknown(m map[string]any, path string, allowed []string) {
	for k := range maps.Clone(m) {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			delete(m, k)
			s.note(path, k+"(unknown)")
		}
	}
}

// records normalizes one list; null or missing becomes []. Non-object entries
// are kept so validation reports them.
func (s *sanitizer) records(v any, key string, fix func(map[string]any, string)) any {
	switch t := v.(type) {
	case nil:
		return []any{}
	case []any:
		for i, rec := range t {
			if obj, ok := rec.(map[string]any); ok {
				fix(obj, fmt.Sprintf("%s[%d].", key, i))
			}
		}
		return t
	default:
		return v
	}
}

func (s *sanitizer) expense(m map[string]any, path string) {
	s.rename(m, path, "merchant", "vendor")
	s.rename(m, path, "vendor_name", "vendor")
	s.rename(m, path, "total", "amount")
	s.rename(m, path, "filename", "source_file")
	s.rename(m, path, "file", "source_file")

	for _, k := range []string{"vendor", "date", "category", "source_file", "source_text"} {
		s.trimString(m, path, k)
	}
	s.coerceAmount(m, path)
	s.confidence(m, path)
	if v, ok := m["category"].(string); ok {
		if cat, known := constants.Canonicalize(v); known {
			m["category"] = string(cat)
		} else {
			m["category"] = strings.ToLower(v)
		}
	}
	s.documentType(m, path)
	s.dropUnknown(m, path, expenseFields)
}

func (s *sanitizer) damage(m map[string]any, path string) {
	s.rename(m, path, "description", "detail")
	s.rename(m, path, "filename", "source_file")
	s.rename(m, path, "file", "source_file")
	for _, k := range []string{"label", "detail", "source_file", "source_text"} {
		s.trimString(m, path, k)
	}
	s.confidence(m, path)
	s.dropUnknown(m, path, damageFields)
}

func (s *sanitizer) trimString(m map[string]any, path, k string) {
	switch t := m[k].(type) {
	case nil:
		if _, present := m[k]; present {
			m[k] = ""
			s.note(path, k+"(null)")
		}
	case string:
		m[k] = strings.TrimSpace(t)
	case json.Number:
		m[k] = t.String()
	}
}

func (s *sanitizer) coerceAmount(m map[string]any, path string) {
	v, ok := m["amount"]
	if !ok {
		return
	}
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			m["amount"] = f
		}
	case string:
		clean := reAmountJunk.ReplaceAllString(t, "")
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			m["amount"] = f
			s.note(path, "amount(string)")
		}
	}
}

func (s *sanitizer) confidence(m map[string]any, path string) {
	switch t := m["confidence"].(type) {
	case string:
		c := entity.ParseConfidence(t)
		if string(c) != t {
			s.note(path, "confidence("+t+")")
		}
		m["confidence"] = string(c)
	case nil:
		m["confidence"] = string(entity.ConfidenceNeedsReview)
		s.note(path, "confidence(missing)")
	}
}

func (s *sanitizer) documentType(m map[string]any, path string) {
	v, present := m["document_type"]
	if !present {
		m["document_type"] = nil
		return
	}
	str, ok := v.(string)
	if !ok {
		return
	}
	d := strings.ToLower(strings.TrimSpace(str))
	d = strings.NewReplacer(" ", "_", "-", "_").Replace(d)
	if d == "" || d == "null" || d == "none" {
		m["document_type"] = nil
		return
	}
	if alias, ok := docTypeAliases[d]; ok {
		d = alias
	}
	if _, ok := s.allowed[d]; !ok {
		s.note(path, "document_type("+str+")")
		d = constants.DocTypeOther
	}
	m["document_type"] = d
}
