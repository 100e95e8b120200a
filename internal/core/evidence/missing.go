// Package evidence derives the checklist and filing outputs of an extraction:
// which required documents are still missing and how uploaded files should be
// renamed.
package evidence

import (
	"strings"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// damageToken is what any damage claim contributes to the satisfied set.
const damageToken = "damage"

// DetectMissing returns one entry per requirement that nothing in the
// extraction satisfies, in catalog order. A requirement is satisfied when an
// expense's category or document_type names it (id, name or keyword), when a
// damage claim exists and the requirement is about damage, or when an
// uploaded filename contains one of its keywords.
func DetectMissing(reqs []entity.DocumentRequirement, items []entity.ExpenseItem, claims []entity.DamageClaim, filenames []string) []entity.MissingEvidence {
	found := make(map[string]struct{}, len(items)*2+1)
	for _, it := range items {
		if c := strings.ToLower(strings.TrimSpace(it.Category)); c != "" {
			found[c] = struct{}{}
		}
		if d := strings.ToLower(strings.TrimSpace(it.DocumentType)); d != "" {
			found[d] = struct{}{}
		}
	}
	if len(claims) > 0 {
		found[damageToken] = struct{}{}
	}

	lowerNames := make([]string, len(filenames))
	for i, fn := range filenames {
		lowerNames[i] = strings.ToLower(fn)
	}

	out := make([]entity.MissingEvidence, 0, len(reqs))
	for _, r := range reqs {
		if satisfied(r, found, lowerNames) {
			continue
		}
		out = append(out, entity.MissingEvidence{Item: r.Name, Reason: r.ActionableOutcome})
	}
	return out
}

// AllMissing reports every requirement as missing; used when nothing was uploaded.
func AllMissing(reqs []entity.DocumentRequirement) []entity.MissingEvidence {
	return DetectMissing(reqs, nil, nil, nil)
}

func satisfied(r entity.DocumentRequirement, found map[string]struct{}, filenames []string) bool {
	tokens := make([]string, 0, len(r.Keywords)+2)
	tokens = append(tokens, strings.ToLower(r.ID), strings.ToLower(r.Name))
	tokens = append(tokens, r.Keywords...)
	for _, tok := range tokens {
		if _, ok := found[tok]; ok {
			return true
		}
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			continue
		}
		for _, fn := range filenames {
			if strings.Contains(fn, kw) {
				return true
			}
		}
	}
	return false
}
