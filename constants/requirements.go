package constants

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// DocTypeReceipt and DocTypeOther bracket the requirement ids in the document_type enum.
const (
	DocTypeReceipt = "receipt"
	DocTypeOther   = "other"
)

//go:embed requirements.yaml
var requirementsYAML []byte

var (
	catalogOnce sync.Once
	catalog     []entity.DocumentRequirement
)

func loadCatalog() {
	reqs, err := ParseRequirements(requirementsYAML)
	if err != nil {
		panic(fmt.Sprintf("constants: invalid requirements catalog: %v", err))
	}
	catalog = reqs
}

// ParseRequirements decodes and checks a requirement catalog document.
func ParseRequirements(doc []byte) ([]entity.DocumentRequirement, error) {
	var reqs []entity.DocumentRequirement
	if err := yaml.Unmarshal(doc, &reqs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]struct{}, len(reqs))
	for i, r := range reqs {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, fmt.Errorf("entry %d: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.ActionableOutcome) == "" {
			return nil, fmt.Errorf("entry %q: name and actionable_outcome are required", id)
		}
		if r.Forms == "" {
			reqs[i].Forms = "None"
		}
		for k, kw := range r.Keywords {
			reqs[i].Keywords[k] = strings.ToLower(strings.TrimSpace(kw))
		}
		reqs[i].ID = id
	}
	return reqs, nil
}

// Requirements returns the document requirement catalog in reporting order.
// Each call returns a fresh copy; the catalog itself never changes at run time.
func Requirements() []entity.DocumentRequirement {
	catalogOnce.Do(loadCatalog)
	out := make([]entity.DocumentRequirement, len(catalog))
	for i, r := range catalog {
		out[i] = r.Clone()
	}
	return out
}

// RequirementByID looks up a single catalog entry.
func RequirementByID(id string) (entity.DocumentRequirement, bool) {
	for _, r := range Requirements() {
		if r.ID == id {
			return r, true
		}
	}
	return entity.DocumentRequirement{}, false
}

// DocumentTypes lists the values accepted for an expense's document_type:
// "receipt", every requirement id, then "other".
func DocumentTypes(reqs []entity.DocumentRequirement) []string {
	out := make([]string, 0, len(reqs)+2)
	out = append(out, DocTypeReceipt)
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return append(out, DocTypeOther)
}
