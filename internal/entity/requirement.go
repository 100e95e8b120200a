package entity

// DocumentRequirement is one evidence category expected in a submission.
type DocumentRequirement struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	RequiredFields    []string `json:"required_fields" yaml:"required_fields"`
	DateRange         string   `json:"date_range" yaml:"date_range"`
	Forms             string   `json:"forms" yaml:"forms"`
	ActionableOutcome string   `json:"actionable_outcome" yaml:"actionable_outcome"`
	// Keywords match extracted categories and filenames to this requirement.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords"`
}

// Clone deep-copies the slices so callers cannot alias catalog storage.
func (r DocumentRequirement) Clone() DocumentRequirement {
	r.RequiredFields = append([]string(nil), r.RequiredFields...)
	r.Keywords = append([]string(nil), r.Keywords...)
	return r
}
