package entity

import "strings"

// Confidence is an ordered tri-state: high > medium > needs_review.
type Confidence string

const (
	ConfidenceHigh        Confidence = "high"
	ConfidenceMedium      Confidence = "medium"
	ConfidenceNeedsReview Confidence = "needs_review"
)

// AllConfidences lists the accepted values, highest first.
func AllConfidences() []string {
	return []string{string(ConfidenceHigh), string(ConfidenceMedium), string(ConfidenceNeedsReview)}
}

// ParseConfidence accepts loose spellings ("Needs Review", "HIGH").
// Unknown input maps to needs_review.
func ParseConfidence(s string) Confidence {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium:
		return Confidence(s)
	}
	return ConfidenceNeedsReview
}

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	}
	return 0
}

func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceNeedsReview
}

// Less reports whether c ranks below o.
func (c Confidence) Less(o Confidence) bool { return c.rank() < o.rank() }

// Downgrade moves c toward needs_review. It returns the lower of c and to,
// so it can never raise a confidence. This is the only transition allowed.
func (c Confidence) Downgrade(to Confidence) Confidence {
	if !c.Valid() {
		return ConfidenceNeedsReview
	}
	if to.Valid() && to.Less(c) {
		return to
	}
	return c
}

func (c Confidence) NeedsReview() bool { return c.rank() == 0 }
