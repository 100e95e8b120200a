package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

func names(m []entity.MissingEvidence) []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Item
	}
	return out
}

func TestDetectMissing_ThreeOfEightSatisfied(t *testing.T) {
	reqs := constants.Requirements()
	require.Len(t, reqs, 8)

	items := []entity.ExpenseItem{
		{Category: "rent", SourceFile: "a.pdf"},
		{Category: "supplies", DocumentType: "utility", SourceFile: "b.pdf"},
	}
	claims := []entity.DamageClaim{{Label: "roof", SourceFile: "roof.jpg"}}

	got := DetectMissing(reqs, items, claims, []string{"a.pdf", "b.pdf", "roof.jpg"})
	require.Len(t, got, 5)

	var want []string
	for _, r := range reqs {
		switch r.ID {
		case "lease", "utility", "damage_photos":
			continue
		}
		want = append(want, r.Name)
	}
	assert.Equal(t, want, names(got))
	for _, m := range got {
		r := findByName(reqs, m.Item)
		assert.Equal(t, r.ActionableOutcome, m.Reason)
	}
}

func TestDetectMissing_FilenameKeyword(t *testing.T) {
	reqs := constants.Requirements()
	got := DetectMissing(reqs, nil, nil, []string{"Chase_Bank_March.pdf", "2023_TAX_return.pdf"})
	assert.NotContains(t, names(got), findByID(reqs, "bank_statements").Name)
	assert.NotContains(t, names(got), findByID(reqs, "tax_returns").Name)
	assert.Len(t, got, len(reqs)-2)
}

func TestDetectMissing_MatchesIDAndName(t *testing.T) {
	reqs := constants.Requirements()
	ins := findByID(reqs, "insurance")
	got := DetectMissing(reqs, []entity.ExpenseItem{{Category: "Other", DocumentType: "INSURANCE"}}, nil, nil)
	assert.NotContains(t, names(got), ins.Name)

	got = DetectMissing(reqs, []entity.ExpenseItem{{Category: ins.Name}}, nil, nil)
	assert.NotContains(t, names(got), ins.Name)
}

func TestAllMissing(t *testing.T) {
	reqs := constants.Requirements()
	got := AllMissing(reqs)
	require.Len(t, got, len(reqs))
	for i, r := range reqs {
		assert.Equal(t, r.Name, got[i].Item)
	}
}

func TestBuildRenameMap_ExactMatchOnly(t *testing.T) {
	items := []entity.ExpenseItem{{
		Vendor: "Acme Supply Co.", Date: "09/30/2024", Amount: 150, Category: "supplies",
		Confidence: entity.ConfidenceHigh, SourceFile: "receipt1.jpg",
	}}
	got := BuildRenameMap(items, nil, []string{"my_receipt1.jpg"})
	assert.Empty(t, got)

	got = BuildRenameMap(items, nil, []string{"receipt1.jpg", "my_receipt1.jpg"})
	require.Len(t, got, 1)
	assert.Equal(t, entity.RenameEntry{
		OriginalFilename:    "receipt1.jpg",
		RecommendedFilename: "supplies_2024-09-30_acme_supply_co_150.00.jpg",
		Confidence:          entity.ConfidenceHigh,
	}, got[0])
}

func TestBuildRenameMap_OneOfTwoMatched(t *testing.T) {
	claims := []entity.DamageClaim{{Label: "Water damage - dining room!", Confidence: entity.ConfidenceMedium, SourceFile: "IMG_0001.PNG"}}
	got := BuildRenameMap(nil, claims, []string{"IMG_0001.PNG", "notes.pdf"})
	require.Len(t, got, 1)
	assert.Equal(t, "damage_water_damage_dining_room.png", got[0].RecommendedFilename)
	assert.Equal(t, entity.ConfidenceMedium, got[0].Confidence)
}

func TestBuildRenameMap_ExpenseWinsAndNamesAreUnique(t *testing.T) {
	items := []entity.ExpenseItem{
		{Vendor: "FPL", Date: "not a date", Amount: 80.5, Category: "utilities", Confidence: entity.ConfidenceNeedsReview, SourceFile: "a.pdf"},
		{Vendor: "FPL", Date: "not a date", Amount: 80.5, Category: "utilities", Confidence: entity.ConfidenceHigh, SourceFile: "b.pdf"},
		{Vendor: "Other", Date: "2024-01-01", Amount: 1, Category: "rent", Confidence: entity.ConfidenceHigh, SourceFile: "a.pdf"},
	}
	claims := []entity.DamageClaim{{Label: "x", Confidence: entity.ConfidenceHigh, SourceFile: "a.pdf"}}

	got := BuildRenameMap(items, claims, []string{"a.pdf", "b.pdf"})
	require.Len(t, got, 2)
	assert.Equal(t, "utilities_not_a_date_fpl_80.50.pdf", got[0].RecommendedFilename)
	assert.Equal(t, entity.ConfidenceNeedsReview, got[0].Confidence)
	assert.Equal(t, "utilities_not_a_date_fpl_80.50_2.pdf", got[1].RecommendedFilename)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "home_depot_store_12", sanitize("  Home Depot #Store 12 ", 0))
	assert.Equal(t, "a_very_long_vendor", sanitize("A very long vendor name indeed", 19))
	assert.Equal(t, "", sanitize("***", 0))
}

func findByName(reqs []entity.DocumentRequirement, name string) entity.DocumentRequirement {
	for _, r := range reqs {
		if r.Name == name {
			return r
		}
	}
	return entity.DocumentRequirement{}
}

func findByID(reqs []entity.DocumentRequirement, id string) entity.DocumentRequirement {
	for _, r := range reqs {
		if r.ID == id {
			return r
		}
	}
	return entity.DocumentRequirement{}
}
