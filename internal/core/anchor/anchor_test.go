package anchor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

func ocrOf(texts map[string]string, order ...string) entity.OCRResult {
	return entity.NewOCRResult(order, texts)
}

func expense(amount float64, date, file string, c entity.Confidence) entity.ExpenseItem {
	return entity.ExpenseItem{
		Vendor: "Acme", Date: date, Amount: amount, Category: "supplies",
		Confidence: c, SourceFile: file, SourceText: "Total: $150.00",
	}
}

func TestValidateExpenses_Scenarios(t *testing.T) {
	ocr := ocrOf(map[string]string{
		"r1.jpg": "Total: $150.00 paid 2024-09-30",
		"r2.jpg": "",
	}, "r1.jpg", "r2.jpg")

	t.Run("found keeps confidence", func(t *testing.T) {
		in := []entity.ExpenseItem{expense(150.00, "2024-09-30", "r1.jpg", entity.ConfidenceHigh)}
		out := ValidateExpenses(in, ocr)
		require.Len(t, out, 1)
		assert.Equal(t, in[0], out[0])
	})

	t.Run("wrong amount downgrades", func(t *testing.T) {
		in := []entity.ExpenseItem{expense(999.00, "2024-09-30", "r1.jpg", entity.ConfidenceHigh)}
		out := ValidateExpenses(in, ocr)
		assert.Equal(t, entity.ConfidenceNeedsReview, out[0].Confidence)
		assert.Equal(t, ReasonAmountNotFound, out[0].ReviewReason)
		assert.Equal(t, "Total: $150.00 "+Note(ReasonAmountNotFound), out[0].SourceText)
		// input untouched
		assert.Equal(t, entity.ConfidenceHigh, in[0].Confidence)
		assert.Equal(t, "Total: $150.00", in[0].SourceText)
	})

	t.Run("amount only inside the date downgrades", func(t *testing.T) {
		out := ValidateExpenses([]entity.ExpenseItem{expense(30, "2024-09-30", "r1.jpg", entity.ConfidenceHigh)}, ocr)
		assert.Equal(t, entity.ConfidenceNeedsReview, out[0].Confidence)
		assert.Equal(t, ReasonAmountNotFound, out[0].ReviewReason)
	})

	t.Run("empty OCR text always downgrades", func(t *testing.T) {
		out := ValidateExpenses([]entity.ExpenseItem{expense(150.00, "2024-09-30", "r2.jpg", entity.ConfidenceMedium)}, ocr)
		assert.Equal(t, entity.ConfidenceNeedsReview, out[0].Confidence)
		assert.Equal(t, ReasonNoOCRText, out[0].ReviewReason)
	})

	t.Run("unknown source file downgrades", func(t *testing.T) {
		out := ValidateExpenses([]entity.ExpenseItem{expense(150.00, "2024-09-30", "my_r1.jpg", entity.ConfidenceHigh)}, ocr)
		assert.Equal(t, entity.ConfidenceNeedsReview, out[0].Confidence)
		assert.Equal(t, ReasonUnknownSource, out[0].ReviewReason)
	})

	t.Run("both missing", func(t *testing.T) {
		out := ValidateExpenses([]entity.ExpenseItem{expense(12.00, "2023-01-01", "r1.jpg", entity.ConfidenceHigh)}, ocr)
		assert.Equal(t, ReasonBothNotFound, out[0].ReviewReason)
	})
}

func TestValidateExpenses_IdempotentAndMonotonic(t *testing.T) {
	ocr := ocrOf(map[string]string{"a.pdf": "[Page 1]\nINVOICE 03/14/2024\nAmount due 1,204.50"}, "a.pdf")
	in := []entity.ExpenseItem{
		expense(1204.50, "03/14/2024", "a.pdf", entity.ConfidenceHigh),
		expense(1204.50, "03/15/2024", "a.pdf", entity.ConfidenceMedium),
		expense(7, "03/14/2024", "a.pdf", entity.ConfidenceNeedsReview),
		expense(1204.50, "03/14/2024", "missing.pdf", entity.ConfidenceHigh),
	}

	once := ValidateExpenses(in, ocr)
	twice := ValidateExpenses(once, ocr)
	assert.Equal(t, once, twice)

	for i := range in {
		assert.False(t, in[i].Confidence.Less(once[i].Confidence), "confidence raised at %d", i)
	}
	assert.Equal(t, entity.ConfidenceHigh, once[0].Confidence)
	assert.Equal(t, entity.ConfidenceNeedsReview, once[1].Confidence)
	assert.Equal(t, 2, Downgraded(in, once))
}

func TestAmountFound(t *testing.T) {
	cases := []struct {
		text   string
		amount float64
		want   bool
	}{
		{"TOTAL $1,204.50", 1204.50, true},
		{"TOTAL 1204.5", 1204.50, true},
		{"Rent 1500.00 due", 1500, true},
		{"Rent $1,500 due", 1500, true},
		{"Rent 1500.", 1500, true},
		{"Rent 11500.00", 1500, false},
		{"Rent 1500.25", 1500, false},
		{"Tip 12.55", 12.5, false},
		{"Tip 12.50", 12.5, true},
		{"ratio 0.150", 150, false},
		{"Total: $150.00 paid 2024-09-30", 30, false},
		{"Total: $150.00 paid 2024-09-30", 2024, false},
		{"Total: $150.00 paid 2024-09-30", 150, true},
		{"Date 09/30/2024 qty 9", 9, true},
		{"Date 09/30/2024", 9, false},
		{"Sep 30, 2024 deposit 30.00", 30, true},
		{"Sep 30, 2024", 30, false},
		{"Stamp 2024-09-30T10:15:00Z", 15, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, amountFound(tc.text, tc.amount), "%q / %v", tc.text, tc.amount)
	}
}

func TestDateFound(t *testing.T) {
	cases := []struct {
		text string
		date string
		want bool
	}{
		{"paid 2024-09-30", "2024-09-30", true},
		{"paid 09/30/2024", "2024-09-30", true},
		{"paid 9/30/24", "2024-09-30", true},
		{"Date: Sep. 30, 2024", "2024-09-30", true},
		{"Date: SEPT 30 2024", "09/30/2024", true},
		{"Date: September 30, 2024", "Sep 30, 2024", true},
		{"Date: 30 Sep 2024", "2024-09-30", true},
		{"Stamp 2024-09-30T10:15:00Z", "2024-09-30", true},
		{"paid 2024-09-30", "September 30th, 2024", true},
		{"paid 11/30/2024", "1/30/2024", false},
		{"paid 2024-09-30", "2024-09-03", false},
		{"week 38 of fiscal year", "FY24 W38", false},
		{"Period: Q3 FY24", "q3 fy24", true},
		{"paid 2024-09-30", "", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, dateFound(tc.text, tc.date), "%q / %q", tc.text, tc.date)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-04", "03/04/2024", "3/4/24", "Mar 4, 2024", "March 4 2024", "4 Mar 2024", "4-Mar-2024", "20240304"} {
		got, ok := ParseDate(s)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), "%s -> %s", s, got)
	}
	_, ok := ParseDate("last tuesday")
	assert.False(t, ok)
}

func TestValidateClaims(t *testing.T) {
	ocr := ocrOf(map[string]string{"floor.jpg": ""}, "floor.jpg")
	in := []entity.DamageClaim{
		{Label: "Flooded floor", Confidence: entity.ConfidenceHigh, SourceFile: "floor.jpg", SourceText: "water"},
		{Label: "Roof", Confidence: entity.ConfidenceMedium, SourceFile: "roof.jpg", SourceText: "hole"},
	}
	out := ValidateClaims(in, ocr)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, entity.ConfidenceNeedsReview, out[1].Confidence)
	assert.Equal(t, "hole "+Note(ReasonUnknownSource), out[1].SourceText)
	assert.Equal(t, out, ValidateClaims(out, ocr))
}
