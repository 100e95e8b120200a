package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

func sampleOCR() entity.OCRResult {
	return entity.NewOCRResult(
		[]string{"receipt_1.pdf", "storefront.jpg"},
		map[string]string{
			"receipt_1.pdf": "[Page 1]\nACME SUPPLY\n03/14/2024\nTOTAL $1,204.50",
		},
	)
}

func TestBuildExtractionPrompt_Deterministic(t *testing.T) {
	reqs := constants.Requirements()
	ectx := entity.EvidenceContext{BusinessType: "Restaurant", County: "Lee", State: "FL", DisasterID: "DR-4673"}

	a := BuildExtractionPrompt(sampleOCR(), reqs, ectx)
	b := BuildExtractionPrompt(sampleOCR(), reqs, ectx)
	assert.Equal(t, a, b)
}

func TestBuildExtractionPrompt_Content(t *testing.T) {
	reqs := constants.Requirements()
	p := BuildExtractionPrompt(sampleOCR(), reqs, entity.EvidenceContext{
		BusinessType: "Restaurant", County: "Lee", State: "FL", DisasterID: "DR-4673",
		DeclarationTitle: "Hurricane Ian",
	})

	for _, r := range reqs {
		assert.Contains(t, p, r.Name)
		assert.Contains(t, p, "[document_type: "+r.ID+"]")
	}
	assert.Contains(t, p, "Business type: Restaurant")
	assert.Contains(t, p, "Location: Lee County, FL")
	assert.Contains(t, p, "FEMA Disaster ID: DR-4673")
	assert.Contains(t, p, "Declaration: Hurricane Ian")
	assert.Contains(t, p, "UPLOADED FILES (2 files):")

	// file blocks keep upload order and carry the OCR text verbatim
	i := strings.Index(p, "--- FILE: receipt_1.pdf ---\n[Page 1]\nACME SUPPLY\n03/14/2024\nTOTAL $1,204.50\n--- END FILE: receipt_1.pdf ---")
	j := strings.Index(p, "--- FILE: storefront.jpg ---\n(no OCR text)\n--- END FILE: storefront.jpg ---")
	require.GreaterOrEqual(t, i, 0)
	require.GreaterOrEqual(t, j, 0)
	assert.Less(t, i, j)
}

func TestBuildExtractionPrompt_NoContext(t *testing.T) {
	p := BuildExtractionPrompt(sampleOCR(), constants.Requirements(), entity.EvidenceContext{})
	assert.Contains(t, p, "CONTEXT:\nNo additional context provided.")

	p = BuildExtractionPrompt(sampleOCR(), constants.Requirements(), entity.EvidenceContext{State: "TX"})
	assert.Contains(t, p, "Location: TX")
	assert.NotContains(t, p, "No additional context provided.")
}

func TestBuildExtractionJSONSchema_Validates(t *testing.T) {
	schema := BuildExtractionJSONSchema(constants.Requirements())

	ok := `{"expense_items":[{"vendor":"Acme","date":"03/14/2024","amount":1204.5,"category":"supplies",
		"confidence":"high","source_file":"receipt_1.pdf","source_text":"TOTAL $1,204.50","document_type":null}],
		"damage_claims":[]}`
	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(ok)))

	cases := map[string]string{
		"missing damage_claims": `{"expense_items":[]}`,
		"negative amount": `{"expense_items":[{"vendor":"a","date":"d","amount":-1,"category":"c","confidence":"high",
			"source_file":"f","source_text":"t","document_type":"receipt"}],"damage_claims":[]}`,
		"bad confidence": `{"expense_items":[],"damage_claims":[{"label":"l","detail":"d","confidence":"low",
			"source_file":"f","source_text":"t"}]}`,
		"bad document_type": `{"expense_items":[{"vendor":"a","date":"d","amount":1,"category":"c","confidence":"high",
			"source_file":"f","source_text":"t","document_type":"passport"}],"damage_claims":[]}`,
		"extra key": `{"expense_items":[],"damage_claims":[],"notes":"x"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(doc)))
		})
	}
}

func TestBuildAttachments(t *testing.T) {
	files := []entity.UploadedFile{
		{Filename: "a.pdf", MIMEType: constants.MIMEPDF, Data: []byte("%PDF")},
		{Filename: "b.jpg", MIMEType: "image/jpg", Data: []byte{0xff, 0xd8}},
		{Filename: "big.png", MIMEType: constants.MIMEPNG, Data: make([]byte, 64)},
	}
	got := BuildAttachments(files, 32, quietLogger())
	require.Len(t, got, 1)
	assert.Equal(t, "b.jpg", got[0].Filename)
	assert.Equal(t, constants.MIMEJPEG, got[0].MIMEType)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", got[0].DataURL)
}
