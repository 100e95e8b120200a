package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

const (
	SheetExpenses = "Expenses"
	SheetDamage   = "Damage"
	SheetRenames  = "Rename Map"
	SheetMissing  = "Missing Evidence"
)

// Service renders an extraction result as an XLSX workbook for case workers.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WorkbookXLSX returns the workbook bytes: one sheet per result section.
// Needs-review rows are filled yellow so they stand out.
func (s *Service) WorkbookXLSX(ctx context.Context, result entity.ExtractionResult) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	review, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	// Expenses
	exp := newSheet(f, SheetExpenses, bold,
		"Date", "Vendor", "Amount", "Category", "Document Type", "Confidence", "Review Reason", "Source File", "Source Text")
	for _, e := range result.ExpenseItems {
		exp.row(e.Confidence.NeedsReview(), review,
			e.Date, e.Vendor, e.Amount, e.Category, e.DocumentType, string(e.Confidence), e.ReviewReason, e.SourceFile, truncate(e.SourceText, 140))
	}
	exp.widths(map[string]float64{"A": 14, "B": 28, "C": 12, "D": 18, "E": 18, "F": 14, "G": 30, "H": 36, "I": 60})

	// Damage
	dmg := newSheet(f, SheetDamage, bold, "Label", "Detail", "Confidence", "Review Reason", "Source File", "Source Text")
	for _, d := range result.DamageClaims {
		dmg.row(d.Confidence.NeedsReview(), review,
			d.Label, truncate(d.Detail, 140), string(d.Confidence), d.ReviewReason, d.SourceFile, truncate(d.SourceText, 140))
	}
	dmg.widths(map[string]float64{"A": 24, "B": 60, "C": 14, "D": 30, "E": 36, "F": 60})

	// Renames
	ren := newSheet(f, SheetRenames, bold, "Original Filename", "Recommended Filename", "Confidence")
	for _, r := range result.RenameMap {
		ren.row(r.Confidence.NeedsReview(), review, r.OriginalFilename, r.RecommendedFilename, string(r.Confidence))
	}
	ren.widths(map[string]float64{"A": 40, "B": 60, "C": 14})

	// Missing
	mis := newSheet(f, SheetMissing, bold, "Item", "Reason")
	for _, m := range result.MissingEvidence {
		mis.row(false, 0, m.Item, m.Reason)
	}
	mis.widths(map[string]float64{"A": 36, "B": 80})

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("xlsx delete default sheet: %w", err)
	}
	if idx, _ := f.GetSheetIndex(SheetExpenses); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"expenses", len(result.ExpenseItems),
		"damage", len(result.DamageClaims),
		"missing", len(result.MissingEvidence),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type sheet struct {
	f    *excelize.File
	name string
	next int
	cols int
}

func newSheet(f *excelize.File, name string, headerStyle int, headers ...string) *sheet {
	_, _ = f.NewSheet(name)
	sh := &sheet{f: f, name: name, next: 1, cols: len(headers)}
	vals := make([]any, len(headers))
	for i, h := range headers {
		vals[i] = h
	}
	sh.row(true, headerStyle, vals...)
	_ = f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return sh
}

func (s *sheet) row(styled bool, style int, vals ...any) {
	for i, v := range vals {
		cell, _ := excelize.CoordinatesToCellName(i+1, s.next)
		_ = s.f.SetCellValue(s.name, cell, v)
	}
	if styled && style != 0 {
		first, _ := excelize.CoordinatesToCellName(1, s.next)
		last, _ := excelize.CoordinatesToCellName(s.cols, s.next)
		_ = s.f.SetCellStyle(s.name, first, last, style)
	}
	s.next++
}

func (s *sheet) widths(w map[string]float64) {
	for col, width := range w {
		_ = s.f.SetColWidth(s.name, col, col, width)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
