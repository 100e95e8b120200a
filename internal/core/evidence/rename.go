package evidence

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/relief-evidence/internal/core/anchor"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

const (
	maxVendorLen = 20
	maxLabelLen  = 30
	defaultExt   = ".jpg"
)

var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// BuildRenameMap proposes a standardized name for every uploaded file that a
// record points at through an exact source_file match. The first expense for
// a file wins over damage claims; files no record points at are left out.
// Entries follow upload order and recommended names never collide.
func BuildRenameMap(items []entity.ExpenseItem, claims []entity.DamageClaim, filenames []string) []entity.RenameEntry {
	firstExpense := make(map[string]entity.ExpenseItem, len(items))
	for _, it := range items {
		if _, ok := firstExpense[it.SourceFile]; !ok {
			firstExpense[it.SourceFile] = it
		}
	}
	firstClaim := make(map[string]entity.DamageClaim, len(claims))
	for _, c := range claims {
		if _, ok := firstClaim[c.SourceFile]; !ok {
			firstClaim[c.SourceFile] = c
		}
	}

	used := make(map[string]int, len(filenames))
	var out []entity.RenameEntry
	for _, fn := range filenames {
		ext := strings.ToLower(filepath.Ext(fn))
		if ext == "" {
			ext = defaultExt
		}
		var (
			base string
			conf entity.Confidence
		)
		if e, ok := firstExpense[fn]; ok {
			base, conf = expenseName(e), e.Confidence
		} else if c, ok := firstClaim[fn]; ok {
			base, conf = damageName(c), c.Confidence
		} else {
			continue
		}
		out = append(out, entity.RenameEntry{
			OriginalFilename:    fn,
			RecommendedFilename: unique(used, base, ext),
			Confidence:          conf,
		})
	}
	return out
}

func expenseName(e entity.ExpenseItem) string {
	category := sanitize(e.Category, 0)
	if category == "" {
		category = "expense"
	}
	date := sanitize(e.Date, 0)
	if t, ok := anchor.ParseDate(e.Date); ok {
		date = t.Format("2006-01-02")
	}
	parts := []string{category}
	if date != "" {
		parts = append(parts, date)
	}
	if v := sanitize(e.Vendor, maxVendorLen); v != "" {
		parts = append(parts, v)
	}
	parts = append(parts, strconv.FormatFloat(e.Amount, 'f', 2, 64))
	return strings.Join(parts, "_")
}

func damageName(c entity.DamageClaim) string {
	label := sanitize(c.Label, maxLabelLen)
	if label == "" {
		return "damage"
	}
	return "damage_" + label
}

// sanitize lowercases s and reduces it to [a-z0-9_], cut to max bytes when max > 0.
func sanitize(s string, max int) string {
	s = reNonAlnum.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if max > 0 && len(s) > max {
		s = strings.TrimRight(s[:max], "_")
	}
	return s
}

func unique(used map[string]int, base, ext string) string {
	name := base + ext
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	for {
		n++
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if used[candidate] == 0 {
			used[candidate] = 1
			used[name] = n
			return candidate
		}
	}
}
