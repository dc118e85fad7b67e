package scrape

import (
	"regexp"
	"strings"

	"github.com/snaka/mioportal/internal/domain"
)

// Markup assumptions for the bill-detail page, one named constant per class so
// upstream drift fails loudly in tests instead of silently in production.
const (
	classBillSummary = "bill-summary"
	classBillMonth   = "bill-month"
	classBillTotal   = "total-amount"
	classTaxTable    = "tax-detail"
	classItemTable   = "bill-detail"
	classPlanRow     = "plan-title"
	classSubtotalRow = "subtotal"
	classSubLabelRow = "sub-label"
)

var (
	billSummaryPattern = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*\b` + classBillSummary + `\b[^"]*"[^>]*>(.*?)</div>`)
	billMonthPattern   = regexp.MustCompile(`(?s)<[^>]*class="[^"]*\b` + classBillMonth + `\b[^"]*"[^>]*>(.*?)<`)
	billTotalPattern   = regexp.MustCompile(`(?s)<td[^>]*class="[^"]*\b` + classBillTotal + `\b[^"]*"[^>]*>(.*?)</td>`)
	taxTablePattern    = regexp.MustCompile(`(?s)<table[^>]*class="[^"]*\b` + classTaxTable + `\b[^"]*"[^>]*>(.*?)</table>`)
	itemTablePattern   = regexp.MustCompile(`(?s)<table[^>]*class="[^"]*\b` + classItemTable + `\b[^"]*"[^>]*>(.*?)</table>`)
)

// ParseBillDetail extracts the itemized bill from a detail page. It returns
// nil at exactly two checkpoints: when the summary block is missing (the page
// is not a bill-detail page) and when the item table yields zero sections.
// Every other missing sub-structure degrades to nil/empty fields.
func ParseBillDetail(html string) *domain.BillDetail {
	summary, ok := FirstMatch(html, billSummaryPattern)
	if !ok {
		return nil
	}
	monthText, ok := FirstMatch(summary, billMonthPattern)
	if !ok {
		return nil
	}
	totalText, ok := FirstMatch(summary, billTotalPattern)
	if !ok {
		return nil
	}

	detail := &domain.BillDetail{
		MonthText:       PlainText(monthText, true),
		TotalAmountText: PlainText(totalText, true),
		TaxBreakdowns:   []domain.BillTaxBreakdown{},
	}
	detail.TotalAmount = ParseCurrency(detail.TotalAmountText)

	if taxTable, ok := FirstMatch(html, taxTablePattern); ok {
		detail.TaxBreakdowns = parseTaxRows(taxTable)
	}

	if itemTable, ok := FirstMatch(html, itemTablePattern); ok {
		detail.Sections = parseItemSections(itemTable)
	}
	if len(detail.Sections) == 0 {
		return nil
	}

	return detail
}

func parseTaxRows(tableHTML string) []domain.BillTaxBreakdown {
	breakdowns := []domain.BillTaxBreakdown{}
	for _, row := range Rows(tableHTML) {
		if strings.Contains(row, "<th") {
			continue
		}
		cells := Cells(row)
		if len(cells) == 0 {
			continue
		}

		breakdown := domain.BillTaxBreakdown{Label: PlainText(cells[0], true)}
		breakdown.AmountText = cellText(cells, 1)
		breakdown.TaxLabel = cellText(cells, 2)
		breakdown.TaxAmountText = cellText(cells, 3)
		breakdowns = append(breakdowns, breakdown)
	}
	return breakdowns
}

// parseItemSections scans item rows in order, keeping one section open at a
// time. A plan-title row closes the previous section and opens the next; a
// subtotal row closes out the current section's amount; sub-label rows are
// presentation only.
func parseItemSections(tableHTML string) []domain.BillSection {
	sections := []domain.BillSection{}
	var current *domain.BillSection

	for _, row := range Rows(tableHTML) {
		switch {
		case HasClass(row, classPlanRow):
			if current != nil {
				sections = append(sections, *current)
			}
			title := ""
			if cells := Cells(row); len(cells) > 0 {
				title = PlainText(cells[0], true)
			}
			current = &domain.BillSection{Title: title, Items: []domain.BillItem{}}

		case HasClass(row, classSubtotalRow):
			if current == nil {
				continue
			}
			cells := Cells(row)
			if len(cells) > 0 {
				current.SubtotalText = cellText(cells, len(cells)-1)
			}

		case HasClass(row, classSubLabelRow):
			// Spacer between item groups; the open section continues.

		default:
			if current == nil {
				continue
			}
			if item, ok := parseItemRow(row); ok {
				current.Items = append(current.Items, item)
			}
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}

	return sections
}

func parseItemRow(rowHTML string) (domain.BillItem, bool) {
	cells := Cells(rowHTML)
	nonEmpty := false
	for _, cell := range cells {
		if strings.TrimSpace(PlainText(cell, true)) != "" {
			nonEmpty = true
			break
		}
	}
	if !nonEmpty {
		return domain.BillItem{}, false
	}

	item := domain.BillItem{}
	if len(cells) > 0 {
		lines := Lines(cells[0])
		if len(lines) > 0 {
			item.Title = lines[0]
		}
		if len(lines) > 1 {
			detail := strings.Join(lines[1:], "\n")
			item.Detail = &detail
		}
	}
	item.QuantityText = cellText(cells, 1)
	item.UnitPriceText = cellText(cells, 2)
	item.AmountText = cellText(cells, 3)

	return item, true
}

// cellText returns the condensed text of cells[i], or nil when the cell is
// absent or blank.
func cellText(cells []string, i int) *string {
	if i < 0 || i >= len(cells) {
		return nil
	}
	text := PlainText(cells[i], true)
	if text == "" {
		return nil
	}
	return &text
}
