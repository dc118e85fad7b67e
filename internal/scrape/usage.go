package scrape

import (
	"regexp"
	"strings"

	"github.com/snaka/mioportal/internal/domain"
)

// Markup assumptions for the usage-history pages and their landing page.
const (
	classViewData   = "view-data"
	classUsageTitle = "usage-title"
	classNoDataCell = "no-data"
)

var (
	viewDataPattern   = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*\b` + classViewData + `\b[^"]*"[^>]*>(.*?)</div>`)
	usageTitlePattern = regexp.MustCompile(`(?s)<[^>]*class="[^"]*\b` + classUsageTitle + `\b[^"]*"[^>]*>(.*?)</`)
	usageTablePattern = regexp.MustCompile(`(?s)<table[^>]*>(.*?)</table>`)

	formPattern   = regexp.MustCompile(`(?s)<form[^>]*>.*?</form>`)
	formIDPattern = regexp.MustCompile(`<form[^>]*\bid="([^"]*)"`)

	hdoCodeInputPattern = hiddenInputPattern("hdoCode")
	tokenInputPattern   = hiddenInputPattern("token")
)

// ParseMonthlyUsage extracts one line's month-by-month usage table. Values
// are expressed in GB. Returns nil when the view block, its title, or its
// table is missing.
func ParseMonthlyUsage(html, lineID string) *domain.MonthlyUsageService {
	meta, entries, ok := parseUsagePage(html, UnitGB)
	if !ok {
		return nil
	}
	return &domain.MonthlyUsageService{
		LineID:       lineID,
		TitlePrimary: meta.primary,
		TitleDetail:  meta.detail,
		Entries:      entries,
	}
}

// ParseDailyUsage extracts one line's day-by-day usage table. Values are
// expressed in MB.
func ParseDailyUsage(html, lineID string) *domain.DailyUsageService {
	meta, entries, ok := parseUsagePage(html, UnitMB)
	if !ok {
		return nil
	}
	return &domain.DailyUsageService{
		LineID:       lineID,
		TitlePrimary: meta.primary,
		TitleDetail:  meta.detail,
		Entries:      entries,
	}
}

type usageTitle struct {
	primary string
	detail  *string
}

func parseUsagePage(html string, unit DataUnit) (usageTitle, []domain.UsageEntry, bool) {
	block, ok := FirstMatch(html, viewDataPattern)
	if !ok {
		return usageTitle{}, nil, false
	}

	titleFragment, ok := FirstMatch(block, usageTitlePattern)
	if !ok {
		return usageTitle{}, nil, false
	}
	lines := Lines(titleFragment)
	if len(lines) == 0 {
		return usageTitle{}, nil, false
	}
	title := usageTitle{primary: lines[0]}
	if len(lines) > 1 {
		detail := strings.Join(lines[1:], "\n")
		title.detail = &detail
	}

	table, ok := FirstMatch(block, usageTablePattern)
	if !ok {
		return usageTitle{}, nil, false
	}

	return title, parseUsageRows(table, unit), true
}

func parseUsageRows(tableHTML string, unit DataUnit) []domain.UsageEntry {
	entries := []domain.UsageEntry{}
	for _, row := range Rows(tableHTML) {
		if strings.Contains(row, "<th") {
			continue
		}
		cells := Cells(row)

		if HasClass(row, classNoDataCell) {
			entry := domain.UsageEntry{HasData: false}
			if len(cells) > 0 {
				entry.Label = PlainText(cells[0], true)
			}
			if note := noDataNote(cells); note != "" {
				entry.Note = &note
			}
			entries = append(entries, entry)
			continue
		}

		if len(cells) < 3 {
			continue
		}
		entries = append(entries, domain.UsageEntry{
			Label:     PlainText(cells[0], true),
			HasData:   true,
			HighSpeed: speedAmount(cells[1], unit),
			LowSpeed:  speedAmount(cells[2], unit),
		})
	}
	return entries
}

// noDataNote returns the text of the wide marker cell, which is the last
// non-empty cell of a no-data row.
func noDataNote(cells []string) string {
	for i := len(cells) - 1; i > 0; i-- {
		if text := PlainText(cells[i], true); text != "" {
			return text
		}
	}
	return ""
}

func speedAmount(cellHTML string, unit DataUnit) *domain.SpeedAmount {
	raw := PlainText(cellHTML, true)
	return &domain.SpeedAmount{
		Raw:         raw,
		ValueInUnit: ParseAmount(raw, unit),
	}
}

// ParseUsageForms scans the usage landing page for the per-line <form> blocks
// whose hidden fields drive the subsequent history fetches. Forms missing the
// line code or the token are skipped, not an error.
func ParseUsageForms(html string) []domain.UsageFormDescriptor {
	forms := []domain.UsageFormDescriptor{}
	for _, form := range formPattern.FindAllString(html, -1) {
		hdoCode, ok := hiddenInputValue(form, hdoCodeInputPattern)
		if !ok {
			continue
		}
		token, ok := hiddenInputValue(form, tokenInputPattern)
		if !ok {
			continue
		}

		descriptor := domain.UsageFormDescriptor{HdoCode: hdoCode, CSRFToken: token}
		if id, ok := FirstMatch(form, formIDPattern); ok {
			descriptor.FormID = id
		}
		forms = append(forms, descriptor)
	}
	return forms
}

func hiddenInputPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<input[^>]*\bname="` + regexp.QuoteMeta(name) + `"[^>]*\bvalue="([^"]*)"`)
}

func hiddenInputValue(formHTML string, pattern *regexp.Regexp) (string, bool) {
	value, ok := FirstMatch(formHTML, pattern)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
