package domain

// SpeedAmount pairs the page's literal cell text with its parsed value in the
// table's unit (GB for monthly pages, MB for daily pages).
type SpeedAmount struct {
	Raw         string   `json:"raw"`
	ValueInUnit *float64 `json:"valueInUnit,omitempty"`
}

// UsageEntry is one row of a usage-history table. HasData distinguishes a row
// that carries measurements from an explicit "no usage yet" marker row; the
// two must never collapse into a zero value.
type UsageEntry struct {
	Label     string       `json:"label"`
	HasData   bool         `json:"hasData"`
	HighSpeed *SpeedAmount `json:"highSpeed,omitempty"`
	LowSpeed  *SpeedAmount `json:"lowSpeed,omitempty"`
	Note      *string      `json:"note,omitempty"`
}

type MonthlyUsageService struct {
	LineID       string       `json:"lineId"`
	TitlePrimary string       `json:"titlePrimary"`
	TitleDetail  *string      `json:"titleDetail,omitempty"`
	Entries      []UsageEntry `json:"entries"`
}

type DailyUsageService struct {
	LineID       string       `json:"lineId"`
	TitlePrimary string       `json:"titlePrimary"`
	TitleDetail  *string      `json:"titleDetail,omitempty"`
	Entries      []UsageEntry `json:"entries"`
}

// UsageFormDescriptor is one per-line <form> scraped from the usage landing
// page: the hidden fields needed to request that line's history table.
type UsageFormDescriptor struct {
	FormID    string `json:"formId"`
	HdoCode   string `json:"hdoCode"`
	CSRFToken string `json:"csrfToken"`
}
