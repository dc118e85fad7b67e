package scrape

import (
	"strconv"
	"strings"
)

// DataUnit is the unit a caller wants an amount expressed in.
type DataUnit int

const (
	UnitMB DataUnit = iota
	UnitGB
)

const megabytesPerGigabyte = 1024.0

// ParseAmount converts localized data-amount text ("7.71GB", "524 MB",
// "1,024") into a value expressed in targetUnit. Text carrying an explicit
// unit is converted through MB as the common base; bare numbers are taken as
// already being in targetUnit. Returns nil for empty or non-numeric text —
// "no data" and "zero" are distinct states.
func ParseAmount(text string, targetUnit DataUnit) *float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	sourceUnit := targetUnit
	switch {
	case hasUnitSuffix(trimmed, "GB"):
		sourceUnit = UnitGB
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-2])
	case hasUnitSuffix(trimmed, "MB"):
		sourceUnit = UnitMB
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-2])
	}
	trimmed = strings.ReplaceAll(trimmed, ",", "")

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}

	inMB := value
	if sourceUnit == UnitGB {
		inMB = value * megabytesPerGigabyte
	}
	result := inMB
	if targetUnit == UnitGB {
		result = inMB / megabytesPerGigabyte
	}
	return &result
}

func hasUnitSuffix(text, suffix string) bool {
	return len(text) >= 2 && strings.EqualFold(text[len(text)-2:], suffix)
}

// ParseCurrency converts yen text ("¥1,404", "1404円") into an integer amount.
// Returns nil when the remainder is not a whole number.
func ParseCurrency(text string) *int {
	cleaned := strings.NewReplacer("¥", "", "円", "", ",", "").Replace(text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}

	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &value
}
