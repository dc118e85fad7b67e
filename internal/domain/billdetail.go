package domain

// BillDetail is the itemized bill scraped from the per-month detail page.
// All text fields keep the page's literal formatting; numeric fields are
// parsed best-effort and stay nil when the text is not numeric.
type BillDetail struct {
	MonthText       string             `json:"monthText"`
	TotalAmountText string             `json:"totalAmountText"`
	TotalAmount     *int               `json:"totalAmount,omitempty"`
	TaxBreakdowns   []BillTaxBreakdown `json:"taxBreakdowns"`
	Sections        []BillSection      `json:"sections"`
}

type BillTaxBreakdown struct {
	Label         string  `json:"label"`
	AmountText    *string `json:"amountText,omitempty"`
	TaxLabel      *string `json:"taxLabel,omitempty"`
	TaxAmountText *string `json:"taxAmountText,omitempty"`
}

type BillSection struct {
	Title        string     `json:"title"`
	Items        []BillItem `json:"items"`
	SubtotalText *string    `json:"subtotalText,omitempty"`
}

type BillItem struct {
	Title         string  `json:"title"`
	Detail        *string `json:"detail,omitempty"`
	QuantityText  *string `json:"quantityText,omitempty"`
	UnitPriceText *string `json:"unitPriceText,omitempty"`
	AmountText    *string `json:"amountText,omitempty"`
}
