package domain

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

// CouponEntry is the backend's data-balance record. "Remaining data" is the
// first entry with a positive value when sorted by sequence number.
type CouponEntry struct {
	SequenceNo int     `json:"seqNo"`
	Month      string  `json:"month"`
	Value      float64 `json:"value"`
}

type ServiceInfo struct {
	PlanName      string        `json:"planName"`
	PhoneNumber   string        `json:"phoneNo"`
	TotalCapacity float64       `json:"totalCapacity"`
	Coupons       []CouponEntry `json:"couponList"`
}

// RemainingData reports the service's current data balance in GB, or nil when
// no coupon entry carries a positive value.
func (s ServiceInfo) RemainingData() *float64 {
	sorted := slices.Clone(s.Coupons)
	slices.SortFunc(sorted, func(a, b CouponEntry) int { return a.SequenceNo - b.SequenceNo })

	entry, ok := lo.Find(sorted, func(e CouponEntry) bool { return e.Value > 0 })
	if !ok {
		return nil
	}
	return &entry.Value
}

type MemberTop struct {
	Services []ServiceInfo `json:"serviceInfoList"`
}

type BillEntry struct {
	BillIDs     []string `json:"billIdList"`
	Month       string   `json:"month"` // YYYYMM
	TotalAmount int      `json:"total"`
	IsUnpaid    bool     `json:"unpaid"`
}

type BillSummary struct {
	Entries []BillEntry `json:"billList"`
}

// Unpaid returns the entries still awaiting payment, newest first.
func (b BillSummary) Unpaid() []BillEntry {
	return lo.Filter(b.Entries, func(e BillEntry, _ int) bool { return e.IsUnpaid })
}

type SIMStatus struct {
	HdoCode     string `json:"hdoCode"`
	PhoneNumber string `json:"phoneNo"`
	Status      string `json:"simStatus"`
}

type LineStatus struct {
	ServiceCode string      `json:"serviceCode"`
	PlanName    string      `json:"planName"`
	SIMs        []SIMStatus `json:"simList"`
}

type ServiceStatus struct {
	Lines []LineStatus `json:"statusList"`
}

// HdoCodes lists every SIM line identifier across the account, in document order.
func (s ServiceStatus) HdoCodes() []string {
	return lo.FlatMap(s.Lines, func(line LineStatus, _ int) []string {
		return lo.Map(line.SIMs, func(sim SIMStatus, _ int) string { return sim.HdoCode })
	})
}

// AggregatePayload is the atomic unit produced by one successful fetch cycle.
// It is persisted and read as a whole, never field-by-field.
type AggregatePayload struct {
	FetchedAt time.Time     `json:"fetchedAt"`
	Top       MemberTop     `json:"top"`
	Bill      BillSummary   `json:"bill"`
	Status    ServiceStatus `json:"status"`
}
