package mio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/scrape"
)

type topResponse struct {
	Services []domain.ServiceInfo `json:"serviceInfoList"`
}

type billSummaryResponse struct {
	Entries []domain.BillEntry `json:"billList"`
}

type serviceStatusResponse struct {
	Lines []domain.LineStatus `json:"statusList"`
}

// FetchTop retrieves the member-top document. A nil creds reuses the current
// session.
func (c *Client) FetchTop(ctx context.Context, creds *domain.Credentials) (domain.MemberTop, error) {
	var top domain.MemberTop
	err := c.withSession(ctx, creds, func(ctx context.Context) error {
		var resp topResponse
		if err := c.fetchJSON(ctx, http.MethodPost, topAPIPath, struct{}{}, &resp); err != nil {
			return err
		}
		top = domain.MemberTop{Services: resp.Services}
		return nil
	})
	return top, err
}

func (c *Client) FetchBillSummary(ctx context.Context, creds *domain.Credentials) (domain.BillSummary, error) {
	var bill domain.BillSummary
	err := c.withSession(ctx, creds, func(ctx context.Context) error {
		var resp billSummaryResponse
		if err := c.fetchJSON(ctx, http.MethodGet, billSummaryAPIPath, nil, &resp); err != nil {
			return err
		}
		bill = domain.BillSummary{Entries: resp.Entries}
		return nil
	})
	return bill, err
}

func (c *Client) FetchServiceStatus(ctx context.Context, creds *domain.Credentials) (domain.ServiceStatus, error) {
	var status domain.ServiceStatus
	err := c.withSession(ctx, creds, func(ctx context.Context) error {
		var resp serviceStatusResponse
		if err := c.fetchJSON(ctx, http.MethodGet, serviceStatusAPIPath, nil, &resp); err != nil {
			return err
		}
		status = domain.ServiceStatus{Lines: resp.Lines}
		return nil
	})
	return status, err
}

// FetchAll runs the three independent reads under one retry envelope and
// assembles the atomic payload. Login happens-before all of them; the reads
// themselves are issued sequentially to match the backend's expectation of
// session continuity.
func (c *Client) FetchAll(ctx context.Context, creds *domain.Credentials) (domain.AggregatePayload, error) {
	var payload domain.AggregatePayload
	err := c.withSession(ctx, creds, func(ctx context.Context) error {
		var top topResponse
		if err := c.fetchJSON(ctx, http.MethodPost, topAPIPath, struct{}{}, &top); err != nil {
			return err
		}
		var bill billSummaryResponse
		if err := c.fetchJSON(ctx, http.MethodGet, billSummaryAPIPath, nil, &bill); err != nil {
			return err
		}
		var status serviceStatusResponse
		if err := c.fetchJSON(ctx, http.MethodGet, serviceStatusAPIPath, nil, &status); err != nil {
			return err
		}

		payload = domain.AggregatePayload{
			FetchedAt: c.now(),
			Top:       domain.MemberTop{Services: top.Services},
			Bill:      domain.BillSummary{Entries: bill.Entries},
			Status:    domain.ServiceStatus{Lines: status.Lines},
		}
		return nil
	})
	return payload, err
}

// FetchBillDetail fetches and parses the itemized HTML page for one bill
// entry.
func (c *Client) FetchBillDetail(ctx context.Context, entry domain.BillEntry, creds *domain.Credentials) (*domain.BillDetail, error) {
	if len(entry.BillIDs) == 0 {
		return nil, fmt.Errorf("bill entry for %s carries no bill id", entry.Month)
	}

	var detail *domain.BillDetail
	err := c.withSession(ctx, creds, func(ctx context.Context) error {
		query := url.Values{"billId": {entry.BillIDs[0]}}
		html, err := c.fetchHTML(ctx, http.MethodGet, billDetailPagePath+"?"+query.Encode(), nil)
		if err != nil {
			return err
		}

		detail = scrape.ParseBillDetail(html)
		if detail == nil {
			return &domain.ParseError{Page: "bill-detail"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// FetchMonthlyUsage walks the usage landing page's per-line forms and fetches
// each line's month-by-month history. Lines whose page fails to parse abort
// the call; a landing page with no forms yields an empty slice.
func (c *Client) FetchMonthlyUsage(ctx context.Context, creds *domain.Credentials) ([]domain.MonthlyUsageService, error) {
	var services []domain.MonthlyUsageService
	err := c.withSession(ctx, creds, func(ctx context.Context) error {
		forms, err := c.usageForms(ctx)
		if err != nil {
			return err
		}

		services = make([]domain.MonthlyUsageService, 0, len(forms))
		for _, form := range forms {
			html, err := c.fetchHTML(ctx, http.MethodPost, usageMonthlyPagePath, usageFormValues(form))
			if err != nil {
				return err
			}
			service := scrape.ParseMonthlyUsage(html, form.HdoCode)
			if service == nil {
				return &domain.ParseError{Page: "usage-monthly"}
			}
			services = append(services, *service)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return services, nil
}

// FetchDailyUsage is FetchMonthlyUsage's day-granularity sibling.
func (c *Client) FetchDailyUsage(ctx context.Context, creds *domain.Credentials) ([]domain.DailyUsageService, error) {
	var services []domain.DailyUsageService
	err := c.withSession(ctx, creds, func(ctx context.Context) error {
		forms, err := c.usageForms(ctx)
		if err != nil {
			return err
		}

		services = make([]domain.DailyUsageService, 0, len(forms))
		for _, form := range forms {
			html, err := c.fetchHTML(ctx, http.MethodPost, usageDailyPagePath, usageFormValues(form))
			if err != nil {
				return err
			}
			service := scrape.ParseDailyUsage(html, form.HdoCode)
			if service == nil {
				return &domain.ParseError{Page: "usage-daily"}
			}
			services = append(services, *service)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) usageForms(ctx context.Context) ([]domain.UsageFormDescriptor, error) {
	html, err := c.fetchHTML(ctx, http.MethodGet, usageLandingPagePath, nil)
	if err != nil {
		return nil, err
	}
	return scrape.ParseUsageForms(html), nil
}

func usageFormValues(form domain.UsageFormDescriptor) url.Values {
	return url.Values{
		"hdoCode": {form.HdoCode},
		"token":   {form.CSRFToken},
	}
}
