package remote

import (
	"context"
	"net/http"
	"net/url"

	"shift-scheduler/internal/domain"
	"shift-scheduler/internal/model"
)

// SubmitResolution posts once. A failure is returned to the caller, who
// decides whether to try again.
func (c *Client) SubmitResolution(ctx context.Context, rec domain.ResolutionRecord) error {
	_, _, err := c.do(ctx, http.MethodPost, "resolutions", nil, model.FromResolution(rec))
	return err
}

func payrollQuery(p domain.Period, staffIDs []string) url.Values {
	q := url.Values{}
	q.Set("start_date", p.From.Format(model.DateLayout))
	q.Set("end_date", p.To.AddDate(0, 0, -1).Format(model.DateLayout))
	for _, id := range staffIDs {
		q.Add("staff_ids", id)
	}
	return q
}

func (c *Client) PayrollSummary(ctx context.Context, p domain.Period, staffIDs []string) ([]domain.PayrollLineItem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var items []model.PayrollLineItem
	if err := c.getJSON(ctx, "payroll", payrollQuery(p, staffIDs), &items); err != nil {
		return nil, err
	}
	out := make([]domain.PayrollLineItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.Domain(p))
	}
	return out, nil
}

// ExportPayroll fetches a rendered report. The bytes are passed through
// untouched together with the content type the store reported.
func (c *Client) ExportPayroll(ctx context.Context, p domain.Period, format string) ([]byte, string, error) {
	if err := p.Validate(); err != nil {
		return nil, "", err
	}
	q := payrollQuery(p, nil)
	q.Set("format", format)
	data, header, err := c.read(ctx, "payroll/export", q)
	if err != nil {
		return nil, "", err
	}
	return data, header.Get("Content-Type"), nil
}
