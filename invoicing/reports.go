package invoicing

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// TaxReport is a per-period tax summary as computed by the backend.
type TaxReport struct {
	Period       string `json:"period"`
	TaxCollected int64  `json:"taxCollected"`
	TaxPaid      int64  `json:"taxPaid"`
	NetTax       int64  `json:"netTax"`
}

// TaxReport fetches the tax summary for a period, e.g. "2026-Q2".
func (s *Service) TaxReport(ctx context.Context, period string) (*TaxReport, error) {
	var out TaxReport
	if err := s.api.Get(ctx, fmt.Sprintf("/reports/tax/%s", period), &out); err != nil {
		return nil, errors.Wrap(err, "[invoicing.TaxReport]")
	}
	return &out, nil
}
