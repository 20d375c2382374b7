// Package invoicing is a thin typed surface over the dispatcher for the
// backend's business endpoints. It adds no behaviour of its own; totals,
// tax math and validation are all backend concerns.
package invoicing

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ledgerline/go-invoicing-client/apiclient"
)

// Dispatcher is the authenticated request surface. Satisfied by
// apiclient.Client.
type Dispatcher interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any, options ...apiclient.RequestOption) error
}

// Invoice is the backend's invoice representation. Amounts are in minor
// units as returned by the backend.
type Invoice struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	PartyID   string     `json:"partyId"`
	Status    string     `json:"status"`
	IssueDate string     `json:"issueDate"`
	DueDate   string     `json:"dueDate"`
	Total     int64      `json:"total"`
	AmountDue int64      `json:"amountDue"`
	LineItems []LineItem `json:"lineItems,omitempty"`
	Payments  []Payment  `json:"payments,omitempty"`
}

type LineItem struct {
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Rate     int64  `json:"rate"`
	TaxRate  string `json:"taxRate,omitempty"`
}

type Payment struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Method   string `json:"method"`
	PaidDate string `json:"paidDate"`
}

// Service wraps invoice CRUD and payment recording.
type Service struct {
	api Dispatcher
}

func NewService(api Dispatcher) (*Service, error) {
	if api == nil {
		return nil, errors.New("[invoicing.NewService] dispatcher is required")
	}
	return &Service{api: api}, nil
}

// List returns all invoices visible to the current business.
func (s *Service) List(ctx context.Context) ([]Invoice, error) {
	var out []Invoice
	if err := s.api.Get(ctx, "/invoices", &out); err != nil {
		return nil, errors.Wrap(err, "[invoicing.List]")
	}
	return out, nil
}

// Get fetches one invoice with its line items and payments.
func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	var out Invoice
	if err := s.api.Get(ctx, fmt.Sprintf("/invoices/%s", id), &out); err != nil {
		return nil, errors.Wrap(err, "[invoicing.Get]")
	}
	return &out, nil
}

// Create submits a new invoice.
func (s *Service) Create(ctx context.Context, invoice Invoice) (*Invoice, error) {
	var out Invoice
	if err := s.api.Post(ctx, "/invoices", invoice, &out); err != nil {
		return nil, errors.Wrap(err, "[invoicing.Create]")
	}
	return &out, nil
}

// RecordPayment records a payment against an invoice. The generated
// idempotency key lets the backend deduplicate a double-submitted payment,
// which would otherwise double-apply money.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, payment Payment) (*Invoice, error) {
	key, err := apiclient.NewIdempotencyKey()
	if err != nil {
		return nil, errors.Wrap(err, "[invoicing.RecordPayment]")
	}
	var out Invoice
	err = s.api.Post(ctx, fmt.Sprintf("/invoices/%s/payments", invoiceID), payment, &out,
		apiclient.WithIdempotencyKey(key))
	if err != nil {
		return nil, errors.Wrap(err, "[invoicing.RecordPayment]")
	}
	return &out, nil
}
