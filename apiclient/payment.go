package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// Payment amounts accepted by the foundation, in PKR.
var (
	AmountStandard = decimal.NewFromInt(2500)
	AmountExtended = decimal.NewFromInt(5000)
)

// CreatePayment submits a payment with its transfer screenshot.
func (c *Client) CreatePayment(ctx context.Context, token string, amount decimal.Decimal, screenshot File) (*Payment, error) {
	f := new(form).
		set("amount", amount.String()).
		attach("screenshot", screenshot)
	var out Payment
	err := c.call(ctx, request{
		name:     "payment.create",
		method:   http.MethodPost,
		path:     "/payment/create",
		token:    token,
		form:     f,
		fallback: "Failed to submit payment",
	}, &out, "payment", "data")
	if err != nil {
		return nil, err
	}
	if out.Status == "" {
		out.Status = PaymentPending
	}
	return &out, nil
}

// MyPayment returns the caller's payment, or nil when none was submitted.
func (c *Client) MyPayment(ctx context.Context, token string) (*Payment, error) {
	var out struct {
		Payment *Payment `json:"payment"`
	}
	err := c.call(ctx, request{
		name:     "payment.mine",
		method:   http.MethodGet,
		path:     "/payment/my-payment",
		token:    token,
		fallback: "Failed to fetch payment",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Payment, nil
}

// Payments lists payments for administrators. opts.Status filters by state.
func (c *Client) Payments(ctx context.Context, token string, opts ListOptions) (*Page[Payment], error) {
	var out Page[Payment]
	err := c.call(ctx, request{
		name:     "payment.all",
		method:   http.MethodGet,
		path:     "/payment/all",
		query:    listQuery(opts),
		token:    token,
		fallback: "Failed to fetch payments",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentByID returns one payment.
func (c *Client) PaymentByID(ctx context.Context, token, id string) (*Payment, error) {
	var out Payment
	err := c.call(ctx, request{
		name:     "payment.get",
		method:   http.MethodGet,
		path:     "/payment/" + url.PathEscape(id),
		token:    token,
		fallback: "Failed to fetch payment details",
	}, &out, "payment", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment records an administrator's decision on a payment.
func (c *Client) VerifyPayment(ctx context.Context, token, id string, status PaymentStatus, adminNotes string) (*Payment, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("payment.verify: status must be %q or %q", PaymentVerified, PaymentRejected)
	}
	var out Payment
	err := c.call(ctx, request{
		name:     "payment.verify",
		method:   http.MethodPatch,
		path:     "/payment/verify/" + url.PathEscape(id),
		token:    token,
		json:     statusBody{Status: string(status), AdminNotes: adminNotes},
		fallback: "Failed to verify payment",
	}, &out, "payment", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}
