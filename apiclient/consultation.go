package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// ConsultationRequest asks for a career consultation.
type ConsultationRequest struct {
	Category    string `json:"category" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// CreateConsultation submits a consultation request.
func (c *Client) CreateConsultation(ctx context.Context, token string, in ConsultationRequest) (*Consultation, error) {
	var out Consultation
	err := c.call(ctx, request{
		name:     "consultation.create",
		method:   http.MethodPost,
		path:     "/consultation/createConsultation",
		token:    token,
		json:     in,
		fallback: "Failed to submit consultation",
	}, &out, "consultation", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ConsultationCategories lists the consultation categories.
func (c *Client) ConsultationCategories(ctx context.Context, token string) ([]string, error) {
	return c.stringList(ctx, token, "consultation.categories", "/consultation/categories", "categories", "Failed to fetch categories")
}

// MyConsultations lists the caller's consultation requests.
func (c *Client) MyConsultations(ctx context.Context, token string) ([]Consultation, error) {
	var out []Consultation
	err := c.call(ctx, request{
		name:     "consultation.mine",
		method:   http.MethodGet,
		path:     "/consultation/getMyConsultations",
		token:    token,
		fallback: "Failed to fetch your consultations",
	}, &out, "consultations")
	return out, err
}

// Consultations lists all consultation requests for administrators.
func (c *Client) Consultations(ctx context.Context, token string, opts ListOptions) (*Page[Consultation], error) {
	var out Page[Consultation]
	err := c.call(ctx, request{
		name:     "consultation.all",
		method:   http.MethodGet,
		path:     "/consultation/getAllConsultations",
		query:    listQuery(opts),
		token:    token,
		fallback: "Failed to fetch all consultations",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConsultationStatus approves or rejects a consultation request.
func (c *Client) UpdateConsultationStatus(ctx context.Context, token, id string, status ApplicationStatus) (*Consultation, error) {
	var out Consultation
	err := c.call(ctx, request{
		name:     "consultation.status",
		method:   http.MethodPatch,
		path:     "/consultation/updateConsultationStatus/" + url.PathEscape(id),
		token:    token,
		json:     statusBody{Status: string(status)},
		fallback: "Failed to update consultation status",
	}, &out, "consultation", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ConsultationByID returns one consultation request.
func (c *Client) ConsultationByID(ctx context.Context, token, id string) (*Consultation, error) {
	var out Consultation
	err := c.call(ctx, request{
		name:     "consultation.get",
		method:   http.MethodGet,
		path:     "/consultation/getById/" + url.PathEscape(id),
		token:    token,
		fallback: "Failed to fetch consultation details",
	}, &out, "consultation", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}
