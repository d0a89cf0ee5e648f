package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// GrantRequest is a business grant application.
type GrantRequest struct {
	Title         string `validate:"required"`
	Description   string `validate:"required"`
	OpportunityID string
	Proposal      File
}

// CreateGrant submits a business grant application, optionally against an
// opportunity.
func (c *Client) CreateGrant(ctx context.Context, token string, in GrantRequest) (*GrantApplication, error) {
	f := new(form).
		set("title", in.Title).
		set("description", in.Description).
		setIf("opportunityId", in.OpportunityID).
		attach("proposal", in.Proposal)
	var out GrantApplication
	err := c.call(ctx, request{
		name:     "grant.create",
		method:   http.MethodPost,
		path:     "/business/createGrant",
		token:    token,
		form:     f,
		fallback: "Failed to submit grant",
	}, &out, "grant", "application", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MyGrants lists the caller's grant applications.
func (c *Client) MyGrants(ctx context.Context, token string) ([]GrantApplication, error) {
	var out []GrantApplication
	err := c.call(ctx, request{
		name:     "grant.mine",
		method:   http.MethodGet,
		path:     "/business/getMyGrants",
		token:    token,
		fallback: "Failed to fetch your grants",
	}, &out, "grants")
	return out, err
}

// Grants lists all grant applications for administrators.
func (c *Client) Grants(ctx context.Context, token string, opts ListOptions) (*Page[GrantApplication], error) {
	var out Page[GrantApplication]
	err := c.call(ctx, request{
		name:     "grant.all",
		method:   http.MethodGet,
		path:     "/business/getAllGrants",
		query:    listQuery(opts),
		token:    token,
		fallback: "Failed to fetch all grants",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateGrantStatus approves or rejects a grant application.
func (c *Client) UpdateGrantStatus(ctx context.Context, token, id string, status ApplicationStatus) (*GrantApplication, error) {
	var out GrantApplication
	err := c.call(ctx, request{
		name:     "grant.status",
		method:   http.MethodPatch,
		path:     "/business/updateGrantStatus/" + url.PathEscape(id),
		token:    token,
		json:     statusBody{Status: string(status)},
		fallback: "Failed to update grant status",
	}, &out, "grant", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GrantByID returns one grant application.
func (c *Client) GrantByID(ctx context.Context, token, id string) (*GrantApplication, error) {
	var out GrantApplication
	err := c.call(ctx, request{
		name:     "grant.get",
		method:   http.MethodGet,
		path:     "/business/get/" + url.PathEscape(id),
		token:    token,
		fallback: "Failed to fetch grant details",
	}, &out, "grant", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGrantOpportunity publishes a grant listing.
func (c *Client) CreateGrantOpportunity(ctx context.Context, token string, in GrantOpportunity) (*GrantOpportunity, error) {
	var out GrantOpportunity
	err := c.call(ctx, request{
		name:     "grant.opportunity_create",
		method:   http.MethodPost,
		path:     "/business/opportunities/create",
		token:    token,
		json:     in,
		fallback: "Failed to create opportunity",
	}, &out, "opportunity", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GrantOpportunities lists grant listings for administrators.
func (c *Client) GrantOpportunities(ctx context.Context, token string, opts ListOptions) (*Page[GrantOpportunity], error) {
	var out Page[GrantOpportunity]
	err := c.call(ctx, request{
		name:     "grant.opportunities",
		method:   http.MethodGet,
		path:     "/business/opportunities",
		query:    listQuery(opts),
		token:    token,
		fallback: "Failed to fetch opportunities",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateGrantOpportunity replaces a grant listing.
func (c *Client) UpdateGrantOpportunity(ctx context.Context, token, id string, in GrantOpportunity) (*GrantOpportunity, error) {
	var out GrantOpportunity
	err := c.call(ctx, request{
		name:     "grant.opportunity_update",
		method:   http.MethodPut,
		path:     "/business/opportunities/" + url.PathEscape(id),
		token:    token,
		json:     in,
		fallback: "Failed to update opportunity",
	}, &out, "opportunity", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGrantOpportunity removes a grant listing.
func (c *Client) DeleteGrantOpportunity(ctx context.Context, token, id string) error {
	return c.call(ctx, request{
		name:     "grant.opportunity_delete",
		method:   http.MethodDelete,
		path:     "/business/opportunities/" + url.PathEscape(id),
		token:    token,
		fallback: "Failed to delete opportunity",
	}, nil)
}

// ActiveGrantOpportunities lists the listings users can apply to.
func (c *Client) ActiveGrantOpportunities(ctx context.Context, token string) ([]GrantOpportunity, error) {
	var out []GrantOpportunity
	err := c.call(ctx, request{
		name:     "grant.opportunities_active",
		method:   http.MethodGet,
		path:     "/business/opportunities/all",
		token:    token,
		fallback: "Failed to fetch opportunities",
	}, &out, "opportunities", "data")
	return out, err
}
