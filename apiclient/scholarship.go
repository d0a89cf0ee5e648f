package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// ScholarshipRequest is a scholarship application.
type ScholarshipRequest struct {
	DegreeLevel         string `validate:"required"`
	Course              string `validate:"required"`
	OpportunityID       string
	Passport            File
	ExperienceDocuments []File
	Documents           []File
}

// CreateScholarship submits a scholarship application.
func (c *Client) CreateScholarship(ctx context.Context, token string, in ScholarshipRequest) (*ScholarshipApplication, error) {
	f := new(form).
		set("degreeLevel", in.DegreeLevel).
		set("course", in.Course).
		setIf("opportunityId", in.OpportunityID).
		attach("passport", in.Passport)
	for _, doc := range in.ExperienceDocuments {
		f.attach("experienceDocuments", doc)
	}
	for _, doc := range in.Documents {
		f.attach("documents", doc)
	}
	var out ScholarshipApplication
	err := c.call(ctx, request{
		name:     "scholarship.create",
		method:   http.MethodPost,
		path:     "/scholarship/createScholarship",
		token:    token,
		form:     f,
		fallback: "Failed to submit scholarship",
	}, &out, "scholarship", "application", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MyScholarships lists the caller's scholarship applications.
func (c *Client) MyScholarships(ctx context.Context, token string) ([]ScholarshipApplication, error) {
	var out []ScholarshipApplication
	err := c.call(ctx, request{
		name:     "scholarship.mine",
		method:   http.MethodGet,
		path:     "/scholarship/getMyScholarships",
		token:    token,
		fallback: "Failed to fetch your scholarships",
	}, &out, "applications", "scholarships")
	return out, err
}

// Scholarships lists all scholarship applications for administrators.
func (c *Client) Scholarships(ctx context.Context, token string, opts ListOptions) (*Page[ScholarshipApplication], error) {
	var out Page[ScholarshipApplication]
	err := c.call(ctx, request{
		name:     "scholarship.all",
		method:   http.MethodGet,
		path:     "/scholarship/getAllScholarships",
		query:    listQuery(opts),
		token:    token,
		fallback: "Failed to fetch all scholarships",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateScholarshipStatus approves or rejects a scholarship application.
func (c *Client) UpdateScholarshipStatus(ctx context.Context, token, id string, status ApplicationStatus) (*ScholarshipApplication, error) {
	var out ScholarshipApplication
	err := c.call(ctx, request{
		name:     "scholarship.status",
		method:   http.MethodPatch,
		path:     "/scholarship/updateScholarshipStatus/" + url.PathEscape(id),
		token:    token,
		json:     statusBody{Status: string(status)},
		fallback: "Failed to update status",
	}, &out, "scholarship", "application", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ScholarshipByID returns one scholarship application.
func (c *Client) ScholarshipByID(ctx context.Context, token, id string) (*ScholarshipApplication, error) {
	var out ScholarshipApplication
	err := c.call(ctx, request{
		name:     "scholarship.get",
		method:   http.MethodGet,
		path:     "/scholarship/get/" + url.PathEscape(id),
		token:    token,
		fallback: "Failed to fetch scholarship details",
	}, &out, "scholarship", "application", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) stringList(ctx context.Context, token, name, path, key, fallback string) ([]string, error) {
	var out []string
	err := c.call(ctx, request{
		name:     name,
		method:   http.MethodGet,
		path:     path,
		token:    token,
		fallback: fallback,
	}, &out, key)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// DegreeLevels lists the degree levels scholarships are offered for.
func (c *Client) DegreeLevels(ctx context.Context, token string) ([]string, error) {
	return c.stringList(ctx, token, "scholarship.degree_levels", "/scholarship/degree-levels", "levels", "Failed to fetch degree levels")
}

// Courses lists the courses scholarships are offered for.
func (c *Client) Courses(ctx context.Context, token string) ([]string, error) {
	return c.stringList(ctx, token, "scholarship.courses", "/scholarship/courses", "courses", "Failed to fetch courses")
}

// Countries lists the countries scholarships are offered in.
func (c *Client) Countries(ctx context.Context, token string) ([]string, error) {
	return c.stringList(ctx, token, "scholarship.countries", "/scholarship/countries", "countries", "Failed to fetch countries")
}

// CreateScholarshipOpportunity publishes a scholarship listing.
func (c *Client) CreateScholarshipOpportunity(ctx context.Context, token string, in ScholarshipOpportunity) (*ScholarshipOpportunity, error) {
	var out ScholarshipOpportunity
	err := c.call(ctx, request{
		name:     "scholarship.opportunity_create",
		method:   http.MethodPost,
		path:     "/scholarship/opportunities/create",
		token:    token,
		json:     in,
		fallback: "Failed to create opportunity",
	}, &out, "opportunity", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ScholarshipOpportunities lists scholarship listings for administrators.
func (c *Client) ScholarshipOpportunities(ctx context.Context, token string, opts ListOptions) (*Page[ScholarshipOpportunity], error) {
	var out Page[ScholarshipOpportunity]
	err := c.call(ctx, request{
		name:     "scholarship.opportunities",
		method:   http.MethodGet,
		path:     "/scholarship/opportunities",
		query:    listQuery(opts),
		token:    token,
		fallback: "Failed to fetch opportunities",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateScholarshipOpportunity replaces a scholarship listing.
func (c *Client) UpdateScholarshipOpportunity(ctx context.Context, token, id string, in ScholarshipOpportunity) (*ScholarshipOpportunity, error) {
	var out ScholarshipOpportunity
	err := c.call(ctx, request{
		name:     "scholarship.opportunity_update",
		method:   http.MethodPut,
		path:     "/scholarship/opportunities/" + url.PathEscape(id),
		token:    token,
		json:     in,
		fallback: "Failed to update opportunity",
	}, &out, "opportunity", "data")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteScholarshipOpportunity removes a scholarship listing.
func (c *Client) DeleteScholarshipOpportunity(ctx context.Context, token, id string) error {
	return c.call(ctx, request{
		name:     "scholarship.opportunity_delete",
		method:   http.MethodDelete,
		path:     "/scholarship/opportunities/" + url.PathEscape(id),
		token:    token,
		fallback: "Failed to delete opportunity",
	}, nil)
}

// SearchScholarshipOpportunities finds listings matching a degree level and course.
func (c *Client) SearchScholarshipOpportunities(ctx context.Context, token, degreeLevel, course string) ([]ScholarshipOpportunity, error) {
	q := url.Values{}
	q.Set("degreeLevel", degreeLevel)
	q.Set("course", course)
	var out []ScholarshipOpportunity
	err := c.call(ctx, request{
		name:     "scholarship.opportunity_search",
		method:   http.MethodGet,
		path:     "/scholarship/opportunities/search",
		query:    q,
		token:    token,
		fallback: "Failed to search opportunities",
	}, &out, "opportunities", "data")
	return out, err
}
