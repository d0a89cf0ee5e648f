package portal

import (
	"context"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
)

// ApplyScholarship submits a scholarship application.
func (a *App) ApplyScholarship(ctx context.Context, in apiclient.ScholarshipRequest) (*apiclient.ScholarshipApplication, error) {
	return within(a, guard.AreaUserScholarships, func(tok string) (*apiclient.ScholarshipApplication, error) {
		if err := a.validate(in); err != nil {
			return nil, err
		}
		return a.client.CreateScholarship(ctx, tok, in)
	})
}

// MyScholarships lists the user's scholarship applications.
func (a *App) MyScholarships(ctx context.Context) ([]apiclient.ScholarshipApplication, error) {
	return within(a, guard.AreaUserScholarships, func(tok string) ([]apiclient.ScholarshipApplication, error) {
		return a.client.MyScholarships(ctx, tok)
	})
}

// ScholarshipCatalog is what scholarships are offered for.
type ScholarshipCatalog struct {
	DegreeLevels []string
	Courses      []string
	Countries    []string
}

// ScholarshipCatalog fetches the degree levels, courses and countries on offer.
func (a *App) ScholarshipCatalog(ctx context.Context) (*ScholarshipCatalog, error) {
	return within(a, guard.AreaUserScholarships, func(tok string) (*ScholarshipCatalog, error) {
		var (
			cat ScholarshipCatalog
			err error
		)
		if cat.DegreeLevels, err = a.client.DegreeLevels(ctx, tok); err != nil {
			return nil, err
		}
		if cat.Courses, err = a.client.Courses(ctx, tok); err != nil {
			return nil, err
		}
		if cat.Countries, err = a.client.Countries(ctx, tok); err != nil {
			return nil, err
		}
		return &cat, nil
	})
}

// SearchScholarships finds open listings for a degree level and course.
func (a *App) SearchScholarships(ctx context.Context, degreeLevel, course string) ([]apiclient.ScholarshipOpportunity, error) {
	return within(a, guard.AreaUserScholarships, func(tok string) ([]apiclient.ScholarshipOpportunity, error) {
		if degreeLevel == "" {
			return nil, invalid("degreeLevel", "is required")
		}
		if course == "" {
			return nil, invalid("course", "is required")
		}
		return a.client.SearchScholarshipOpportunities(ctx, tok, degreeLevel, course)
	})
}

// ApplyGrant submits a business grant application.
func (a *App) ApplyGrant(ctx context.Context, in apiclient.GrantRequest) (*apiclient.GrantApplication, error) {
	return within(a, guard.AreaUserGrants, func(tok string) (*apiclient.GrantApplication, error) {
		if err := a.validate(in); err != nil {
			return nil, err
		}
		return a.client.CreateGrant(ctx, tok, in)
	})
}

// MyGrants lists the user's grant applications.
func (a *App) MyGrants(ctx context.Context) ([]apiclient.GrantApplication, error) {
	return within(a, guard.AreaUserGrants, func(tok string) ([]apiclient.GrantApplication, error) {
		return a.client.MyGrants(ctx, tok)
	})
}

// GrantOpportunities lists the grant listings open to applications.
func (a *App) GrantOpportunities(ctx context.Context) ([]apiclient.GrantOpportunity, error) {
	return within(a, guard.AreaUserGrants, func(tok string) ([]apiclient.GrantOpportunity, error) {
		return a.client.ActiveGrantOpportunities(ctx, tok)
	})
}

// RequestConsultation submits a consultation request.
func (a *App) RequestConsultation(ctx context.Context, in apiclient.ConsultationRequest) (*apiclient.Consultation, error) {
	return within(a, guard.AreaUserConsultation, func(tok string) (*apiclient.Consultation, error) {
		if err := a.validate(in); err != nil {
			return nil, err
		}
		return a.client.CreateConsultation(ctx, tok, in)
	})
}

// MyConsultations lists the user's consultation requests.
func (a *App) MyConsultations(ctx context.Context) ([]apiclient.Consultation, error) {
	return within(a, guard.AreaUserConsultation, func(tok string) ([]apiclient.Consultation, error) {
		return a.client.MyConsultations(ctx, tok)
	})
}

// ConsultationCategories lists the consultation categories.
func (a *App) ConsultationCategories(ctx context.Context) ([]string, error) {
	return within(a, guard.AreaUserConsultation, func(tok string) ([]string, error) {
		return a.client.ConsultationCategories(ctx, tok)
	})
}

// FetchFile downloads a protected document. Any logged-in session may ask;
// the remote API decides whether the file is visible to it.
func (a *App) FetchFile(ctx context.Context, path string) (*apiclient.Download, error) {
	tok, err := a.store.Token()
	if err != nil {
		return nil, err
	}
	d, err := a.client.FetchFile(ctx, tok, path)
	return d, a.check(err)
}
