package portal

import (
	"context"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/session"
)

// Payments lists submitted payments.
func (a *App) Payments(ctx context.Context, opts apiclient.ListOptions) (*apiclient.Page[apiclient.Payment], error) {
	return within(a, guard.AreaAdminPayments, func(tok string) (*apiclient.Page[apiclient.Payment], error) {
		return a.client.Payments(ctx, tok, opts)
	})
}

// ReviewPayment verifies or rejects a payment.
func (a *App) ReviewPayment(ctx context.Context, id string, status apiclient.PaymentStatus, notes string) (*apiclient.Payment, error) {
	return within(a, guard.AreaAdminPayments, func(tok string) (*apiclient.Payment, error) {
		if !status.Terminal() {
			return nil, invalid("status", "must be verified or rejected")
		}
		return a.client.VerifyPayment(ctx, tok, id, status, notes)
	})
}

// Users lists accounts.
func (a *App) Users(ctx context.Context, opts apiclient.ListOptions) (*apiclient.Page[session.User], error) {
	return within(a, guard.AreaAdminUsers, func(tok string) (*apiclient.Page[session.User], error) {
		return a.client.Users(ctx, tok, opts)
	})
}

// UserDetails returns one account with everything it submitted.
func (a *App) UserDetails(ctx context.Context, id string) (*apiclient.UserDetails, error) {
	return within(a, guard.AreaAdminUsers, func(tok string) (*apiclient.UserDetails, error) {
		return a.client.UserDetails(ctx, tok, id)
	})
}

// Scholarships lists scholarship applications.
func (a *App) Scholarships(ctx context.Context, opts apiclient.ListOptions) (*apiclient.Page[apiclient.ScholarshipApplication], error) {
	return within(a, guard.AreaAdminScholarships, func(tok string) (*apiclient.Page[apiclient.ScholarshipApplication], error) {
		return a.client.Scholarships(ctx, tok, opts)
	})
}

// ReviewScholarship sets the status of a scholarship application.
func (a *App) ReviewScholarship(ctx context.Context, id string, status apiclient.ApplicationStatus) (*apiclient.ScholarshipApplication, error) {
	return within(a, guard.AreaAdminScholarships, func(tok string) (*apiclient.ScholarshipApplication, error) {
		if !status.Valid() {
			return nil, invalid("status", "must be pending, approved or rejected")
		}
		return a.client.UpdateScholarshipStatus(ctx, tok, id, status)
	})
}

// ScholarshipOpportunities lists scholarship listings.
func (a *App) ScholarshipOpportunities(ctx context.Context, opts apiclient.ListOptions) (*apiclient.Page[apiclient.ScholarshipOpportunity], error) {
	return within(a, guard.AreaAdminScholarships, func(tok string) (*apiclient.Page[apiclient.ScholarshipOpportunity], error) {
		return a.client.ScholarshipOpportunities(ctx, tok, opts)
	})
}

// SaveScholarshipOpportunity creates the listing, or replaces it when it has an ID.
func (a *App) SaveScholarshipOpportunity(ctx context.Context, in apiclient.ScholarshipOpportunity) (*apiclient.ScholarshipOpportunity, error) {
	return within(a, guard.AreaAdminScholarships, func(tok string) (*apiclient.ScholarshipOpportunity, error) {
		if err := a.validate(in); err != nil {
			return nil, err
		}
		if in.ID == "" {
			return a.client.CreateScholarshipOpportunity(ctx, tok, in)
		}
		return a.client.UpdateScholarshipOpportunity(ctx, tok, in.ID, in)
	})
}

// DeleteScholarshipOpportunity removes a scholarship listing.
func (a *App) DeleteScholarshipOpportunity(ctx context.Context, id string) error {
	_, err := within(a, guard.AreaAdminScholarships, func(tok string) (struct{}, error) {
		return struct{}{}, a.client.DeleteScholarshipOpportunity(ctx, tok, id)
	})
	return err
}

// Grants lists grant applications.
func (a *App) Grants(ctx context.Context, opts apiclient.ListOptions) (*apiclient.Page[apiclient.GrantApplication], error) {
	return within(a, guard.AreaAdminGrants, func(tok string) (*apiclient.Page[apiclient.GrantApplication], error) {
		return a.client.Grants(ctx, tok, opts)
	})
}

// ReviewGrant sets the status of a grant application.
func (a *App) ReviewGrant(ctx context.Context, id string, status apiclient.ApplicationStatus) (*apiclient.GrantApplication, error) {
	return within(a, guard.AreaAdminGrants, func(tok string) (*apiclient.GrantApplication, error) {
		if !status.Valid() {
			return nil, invalid("status", "must be pending, approved or rejected")
		}
		return a.client.UpdateGrantStatus(ctx, tok, id, status)
	})
}

// AdminGrantOpportunities lists every grant listing, active or not.
func (a *App) AdminGrantOpportunities(ctx context.Context, opts apiclient.ListOptions) (*apiclient.Page[apiclient.GrantOpportunity], error) {
	return within(a, guard.AreaAdminGrants, func(tok string) (*apiclient.Page[apiclient.GrantOpportunity], error) {
		return a.client.GrantOpportunities(ctx, tok, opts)
	})
}

// SaveGrantOpportunity creates the listing, or replaces it when it has an ID.
func (a *App) SaveGrantOpportunity(ctx context.Context, in apiclient.GrantOpportunity) (*apiclient.GrantOpportunity, error) {
	return within(a, guard.AreaAdminGrants, func(tok string) (*apiclient.GrantOpportunity, error) {
		if err := a.validate(in); err != nil {
			return nil, err
		}
		if in.Amount.IsNegative() {
			return nil, invalid("amount", "must not be negative")
		}
		if in.ID == "" {
			return a.client.CreateGrantOpportunity(ctx, tok, in)
		}
		return a.client.UpdateGrantOpportunity(ctx, tok, in.ID, in)
	})
}

// DeleteGrantOpportunity removes a grant listing.
func (a *App) DeleteGrantOpportunity(ctx context.Context, id string) error {
	_, err := within(a, guard.AreaAdminGrants, func(tok string) (struct{}, error) {
		return struct{}{}, a.client.DeleteGrantOpportunity(ctx, tok, id)
	})
	return err
}

// Consultations lists consultation requests.
func (a *App) Consultations(ctx context.Context, opts apiclient.ListOptions) (*apiclient.Page[apiclient.Consultation], error) {
	return within(a, guard.AreaAdminConsultation, func(tok string) (*apiclient.Page[apiclient.Consultation], error) {
		return a.client.Consultations(ctx, tok, opts)
	})
}

// ReviewConsultation sets the status of a consultation request.
func (a *App) ReviewConsultation(ctx context.Context, id string, status apiclient.ApplicationStatus) (*apiclient.Consultation, error) {
	return within(a, guard.AreaAdminConsultation, func(tok string) (*apiclient.Consultation, error) {
		if !status.Valid() {
			return nil, invalid("status", "must be pending, approved or rejected")
		}
		return a.client.UpdateConsultationStatus(ctx, tok, id, status)
	})
}
