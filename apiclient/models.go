package apiclient

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skwf/portal/session"
)

// Ref is a reference the API returns either as a bare ID or as the
// populated object.
type Ref[T any] struct {
	ID    string
	Value *T
}

func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref[T]{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref[T]{ID: id}
		return nil
	}
	var head struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	*r = Ref[T]{ID: head.ID, Value: v}
	return nil
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Value != nil {
		return json.Marshal(r.Value)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// UserRef is a user reference on an application or payment.
type UserRef = Ref[session.User]

// Page is one page of an admin listing.
type Page[T any] struct {
	Success      bool
	Data         []T
	TotalPages   int
	TotalRecords int
	CurrentPage  int
}

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success       bool `json:"success"`
		Data          []T  `json:"data"`
		Opportunities []T  `json:"opportunities"`
		TotalPages    int  `json:"totalPages"`
		TotalRecords  int  `json:"totalRecords"`
		Total         int  `json:"total"`
		CurrentPage   int  `json:"currentPage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Page[T]{
		Success:      raw.Success,
		Data:         raw.Data,
		TotalPages:   raw.TotalPages,
		TotalRecords: raw.TotalRecords,
		CurrentPage:  raw.CurrentPage,
	}
	if p.Data == nil {
		p.Data = raw.Opportunities
	}
	if p.TotalRecords == 0 {
		p.TotalRecords = raw.Total
	}
	return nil
}

// ListOptions are the paging and filter parameters of admin listings.
type ListOptions struct {
	Page   int
	Limit  int
	Search string
	Status string
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Message string        `json:"message,omitempty"`
	User    *session.User `json:"user"`
	Token   string        `json:"token"`
}

// PaymentStatus is the verification state of a user's payment.
type PaymentStatus string

const (
	PaymentNone     PaymentStatus = "none"
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

// Terminal reports whether polling should stop at s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentVerified || s == PaymentRejected
}

// Payment is a submitted verification fee.
type Payment struct {
	ID         string           `json:"_id"`
	User       UserRef          `json:"user"`
	Amount     decimal.Decimal  `json:"amount"`
	Status     PaymentStatus    `json:"status"`
	Screenshot session.FilePath `json:"screenshot,omitempty"`
	AdminNotes string           `json:"adminNotes,omitempty"`
	VerifiedBy UserRef          `json:"verifiedBy"`
	VerifiedAt *time.Time       `json:"verifiedAt,omitempty"`
	CreatedAt  *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time       `json:"updatedAt,omitempty"`
	// CreditHours, when reported, is the user's balance after verification.
	CreditHours *int `json:"creditHours,omitempty"`
}

// StatusOf returns p's status, PaymentNone for a nil payment.
func StatusOf(p *Payment) PaymentStatus {
	if p == nil || p.Status == "" {
		return PaymentNone
	}
	return p.Status
}

// ApplicationStatus is the review state of a program application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is a known review state.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

// ScholarshipOpportunity is an admin-managed scholarship listing.
type ScholarshipOpportunity struct {
	ID                string     `json:"_id,omitempty"`
	DegreeLevel       string     `json:"degreeLevel" validate:"required"`
	Course            string     `json:"course" validate:"required"`
	Country           string     `json:"country" validate:"required"`
	QualificationType string     `json:"qualificationType,omitempty"`
	Description       string     `json:"description,omitempty"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
}

// ScholarshipApplication is a user's application to a scholarship.
type ScholarshipApplication struct {
	ID                  string                      `json:"_id"`
	User                UserRef                     `json:"user"`
	DegreeLevel         string                      `json:"degreeLevel"`
	Course              string                      `json:"course"`
	Opportunity         Ref[ScholarshipOpportunity] `json:"opportunityId"`
	Passport            session.FilePath            `json:"passport,omitempty"`
	Documents           []session.FilePath          `json:"documents,omitempty"`
	ExperienceDocuments []session.FilePath          `json:"experienceDocuments,omitempty"`
	Status              ApplicationStatus           `json:"status"`
	CreatedAt           *time.Time                  `json:"createdAt,omitempty"`
}

// GrantOpportunity is an admin-managed business grant listing.
type GrantOpportunity struct {
	ID          string          `json:"_id,omitempty"`
	City        string          `json:"city" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
}

// GrantApplication is a user's business grant application.
type GrantApplication struct {
	ID          string                `json:"_id"`
	User        UserRef               `json:"user"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Proposal    session.FilePath      `json:"proposal,omitempty"`
	Opportunity Ref[GrantOpportunity] `json:"opportunityId"`
	Status      ApplicationStatus     `json:"status"`
	CreatedAt   *time.Time            `json:"createdAt,omitempty"`
}

// Consultation is a career consultation request.
type Consultation struct {
	ID          string            `json:"_id"`
	User        UserRef           `json:"user"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Status      ApplicationStatus `json:"status"`
	CreatedAt   *time.Time        `json:"createdAt,omitempty"`
}

// UserDetails is the admin view of one user and everything they submitted.
type UserDetails struct {
	User         *session.User `json:"user"`
	Applications struct {
		Scholarships  []ScholarshipApplication `json:"scholarships"`
		Grants        []GrantApplication       `json:"grants"`
		Consultations []Consultation           `json:"consultations"`
		Payment       *Payment                 `json:"payment"`
	} `json:"applications"`
}
