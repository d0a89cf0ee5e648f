package api

import (
	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/session"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Redirect names the area the caller belongs on instead.
	Redirect       string       `json:"redirect,omitempty"`
	Fields         []FieldError `json:"fields,omitempty"`
	PaymentPending bool         `json:"payment_pending,omitempty"`
}

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileRequest is the JSON body for PUT /auth/complete-profile.
type ProfileRequest struct {
	Education  []session.Education  `json:"education"`
	Experience []session.Experience `json:"experience"`
}

// NextResponse names the area the caller moves on to.
type NextResponse struct {
	Next string `json:"next"`
}

// SessionResponse is returned from GET /auth/session.
type SessionResponse struct {
	IsLoggedIn bool          `json:"is_logged_in"`
	IsHydrated bool          `json:"is_hydrated"`
	User       *session.User `json:"user,omitempty"`
	Landing    string        `json:"landing"`
}

// AreaSummary describes a registered area.
type AreaSummary struct {
	Area  string   `json:"area"`
	Path  string   `json:"path"`
	Roles []string `json:"roles,omitempty"`
}

// ListAreasResponse is returned from GET /areas.
type ListAreasResponse struct {
	Areas []AreaSummary `json:"areas"`
}

// AreaResponse is returned when an area may render.
type AreaResponse struct {
	Area    string        `json:"area"`
	Path    string        `json:"path"`
	User    *session.User `json:"user,omitempty"`
	Payment *PaymentView  `json:"payment,omitempty"`
}

// PaymentView is the payment as the gateway reports it.
type PaymentView struct {
	ID          string `json:"id,omitempty"`
	Status      string `json:"status"`
	Amount      string `json:"amount,omitempty"`
	AdminNotes  string `json:"admin_notes,omitempty"`
	CreditHours *int   `json:"credit_hours,omitempty"`
}

func paymentView(p *apiclient.Payment) *PaymentView {
	v := &PaymentView{Status: string(apiclient.StatusOf(p))}
	if p == nil {
		return v
	}
	v.ID = p.ID
	v.Amount = p.Amount.String()
	v.AdminNotes = p.AdminNotes
	v.CreditHours = p.CreditHours
	return v
}

// WatchEvent is one message on the payment watch socket.
type WatchEvent struct {
	Type    string       `json:"type"`
	Payment *PaymentView `json:"payment,omitempty"`
	Next    string       `json:"next,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Watch event types.
const (
	WatchEventStatus = "status"
	WatchEventDone   = "done"
	WatchEventError  = "error"
)

// ReviewPaymentRequest is the JSON body for PATCH /admin/payments/{paymentID}.
type ReviewPaymentRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes,omitempty"`
}

// PaymentSummary is one row of GET /admin/payments.
type PaymentSummary struct {
	PaymentView
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

// ListPaymentsResponse is returned from GET /admin/payments.
type ListPaymentsResponse struct {
	Payments []PaymentSummary `json:"payments"`
	PaginationMeta
}

// ListUsersResponse is returned from GET /admin/users.
type ListUsersResponse struct {
	Users []session.User `json:"users"`
	PaginationMeta
}
