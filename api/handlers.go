package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/session"
)

// ListAreas handles GET /areas.
func (a *API) ListAreas(w http.ResponseWriter, r *http.Request) {
	var resp ListAreasResponse
	for _, info := range guard.Areas() {
		s := AreaSummary{Area: string(info.Area), Path: info.Path}
		for _, role := range info.Roles {
			s.Roles = append(s.Roles, string(role))
		}
		resp.Areas = append(resp.Areas, s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// EnterArea handles GET /areas/*. An allowed area answers 200 with its view,
// a redirect answers 303 with Location, and a session that is not restored
// yet answers 503.
func (a *API) EnterArea(w http.ResponseWriter, r *http.Request) {
	area, ok := guard.ParseArea(chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown area")
		return
	}
	d, err := a.app.Enter(area)
	switch {
	case d.Pending():
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "session not restored yet")
		return
	case err != nil:
		a.audit.logFailure(AuditAccessRedirected, r, string(d.Reason),
			slog.String("area", string(area)),
			slog.String("target", string(d.Target)))
		writeRedirect(w, http.StatusSeeOther, d.Target, err.Error())
		return
	}

	resp := AreaResponse{Area: string(area), Path: area.Path(), User: a.app.Session().User}
	if area == guard.AreaPayment {
		p, err := a.app.PaymentStatus(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		resp.Payment = paymentView(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitPayment handles POST /payment.
func (a *API) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r) {
		return
	}
	amount, err := decimal.NewFromString(r.FormValue("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a number")
		return
	}
	shot, err := formFile(r, "screenshot")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.app.SubmitPayment(r.Context(), amount, shot)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit.logEvent(AuditPaymentSubmitted, r, a.app.Session().UserID(),
		slog.String("payment_id", p.ID),
		slog.String("amount", p.Amount.String()))
	writeJSON(w, http.StatusCreated, paymentView(p))
}

// PaymentStatus handles GET /payment/status.
func (a *API) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := a.app.PaymentStatus(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentView(p))
}

// ListPayments handles GET /admin/payments.
func (a *API) ListPayments(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)
	page, err := a.app.Payments(r.Context(), opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := ListPaymentsResponse{Payments: []PaymentSummary{}, PaginationMeta: pageMeta(page, opts)}
	for i := range page.Data {
		p := &page.Data[i]
		s := PaymentSummary{PaymentView: *paymentView(p), UserID: p.User.ID}
		if u := p.User.Value; u != nil {
			s.UserName = u.Name
			s.UserEmail = u.Email
		}
		resp.Payments = append(resp.Payments, s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReviewPayment handles PATCH /admin/payments/{paymentID}.
func (a *API) ReviewPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ReviewPaymentRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}
	id := chi.URLParam(r, "paymentID")
	p, err := a.app.ReviewPayment(r.Context(), id, apiclient.PaymentStatus(req.Status), req.AdminNotes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit.logEvent(AuditPaymentReviewed, r, a.app.Session().UserID(),
		slog.String("payment_id", id),
		slog.String("status", req.Status))
	writeJSON(w, http.StatusOK, paymentView(p))
}

// ListUsers handles GET /admin/users.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)
	page, err := a.app.Users(r.Context(), opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := ListUsersResponse{Users: page.Data, PaginationMeta: pageMeta(page, opts)}
	if resp.Users == nil {
		resp.Users = []session.User{}
	}
	writeJSON(w, http.StatusOK, resp)
}
