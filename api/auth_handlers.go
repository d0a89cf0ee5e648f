package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/portal"
)

const (
	maxJSONBodySize = 1 << 20
	// maxUploadSize bounds a multipart request with document uploads.
	maxUploadSize = 10 << 20
)

// decodeJSON reads a bounded JSON body into T. On failure it has already
// written the error response.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

// parseUpload parses a bounded multipart body.
func parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return false
	}
	return true
}

// formFile returns the uploaded file in field, or an empty File when the
// field is absent.
func formFile(r *http.Request, field string) (apiclient.File, error) {
	f, fh, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return apiclient.File{}, nil
	}
	if err != nil {
		return apiclient.File{}, fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()
	return readUpload(f, fh)
}

func readUpload(f multipart.File, fh *multipart.FileHeader) (apiclient.File, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return apiclient.File{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	return apiclient.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// fail writes err, auditing forced logouts and guard redirects.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var na *portal.NotAllowedError
	switch {
	case errors.Is(err, portal.ErrSessionInvalidated):
		a.audit.logFailure(AuditSessionInvalidated, r, "account no longer exists")
	case errors.As(err, &na) && na.Decision.Redirected():
		a.audit.logFailure(AuditAccessRedirected, r, string(na.Decision.Reason),
			slog.String("area", string(na.Area)),
			slog.String("target", string(na.Decision.Target)))
	}
	mapError(w, err)
}

// Signup handles POST /auth/signup.
func (a *API) Signup(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r) {
		return
	}
	req := apiclient.SignupRequest{
		Name:            r.FormValue("name"),
		Email:           r.FormValue("email"),
		Phone:           r.FormValue("phone"),
		CNIC:            r.FormValue("cnic"),
		Address:         r.FormValue("address"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
		AdminSecretKey:  r.FormValue("admin_secret_key"),
	}
	var err error
	if req.CNICFront, err = formFile(r, "cnic_front"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CNICBack, err = formFile(r, "cnic_back"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	next, err := a.app.Signup(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	s := a.app.Session()
	a.audit.logEvent(AuditSignup, r, s.User.ID, slog.String("role", string(s.User.Role)))
	writeJSON(w, http.StatusCreated, NextResponse{Next: string(next)})
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}
	if blocked, retryAfter := a.rateLimiter.check(req.Email); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited")
		writeRateLimited(w, retryAfter)
		return
	}

	next, err := a.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && !apiErr.PaymentPending && apiErr.StatusCode < 500 {
			a.rateLimiter.recordFailure(req.Email)
		}
		a.audit.logFailure(AuditLoginFailure, r, err.Error())
		a.fail(w, r, err)
		return
	}
	a.rateLimiter.recordSuccess(req.Email)
	a.audit.logEvent(AuditLoginSuccess, r, a.app.Session().UserID())
	writeJSON(w, http.StatusOK, NextResponse{Next: string(next)})
}

// Logout handles POST /auth/logout.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	userID := a.app.Session().UserID()
	if err := a.app.Logout(); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditLogout, r, userID)
	writeJSON(w, http.StatusOK, NextResponse{Next: string(guard.AreaLogin)})
}

// CompleteProfile handles PUT /auth/complete-profile.
func (a *API) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ProfileRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}
	next, err := a.app.CompleteProfile(r.Context(), apiclient.ProfileRequest{
		Education:  req.Education,
		Experience: req.Experience,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit.logEvent(AuditProfileCompleted, r, a.app.Session().UserID())
	writeJSON(w, http.StatusOK, NextResponse{Next: string(next)})
}

// Refresh handles POST /auth/refresh.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := a.app.Refresh(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Session(w, r)
}

// Session handles GET /auth/session.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	s := a.app.Session()
	writeJSON(w, http.StatusOK, SessionResponse{
		IsLoggedIn: s.IsLoggedIn,
		IsHydrated: s.IsHydrated,
		User:       s.User,
		Landing:    string(a.app.Landing()),
	})
}
