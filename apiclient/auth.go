package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/skwf/portal/session"
)

// SignupRequest is the registration form.
type SignupRequest struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,email"`
	Phone           string `validate:"required"`
	CNIC            string
	Address         string
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"omitempty,eqfield=Password"`
	CNICFront       File
	CNICBack        File
	// AdminSecretKey registers an administrator when non-empty.
	AdminSecretKey string
}

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileRequest completes a user's profile.
type ProfileRequest struct {
	Education  []session.Education  `json:"education" validate:"min=1,dive"`
	Experience []session.Experience `json:"experience" validate:"min=1,dive"`
}

// Signup registers an account and returns the new session credentials.
func (c *Client) Signup(ctx context.Context, in SignupRequest) (*AuthResponse, error) {
	f := new(form).
		set("name", in.Name).
		set("email", in.Email).
		set("phone", in.Phone).
		set("password", in.Password).
		setIf("CNIC", in.CNIC).
		setIf("address", in.Address).
		attach("cnicFront", in.CNICFront).
		attach("cnicBack", in.CNICBack)
	if in.AdminSecretKey != "" {
		f.set("role", string(session.RoleAdmin)).set("adminSecretKey", in.AdminSecretKey)
	} else {
		f.set("role", string(session.RoleUser))
	}
	var out AuthResponse
	err := c.call(ctx, request{
		name:     "auth.signup",
		method:   http.MethodPost,
		path:     "/auth/signup",
		form:     f,
		fallback: "Signup failed",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a user and token. A login refused because
// payment is awaiting verification returns an *Error with PaymentPending set.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	err := c.call(ctx, request{
		name:     "auth.login",
		method:   http.MethodPost,
		path:     "/auth/login",
		json:     in,
		fallback: "Login failed",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteProfile submits education and experience history and returns the
// updated user.
func (c *Client) CompleteProfile(ctx context.Context, token string, in ProfileRequest) (*session.User, error) {
	var out session.User
	err := c.call(ctx, request{
		name:     "auth.complete_profile",
		method:   http.MethodPut,
		path:     "/auth/complete-profile",
		token:    token,
		json:     in,
		fallback: "Failed to complete profile",
	}, &out, "user")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the current user.
func (c *Client) Me(ctx context.Context, token string) (*session.User, error) {
	var out session.User
	err := c.call(ctx, request{
		name:     "auth.me",
		method:   http.MethodGet,
		path:     "/auth/me",
		token:    token,
		fallback: "Failed to fetch user",
	}, &out, "user")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Users lists accounts for administrators.
func (c *Client) Users(ctx context.Context, token string, opts ListOptions) (*Page[session.User], error) {
	var out Page[session.User]
	err := c.call(ctx, request{
		name:     "auth.users",
		method:   http.MethodGet,
		path:     "/auth/users",
		query:    listQuery(opts),
		token:    token,
		fallback: "Failed to fetch users",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UserDetails returns one account with its applications and payment.
func (c *Client) UserDetails(ctx context.Context, token, id string) (*UserDetails, error) {
	var out UserDetails
	err := c.call(ctx, request{
		name:     "auth.user_details",
		method:   http.MethodGet,
		path:     "/auth/users/" + url.PathEscape(id),
		token:    token,
		fallback: "Failed to fetch user details",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
