package portal

import (
	"context"
	"fmt"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/session"
)

// Signup registers an account, logs it in and returns its landing area.
func (a *App) Signup(ctx context.Context, in apiclient.SignupRequest) (guard.Area, error) {
	if err := a.validate(in); err != nil {
		return "", err
	}
	resp, err := a.client.Signup(ctx, in)
	if err != nil {
		return "", err
	}
	return a.loginSuccess(resp)
}

// Login authenticates and returns the landing area. A login refused because
// payment awaits verification returns an *apiclient.Error with
// PaymentPending set.
func (a *App) Login(ctx context.Context, email, password string) (guard.Area, error) {
	in := apiclient.LoginRequest{Email: email, Password: password}
	if err := a.validate(in); err != nil {
		return "", err
	}
	resp, err := a.client.Login(ctx, in)
	if err != nil {
		return "", err
	}
	return a.loginSuccess(resp)
}

func (a *App) loginSuccess(resp *apiclient.AuthResponse) (guard.Area, error) {
	if err := a.store.LoginSuccess(resp.User, resp.Token); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}
	a.logger.Info("logged in", "user_id", resp.User.ID, "role", resp.User.Role)
	return a.Landing(), nil
}

// Logout clears the session.
func (a *App) Logout() error {
	return a.store.Logout()
}

// CompleteProfile submits education and experience history. It returns the
// area the user moves on to.
func (a *App) CompleteProfile(ctx context.Context, in apiclient.ProfileRequest) (guard.Area, error) {
	tok, err := a.token(guard.AreaProfile)
	if err != nil {
		return "", err
	}
	if err := a.validate(in); err != nil {
		return "", err
	}
	user, err := a.client.CompleteProfile(ctx, tok, in)
	if err != nil {
		return "", a.check(err)
	}
	if err := a.store.UpdateUserData(user); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}
	return guard.Resolve(a.store.Snapshot(), guard.AreaPayment).Area, nil
}

// Refresh reloads the user from the remote API into the session.
func (a *App) Refresh(ctx context.Context) (*session.User, error) {
	tok, err := a.store.Token()
	if err != nil {
		return nil, err
	}
	user, err := a.client.Me(ctx, tok)
	if err != nil {
		return nil, a.check(err)
	}
	if err := a.store.UpdateUserData(user); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return user, nil
}
