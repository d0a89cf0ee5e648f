package apiclient_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/internal/fakeapi"
	"github.com/skwf/portal/session"
)

type call struct {
	endpoint string
	status   int
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) ObserveAPICall(endpoint string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{endpoint, status})
}

func newClient(t *testing.T, opts ...apiclient.Option) (*apiclient.Client, *fakeapi.Server) {
	t.Helper()
	api := fakeapi.New()
	srv := api.Start()
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL, opts...)
	require.NoError(t, err)
	return c, api
}

var png = apiclient.File{Name: "shot.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nfake")}

func signup(t *testing.T, c *apiclient.Client) *apiclient.AuthResponse {
	t.Helper()
	resp, err := c.Signup(context.Background(), apiclient.SignupRequest{
		Name:      "Ayesha Khan",
		Email:     "ayesha@example.org",
		Phone:     "03001234567",
		Password:  "secret1",
		CNICFront: png,
		CNICBack:  png,
	})
	require.NoError(t, err)
	return resp
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := apiclient.New("ftp://example.org")
	assert.Error(t, err)

	c, err := apiclient.New("")
	require.NoError(t, err)
	assert.Equal(t, apiclient.DefaultBaseURL, c.BaseURL())

	c, err = apiclient.New("https://api.example.org/v1/")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.org/v1", c.BaseURL())
}

func TestSignupLoginMe(t *testing.T) {
	rec := &recorder{}
	c, api := newClient(t, apiclient.WithRecorder(rec))
	ctx := context.Background()

	resp := signup(t, c)
	require.NotNil(t, resp.User)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, session.RoleUser, resp.User.Role)
	assert.False(t, resp.User.ProfileCompleted)
	assert.NotEmpty(t, resp.User.CNICFront)

	login, err := c.Login(ctx, apiclient.LoginRequest{Email: "ayesha@example.org", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	me, err := c.Me(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ayesha Khan", me.Name)
	assert.Equal(t, 1, api.Hits("GET /auth/me"))

	assert.Equal(t, []call{
		{"auth.signup", http.StatusCreated},
		{"auth.login", http.StatusOK},
		{"auth.me", http.StatusOK},
	}, rec.calls)
}

func TestSignupAdminRequiresSecret(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	_, err := c.Signup(ctx, apiclient.SignupRequest{
		Name: "Root", Email: "root@example.org", Phone: "1", Password: "secret1",
		AdminSecretKey: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apiclient.StatusCode(err))

	resp, err := c.Signup(ctx, apiclient.SignupRequest{
		Name: "Root", Email: "root@example.org", Phone: "1", Password: "secret1",
		AdminSecretKey: fakeapi.DefaultAdminSecret,
	})
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, resp.User.Role)
}

func TestLoginFailure(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.Login(context.Background(), apiclient.LoginRequest{Email: "nobody@example.org", Password: "x"})
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.False(t, apiErr.PaymentPending)
}

func TestLoginPaymentPending(t *testing.T) {
	c, api := newClient(t)
	ctx := context.Background()
	api.BlockPendingLogin = true
	resp := signup(t, c)
	_, err := c.CreatePayment(ctx, resp.Token, apiclient.AmountStandard, png)
	require.NoError(t, err)

	_, err = c.Login(ctx, apiclient.LoginRequest{Email: "ayesha@example.org", Password: "secret1"})
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.PaymentPending)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestAccountGone(t *testing.T) {
	var logs bytes.Buffer
	c, api := newClient(t, apiclient.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	ctx := context.Background()
	resp := signup(t, c)

	api.DeleteUser(resp.User.ID)
	_, err := c.Me(ctx, resp.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, apiclient.ErrAccountGone)
	assert.NotErrorIs(t, err, apiclient.ErrUnauthorized)
	assert.Contains(t, logs.String(), "account no longer exists")
}

func TestUnauthorizedIsNotAccountGone(t *testing.T) {
	var logs bytes.Buffer
	c, _ := newClient(t, apiclient.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	_, err := c.Me(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
	assert.NotErrorIs(t, err, apiclient.ErrAccountGone)
	assert.NotContains(t, logs.String(), "account no longer exists")
}

func TestFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c, err := apiclient.New(srv.URL)
	require.NoError(t, err)

	_, err = c.CreatePayment(context.Background(), "tok", apiclient.AmountStandard, png)
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Failed to submit payment", apiErr.Message)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"_id":"u1","role":"user"}}`))
	}))
	defer srv.Close()
	c, err := apiclient.New(srv.URL, apiclient.WithUserAgent("portal-test"))
	require.NoError(t, err)

	u, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "portal-test", got.Get("User-Agent"))
	assert.Len(t, got.Get("X-Request-ID"), 36)
}

func TestTransportErrorRecordsZeroStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := &recorder{}
	c, err := apiclient.New(url, apiclient.WithRecorder(rec), apiclient.WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.MyPayment(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, 0, apiclient.StatusCode(err))
	assert.Equal(t, []call{{"payment.mine", 0}}, rec.calls)
}

func TestCompleteProfile(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	resp := signup(t, c)

	u, err := c.CompleteProfile(ctx, resp.Token, apiclient.ProfileRequest{
		Education:  []session.Education{{Institute: "NUST", Degree: "BSCS"}},
		Experience: []session.Experience{{Institute: "Acme", Role: "Engineer"}},
	})
	require.NoError(t, err)
	assert.True(t, u.ProfileCompleted)
	require.Len(t, u.Education, 1)
	assert.Equal(t, "NUST", u.Education[0].Institute)

	_, err = c.CompleteProfile(ctx, resp.Token, apiclient.ProfileRequest{})
	assert.Equal(t, http.StatusBadRequest, apiclient.StatusCode(err))
}

func TestPaymentLifecycle(t *testing.T) {
	c, api := newClient(t)
	ctx := context.Background()
	user := signup(t, c)

	p, err := c.MyPayment(ctx, user.Token)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, apiclient.PaymentNone, apiclient.StatusOf(p))

	_, err = c.CreatePayment(ctx, user.Token, decimal.NewFromInt(100), png)
	assert.Equal(t, http.StatusBadRequest, apiclient.StatusCode(err))

	p, err = c.CreatePayment(ctx, user.Token, apiclient.AmountExtended, png)
	require.NoError(t, err)
	assert.Equal(t, apiclient.PaymentPending, p.Status)
	assert.True(t, p.Amount.Equal(apiclient.AmountExtended))

	admin := api.SeedUser(session.User{Name: "Admin", Email: "admin@example.org", Role: session.RoleAdmin}, "pw")
	adminToken := api.Token(admin.ID)

	page, err := c.Payments(ctx, adminToken, apiclient.ListOptions{Status: string(apiclient.PaymentPending)})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.TotalRecords)
	require.NotNil(t, page.Data[0].User.Value, "admin listing populates the user")
	assert.Equal(t, "Ayesha Khan", page.Data[0].User.Value.Name)

	_, err = c.VerifyPayment(ctx, adminToken, p.ID, apiclient.PaymentPending, "")
	require.Error(t, err, "pending is not a decision")

	verified, err := c.VerifyPayment(ctx, adminToken, p.ID, apiclient.PaymentVerified, "ok")
	require.NoError(t, err)
	assert.Equal(t, apiclient.PaymentVerified, verified.Status)
	require.NotNil(t, verified.CreditHours)
	assert.Equal(t, 2, *verified.CreditHours)
	assert.Equal(t, admin.ID, verified.VerifiedBy.ID)

	mine, err := c.MyPayment(ctx, user.Token)
	require.NoError(t, err)
	assert.Equal(t, apiclient.PaymentVerified, mine.Status)

	me, err := c.Me(ctx, user.Token)
	require.NoError(t, err)
	assert.True(t, me.PaymentVerified)
	assert.Equal(t, 2, me.CreditHours)

	_, err = c.Payments(ctx, user.Token, apiclient.ListOptions{})
	assert.Equal(t, http.StatusForbidden, apiclient.StatusCode(err))

	_, err = c.PaymentByID(ctx, adminToken, "missing")
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestUsersAndDetails(t *testing.T) {
	c, api := newClient(t)
	ctx := context.Background()
	user := signup(t, c)
	admin := api.SeedUser(session.User{Name: "Admin", Email: "admin@example.org", Role: session.RoleAdmin}, "pw")
	tok := api.Token(admin.ID)

	page, err := c.Users(ctx, tok, apiclient.ListOptions{Search: "ayesha"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, user.User.ID, page.Data[0].ID)

	page, err = c.Users(ctx, tok, apiclient.ListOptions{Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.TotalRecords)
	assert.Len(t, page.Data, 1)

	details, err := c.UserDetails(ctx, tok, user.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ayesha@example.org", details.User.Email)
	assert.Nil(t, details.Applications.Payment)
}

func TestStatusCodeOfPlainError(t *testing.T) {
	assert.Equal(t, 0, apiclient.StatusCode(errors.New("boom")))
	assert.Equal(t, 0, apiclient.StatusCode(nil))
}
