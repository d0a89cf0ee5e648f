package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skwf/portal/api"
	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/internal/fakeapi"
	"github.com/skwf/portal/internal/logger"
	"github.com/skwf/portal/portal"
	"github.com/skwf/portal/session"
	"github.com/skwf/portal/storage/memory"
)

type gateway struct {
	srv  *httptest.Server
	api  *api.API
	app  *portal.App
	fake *fakeapi.Server
}

// newGateway serves a gateway backed by fake without restoring the session.
func newGateway(t *testing.T, fake *fakeapi.Server, opts ...api.Option) *gateway {
	t.Helper()
	remote := fake.Start()
	t.Cleanup(remote.Close)

	client, err := apiclient.New(remote.URL)
	require.NoError(t, err)
	store, err := session.NewStore(memory.NewRepository())
	require.NoError(t, err)
	app := portal.New(store, client, portal.WithPollInterval(20*time.Millisecond))

	a := api.New(app, append([]api.Option{api.WithLogger(logger.Discard())}, opts...)...)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &gateway{srv: srv, api: a, app: app, fake: fake}
}

func setupServer(t *testing.T, fake *fakeapi.Server, opts ...api.Option) *gateway {
	t.Helper()
	g := newGateway(t, fake, opts...)
	g.app.Hydrate()
	return g
}

func (g *gateway) url(path string) string {
	return g.srv.URL + "/api/v1" + path
}

// newClient does not follow redirects so guard answers can be inspected.
func newClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func doForm(t *testing.T, client *http.Client, url string, fields map[string]string, files map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG\r\n\x1a\nfake"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func signup(t *testing.T, g *gateway, client *http.Client, email string, extra map[string]string) api.NextResponse {
	t.Helper()
	fields := map[string]string{
		"name":     "Ayesha Khan",
		"email":    email,
		"phone":    "03001234567",
		"password": "secret1",
	}
	for k, v := range extra {
		fields[k] = v
	}
	resp := doForm(t, client, g.url("/auth/signup"), fields, map[string]string{
		"cnic_front": "front.png",
		"cnic_back":  "back.png",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.NextResponse](t, resp)
}

var profileBody = api.ProfileRequest{
	Education:  []session.Education{{Institute: "NUST", Degree: "BS Computer Science"}},
	Experience: []session.Experience{{Institute: "Systems Ltd", Role: "Intern"}},
}

// pendingApplicant signs up through g, completes the profile and submits a
// payment.
func pendingApplicant(t *testing.T, g *gateway, client *http.Client) {
	t.Helper()
	signup(t, g, client, "ayesha@example.org", nil)

	resp := doJSON(t, client, http.MethodPut, g.url("/auth/complete-profile"), profileBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doForm(t, client, g.url("/payment"), map[string]string{"amount": "5000"},
		map[string]string{"screenshot": "shot.png"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestSignupProgression(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	client := newClient()

	next := signup(t, g, client, "ayesha@example.org", nil)
	assert.Equal(t, "profile", next.Next)

	// Payment before the profile is refused with a pointer back.
	resp := doForm(t, client, g.url("/payment"), map[string]string{"amount": "5000"},
		map[string]string{"screenshot": "shot.png"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	errResp := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "profile", errResp.Redirect)

	resp = doJSON(t, client, http.MethodGet, g.url("/areas/user"), nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/api/v1/areas/payment", resp.Header.Get("Location"))
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPut, g.url("/auth/complete-profile"), profileBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "payment", decode[api.NextResponse](t, resp).Next)

	resp = doJSON(t, client, http.MethodGet, g.url("/areas/payment"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	area := decode[api.AreaResponse](t, resp)
	require.NotNil(t, area.Payment)
	assert.Equal(t, "none", area.Payment.Status)

	resp = doForm(t, client, g.url("/payment"), map[string]string{"amount": "5000"},
		map[string]string{"screenshot": "shot.png"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	submitted := decode[api.PaymentView](t, resp)
	assert.Equal(t, "pending", submitted.Status)
	assert.Equal(t, "5000", submitted.Amount)

	resp = doJSON(t, client, http.MethodGet, g.url("/payment/status"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[api.PaymentView](t, resp)
	assert.Equal(t, submitted.ID, status.ID)
	assert.Equal(t, "pending", status.Status)
}

func TestRedirectChainEndsOnProfile(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	signup(t, g, newClient(), "ayesha@example.org", nil)

	resp := doJSON(t, http.DefaultClient, http.MethodGet, g.url("/areas/user/grants"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	area := decode[api.AreaResponse](t, resp)
	assert.Equal(t, "profile", area.Area)
	assert.Equal(t, "/profile", area.Path)
}

func TestEnterArea(t *testing.T) {
	t.Run("public area", func(t *testing.T) {
		g := setupServer(t, fakeapi.New())
		resp := doJSON(t, newClient(), http.MethodGet, g.url("/areas/login"), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("logged out", func(t *testing.T) {
		g := setupServer(t, fakeapi.New())
		resp := doJSON(t, newClient(), http.MethodGet, g.url("/areas/admin/payments"), nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/api/v1/areas/login", resp.Header.Get("Location"))
		assert.Equal(t, "login", decode[api.ErrorResponse](t, resp).Redirect)
	})

	t.Run("unknown area", func(t *testing.T) {
		g := setupServer(t, fakeapi.New())
		resp := doJSON(t, newClient(), http.MethodGet, g.url("/areas/nowhere"), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("before hydration", func(t *testing.T) {
		g := newGateway(t, fakeapi.New())
		resp := doJSON(t, newClient(), http.MethodGet, g.url("/areas/user"), nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("Retry-After"))
		resp.Body.Close()
	})

	t.Run("user kept out of admin", func(t *testing.T) {
		g := setupServer(t, fakeapi.New())
		client := newClient()
		signup(t, g, client, "ayesha@example.org", nil)
		resp := doJSON(t, client, http.MethodGet, g.url("/areas/admin"), nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/api/v1/areas/unauthorized", resp.Header.Get("Location"))
		resp.Body.Close()
	})
}

func TestListAreas(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	resp := doJSON(t, newClient(), http.MethodGet, g.url("/areas"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListAreasResponse](t, resp)

	byName := make(map[string]api.AreaSummary)
	for _, a := range list.Areas {
		byName[a.Area] = a
	}
	require.Contains(t, byName, "admin/manage-users")
	assert.Equal(t, "/admin/manage-users", byName["admin/manage-users"].Path)
	assert.Equal(t, []string{"admin"}, byName["admin/manage-users"].Roles)
	assert.Empty(t, byName["login"].Roles)
}

func TestSessionAndLogout(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	client := newClient()
	signup(t, g, client, "ayesha@example.org", nil)

	resp := doJSON(t, client, http.MethodGet, g.url("/auth/session"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[api.SessionResponse](t, resp)
	assert.True(t, s.IsLoggedIn)
	assert.True(t, s.IsHydrated)
	require.NotNil(t, s.User)
	assert.Equal(t, "ayesha@example.org", s.User.Email)
	assert.Equal(t, "profile", s.Landing)

	resp = doJSON(t, client, http.MethodPost, g.url("/auth/logout"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "login", decode[api.NextResponse](t, resp).Next)

	resp = doJSON(t, client, http.MethodGet, g.url("/auth/session"), nil)
	s = decode[api.SessionResponse](t, resp)
	assert.False(t, s.IsLoggedIn)
	assert.Nil(t, s.User)
	assert.Equal(t, "login", s.Landing)

	resp = doJSON(t, client, http.MethodPost, g.url("/auth/refresh"), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "login", decode[api.ErrorResponse](t, resp).Redirect)
}

func TestLoginValidation(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	resp := doJSON(t, newClient(), http.MethodPost, g.url("/auth/login"), map[string]string{
		"email": "not-an-email",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[api.ErrorResponse](t, resp)

	fields := make(map[string]string)
	for _, f := range errResp.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "is required", fields["password"])
	assert.Zero(t, g.fake.Hits("POST /auth/login"), "invalid input must not reach the remote API")
}

func TestLoginMalformedBody(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, g.url("/auth/login"), strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := newClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginRateLimited(t *testing.T) {
	fake := fakeapi.New()
	fake.SeedUser(session.User{Name: "Ayesha", Email: "ayesha@example.org", Phone: "0300"}, "secret1")
	g := setupServer(t, fake)
	client := newClient()

	for i := 0; i < 5; i++ {
		resp := doJSON(t, client, http.MethodPost, g.url("/auth/login"), api.LoginRequest{
			Email: "ayesha@example.org", Password: "wrong",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, client, http.MethodPost, g.url("/auth/login"), api.LoginRequest{
		Email: "Ayesha@Example.org", Password: "secret1",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	resp.Body.Close()
	assert.Equal(t, 5, fake.Hits("POST /auth/login"), "locked-out login must not reach the remote API")
}

func TestLoginPaymentPending(t *testing.T) {
	fake := fakeapi.New()
	g := setupServer(t, fake)
	client := newClient()
	pendingApplicant(t, g, client)

	resp := doJSON(t, client, http.MethodPost, g.url("/auth/logout"), nil)
	resp.Body.Close()

	fake.BlockPendingLogin = true
	resp = doJSON(t, client, http.MethodPost, g.url("/auth/login"), api.LoginRequest{
		Email: "ayesha@example.org", Password: "secret1",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.True(t, decode[api.ErrorResponse](t, resp).PaymentPending)
}

func TestAdminReviewsPayment(t *testing.T) {
	fake := fakeapi.New()
	user := setupServer(t, fake)
	userClient := newClient()
	pendingApplicant(t, user, userClient)

	admin := setupServer(t, fake)
	adminClient := newClient()
	next := signup(t, admin, adminClient, "admin@example.org", map[string]string{
		"name":             "Portal Admin",
		"admin_secret_key": fakeapi.DefaultAdminSecret,
	})
	assert.Equal(t, "admin", next.Next)

	resp := doJSON(t, adminClient, http.MethodGet, admin.url("/admin/payments?status=pending"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListPaymentsResponse](t, resp)
	require.Len(t, list.Payments, 1)
	assert.Equal(t, 1, list.TotalCount)
	assert.False(t, list.HasMore)
	assert.Equal(t, "ayesha@example.org", list.Payments[0].UserEmail)

	resp = doJSON(t, adminClient, http.MethodPatch, admin.url("/admin/payments/"+list.Payments[0].ID),
		api.ReviewPaymentRequest{Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, adminClient, http.MethodPatch, admin.url("/admin/payments/"+list.Payments[0].ID),
		api.ReviewPaymentRequest{Status: "verified", AdminNotes: "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reviewed := decode[api.PaymentView](t, resp)
	assert.Equal(t, "verified", reviewed.Status)
	require.NotNil(t, reviewed.CreditHours)
	assert.Equal(t, 2, *reviewed.CreditHours)

	resp = doJSON(t, adminClient, http.MethodGet, admin.url("/admin/users?search=ayesha"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decode[api.ListUsersResponse](t, resp)
	require.Len(t, users.Users, 1)
	assert.True(t, users.Users[0].PaymentVerified)

	// The applicant's stored session still says unverified until refreshed.
	resp = doJSON(t, userClient, http.MethodGet, user.url("/areas/user"), nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, userClient, http.MethodPost, user.url("/auth/refresh"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[api.SessionResponse](t, resp)
	assert.Equal(t, "user", s.Landing)
	assert.Equal(t, 2, s.User.CreditHours)

	resp = doJSON(t, userClient, http.MethodGet, user.url("/areas/user"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Admin routes stay closed to the applicant.
	resp = doJSON(t, userClient, http.MethodGet, user.url("/admin/payments"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "unauthorized", decode[api.ErrorResponse](t, resp).Redirect)
}

func TestDeletedAccountForcesLogout(t *testing.T) {
	fake := fakeapi.New()
	g := setupServer(t, fake)
	client := newClient()
	pendingApplicant(t, g, client)

	fake.DeleteUser(g.app.Session().User.ID)

	resp := doJSON(t, client, http.MethodGet, g.url("/payment/status"), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "login", decode[api.ErrorResponse](t, resp).Redirect)
	assert.False(t, g.app.Session().IsLoggedIn)
}

func wsURL(g *gateway, path string) string {
	return "ws" + strings.TrimPrefix(g.url(path), "http")
}

func readEvents(t *testing.T, ctx context.Context, conn *websocket.Conn) []api.WatchEvent {
	t.Helper()
	var events []api.WatchEvent
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return events
		}
		var ev api.WatchEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
		if ev.Type != api.WatchEventStatus {
			return events
		}
	}
}

func TestWatchPaymentVerified(t *testing.T) {
	fake := fakeapi.New()
	g := setupServer(t, fake)
	pendingApplicant(t, g, newClient())
	require.NoError(t, fake.SetPaymentStatus(g.app.Session().User.ID, apiclient.PaymentVerified))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(g, "/payment/watch"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	events := readEvents(t, ctx, conn)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, api.WatchEventDone, last.Type)
	assert.Equal(t, "user", last.Next)
	require.NotNil(t, last.Payment)
	assert.Equal(t, "verified", last.Payment.Status)

	assert.Equal(t, api.WatchEventStatus, events[0].Type)
	assert.True(t, g.app.Session().User.PaymentVerified)
}

func TestWatchPaymentRejected(t *testing.T) {
	fake := fakeapi.New()
	g := setupServer(t, fake)
	pendingApplicant(t, g, newClient())

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(g, "/payment/watch"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// The first check reports the payment as pending.
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var first api.WatchEvent
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, api.WatchEventStatus, first.Type)
	assert.Equal(t, "pending", first.Payment.Status)

	require.NoError(t, fake.SetPaymentStatus(g.app.Session().User.ID, apiclient.PaymentRejected))

	events := readEvents(t, ctx, conn)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, api.WatchEventDone, last.Type)
	assert.Equal(t, "payment", last.Next)
	assert.Equal(t, "rejected", last.Payment.Status)
}

func TestWatchPaymentRefusedBeforeUpgrade(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	resp := doJSON(t, newClient(), http.MethodGet, g.url("/payment/watch"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "login", decode[api.ErrorResponse](t, resp).Redirect)
}

func TestAuditWebhookReceivesEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		events []map[string]any
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev map[string]any
		if json.Unmarshal(body, &ev) == nil {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	g := setupServer(t, fakeapi.New(), api.WithAuditWebhook(hook.URL, ""))
	signup(t, g, newClient(), "ayesha@example.org", nil)
	userID := g.app.Session().User.ID
	g.api.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "signup", events[0]["event"])
	assert.Equal(t, userID, events[0]["user_id"])
}

func TestOpenAPIServed(t *testing.T) {
	g := setupServer(t, fakeapi.New())
	resp := doJSON(t, newClient(), http.MethodGet, g.url("/openapi.yaml"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/payment/watch")
}
