// Package fakeapi is an in-memory stand-in for the foundation's remote API.
// Tests and the example walkthrough run the portal against it; it speaks the
// same routes and response shapes as the real service.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/session"
)

// DefaultAdminSecret is the admin registration key accepted by a new Server.
const DefaultAdminSecret = "let-me-admin"

type account struct {
	user     session.User
	password string
}

// Server is the fake API. The zero value is not usable; call New.
type Server struct {
	// AdminSecret must accompany admin signups.
	AdminSecret string
	// BlockPendingLogin refuses logins of users whose payment awaits review,
	// flagging the error with paymentPending.
	BlockPendingLogin bool
	// TokenTTL is the lifetime of minted tokens.
	TokenTTL time.Duration

	mu              sync.Mutex
	secret          []byte
	accounts        map[string]*account
	emails          map[string]string
	payments        map[string]*apiclient.Payment
	scholarships    []*apiclient.ScholarshipApplication
	scholarshipOpps []*apiclient.ScholarshipOpportunity
	grants          []*apiclient.GrantApplication
	grantOpps       []*apiclient.GrantOpportunity
	consultations   []*apiclient.Consultation
	files           map[string][]byte
	hits            map[string]int
	failures        map[string]int
}

// New returns an empty fake API.
func New() *Server {
	return &Server{
		AdminSecret: DefaultAdminSecret,
		TokenTTL:    24 * time.Hour,
		secret:      []byte(uuid.NewString()),
		accounts:    make(map[string]*account),
		emails:      make(map[string]string),
		payments:    make(map[string]*apiclient.Payment),
		files:       make(map[string][]byte),
		hits:        make(map[string]int),
		failures:    make(map[string]int),
	}
}

// Start serves s on a local listener. Callers close the returned server.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

// Hits returns how many requests matched route, e.g. "GET /payment/my-payment".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// FailNext makes the next n requests to route answer 500.
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = n
}

// SeedUser registers an account directly and returns it with its ID set.
func (s *Server) SeedUser(u session.User, password string) session.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Role == "" {
		u.Role = session.RoleUser
	}
	if u.CreatedAt == nil {
		now := time.Now().UTC().Truncate(time.Second)
		u.CreatedAt = &now
	}
	s.accounts[u.ID] = &account{user: u, password: password}
	s.emails[strings.ToLower(u.Email)] = u.ID
	return u
}

// User returns the stored account.
func (s *Server) User(id string) (session.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return session.User{}, false
	}
	return *a.user.Clone(), true
}

// DeleteUser removes an account; its tokens then fail with "User not found".
func (s *Server) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		delete(s.emails, strings.ToLower(a.user.Email))
		delete(s.accounts, id)
	}
}

// SetPaymentStatus records an administrator decision on a user's payment.
func (s *Server) SetPaymentStatus(userID string, status apiclient.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[userID]
	if !ok {
		return errors.New("no payment for user")
	}
	s.applyPaymentStatus(p, status, "")
	return nil
}

// PutFile stores a protected file under folder/name.
func (s *Server) PutFile(folder, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[folder+"/"+name] = data
}

// Token mints a token for userID.
func (s *Server) Token(userID string) string {
	return s.mint(userID, time.Now().Add(s.TokenTTL))
}

func (s *Server) mint(userID string, exp time.Time) string {
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString(s.secret)
	return tok
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// creditHoursFor is the fake's rule: one credit hour per 2500 PKR.
func creditHoursFor(amount decimal.Decimal) int {
	return int(amount.Div(apiclient.AmountStandard).IntPart())
}

// applyPaymentStatus updates p and its owner. Callers hold s.mu.
func (s *Server) applyPaymentStatus(p *apiclient.Payment, status apiclient.PaymentStatus, notes string) {
	now := time.Now().UTC().Truncate(time.Second)
	p.Status = status
	p.AdminNotes = notes
	p.UpdatedAt = &now
	if a, ok := s.accounts[p.User.ID]; ok {
		a.user.PaymentVerified = status == apiclient.PaymentVerified
		if status == apiclient.PaymentVerified {
			p.VerifiedAt = &now
			a.user.CreditHours += creditHoursFor(p.Amount)
			hours := a.user.CreditHours
			p.CreditHours = &hours
		}
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.track)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Put("/complete-profile", s.withUser(s.handleCompleteProfile))
		r.Get("/me", s.withUser(s.handleMe))
		r.Get("/users", s.withAdmin(s.handleUsers))
		r.Get("/users/{id}", s.withAdmin(s.handleUserDetails))
	})

	r.Route("/payment", func(r chi.Router) {
		r.Post("/create", s.withUser(s.handleCreatePayment))
		r.Get("/my-payment", s.withUser(s.handleMyPayment))
		r.Get("/all", s.withAdmin(s.handleAllPayments))
		r.Patch("/verify/{id}", s.withAdmin(s.handleVerifyPayment))
		r.Get("/{id}", s.withAdmin(s.handlePaymentByID))
	})

	r.Route("/scholarship", func(r chi.Router) {
		r.Post("/createScholarship", s.withPaidUser(s.handleCreateScholarship))
		r.Get("/getMyScholarships", s.withUser(s.handleMyScholarships))
		r.Get("/getAllScholarships", s.withAdmin(s.handleAllScholarships))
		r.Patch("/updateScholarshipStatus/{id}", s.withAdmin(s.handleScholarshipStatus))
		r.Get("/get/{id}", s.withUser(s.handleScholarshipByID))
		r.Get("/degree-levels", s.withUser(s.handleList("levels", func() []string { return s.distinctScholarship(func(o *apiclient.ScholarshipOpportunity) string { return o.DegreeLevel }) })))
		r.Get("/courses", s.withUser(s.handleList("courses", func() []string { return s.distinctScholarship(func(o *apiclient.ScholarshipOpportunity) string { return o.Course }) })))
		r.Get("/countries", s.withUser(s.handleList("countries", func() []string { return s.distinctScholarship(func(o *apiclient.ScholarshipOpportunity) string { return o.Country }) })))
		r.Post("/opportunities/create", s.withAdmin(s.handleCreateScholarshipOpp))
		r.Get("/opportunities", s.withAdmin(s.handleScholarshipOpps))
		r.Get("/opportunities/search", s.withUser(s.handleSearchScholarshipOpps))
		r.Put("/opportunities/{id}", s.withAdmin(s.handleUpdateScholarshipOpp))
		r.Delete("/opportunities/{id}", s.withAdmin(s.handleDeleteScholarshipOpp))
	})

	r.Route("/business", func(r chi.Router) {
		r.Post("/createGrant", s.withPaidUser(s.handleCreateGrant))
		r.Get("/getMyGrants", s.withUser(s.handleMyGrants))
		r.Get("/getAllGrants", s.withAdmin(s.handleAllGrants))
		r.Patch("/updateGrantStatus/{id}", s.withAdmin(s.handleGrantStatus))
		r.Get("/get/{id}", s.withUser(s.handleGrantByID))
		r.Post("/opportunities/create", s.withAdmin(s.handleCreateGrantOpp))
		r.Get("/opportunities", s.withAdmin(s.handleGrantOpps))
		r.Get("/opportunities/all", s.withUser(s.handleActiveGrantOpps))
		r.Put("/opportunities/{id}", s.withAdmin(s.handleUpdateGrantOpp))
		r.Delete("/opportunities/{id}", s.withAdmin(s.handleDeleteGrantOpp))
	})

	r.Route("/consultation", func(r chi.Router) {
		r.Post("/createConsultation", s.withPaidUser(s.handleCreateConsultation))
		r.Get("/categories", s.withUser(s.handleList("categories", func() []string { return ConsultationCategories })))
		r.Get("/getMyConsultations", s.withUser(s.handleMyConsultations))
		r.Get("/getAllConsultations", s.withAdmin(s.handleAllConsultations))
		r.Patch("/updateConsultationStatus/{id}", s.withAdmin(s.handleConsultationStatus))
		r.Get("/getById/{id}", s.withUser(s.handleConsultationByID))
	})

	r.Get("/api/files/{folder}/{filename}", s.withUser(s.handleFile))
	return r
}

// ConsultationCategories are the categories served by the fake.
var ConsultationCategories = []string{"Career Guidance", "Study Abroad", "Entrepreneurship"}

// ---------------------------------------------------------------------------
// Middleware and helpers
// ---------------------------------------------------------------------------

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		route := r.Method + " " + chi.RouteContext(r.Context()).RoutePattern()
		s.mu.Lock()
		s.hits[route]++
		s.mu.Unlock()
	})
}

func (s *Server) forcedFailure(r *http.Request) bool {
	route := r.Method + " " + chi.RouteContext(r.Context()).RoutePattern()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[route] > 0 {
		s.failures[route]--
		return true
	}
	return false
}

type authedHandler func(w http.ResponseWriter, r *http.Request, a *account)

func (s *Server) withUser(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.forcedFailure(r) {
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		a, ok := s.authenticate(w, r)
		if !ok {
			return
		}
		h(w, r, a)
	}
}

func (s *Server) withAdmin(h authedHandler) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, a *account) {
		if a.user.Role != session.RoleAdmin {
			writeMessage(w, http.StatusForbidden, "Access denied. Admins only.")
			return
		}
		h(w, r, a)
	})
}

func (s *Server) withPaidUser(h authedHandler) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, a *account) {
		if a.user.Role == session.RoleUser && !a.user.PaymentVerified {
			writeMessage(w, http.StatusForbidden, "Payment not verified")
			return
		}
		h(w, r, a)
	})
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*account, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, token failed")
		return nil, false
	}
	s.mu.Lock()
	a, ok := s.accounts[claims.Subject]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "User not found. Your account has been deleted.")
		return nil, false
	}
	return a, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}

func paginate[T any](items []T, page, limit int) ([]T, int) {
	total := (len(items) + limit - 1) / limit
	if total == 0 {
		total = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, total
	}
	end := min(start+limit, len(items))
	return items[start:end], total
}

func pageBody[T any](r *http.Request, items []T, key string) map[string]any {
	page, limit := pageParams(r)
	data, totalPages := paginate(items, page, limit)
	return map[string]any{
		"success":      true,
		key:            data,
		"totalPages":   totalPages,
		"totalRecords": len(items),
		"currentPage":  page,
	}
}

// storeUpload keeps an uploaded file and returns its stored path.
func (s *Server) storeUpload(folder string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s", newID()[:8], fh.Filename)
	s.mu.Lock()
	s.files[folder+"/"+name] = data
	s.mu.Unlock()
	return "/files/" + folder + "/" + name, nil
}

func (s *Server) formFile(r *http.Request, field, folder string) (session.FilePath, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	fhs := r.MultipartForm.File[field]
	if len(fhs) == 0 {
		return "", nil
	}
	p, err := s.storeUpload(folder, fhs[0])
	return session.FilePath(p), err
}

func (s *Server) formFiles(r *http.Request, field, folder string) ([]session.FilePath, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var out []session.FilePath
	for _, fh := range r.MultipartForm.File[field] {
		p, err := s.storeUpload(folder, fh)
		if err != nil {
			return nil, err
		}
		out = append(out, session.FilePath(p))
	}
	return out, nil
}

func now() *time.Time {
	t := time.Now().UTC().Truncate(time.Second)
	return &t
}

func userRef(a *account) apiclient.UserRef {
	return apiclient.UserRef{ID: a.user.ID, Value: a.user.Clone()}
}

func parseStatus(r *http.Request) (apiclient.ApplicationStatus, bool) {
	var body struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &body); err != nil {
		return "", false
	}
	st := apiclient.ApplicationStatus(body.Status)
	return st, st.Valid()
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	name, email, phone, password := r.FormValue("name"), r.FormValue("email"), r.FormValue("phone"), r.FormValue("password")
	if name == "" || email == "" || phone == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}
	role := session.Role(r.FormValue("role"))
	if role == "" {
		role = session.RoleUser
	}
	if role == session.RoleAdmin && r.FormValue("adminSecretKey") != s.AdminSecret {
		writeMessage(w, http.StatusForbidden, "Invalid admin secret key")
		return
	}
	if !role.Valid() {
		writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}
	s.mu.Lock()
	_, exists := s.emails[strings.ToLower(email)]
	s.mu.Unlock()
	if exists {
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	front, err := s.formFile(r, "cnicFront", "cnic")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid CNIC upload")
		return
	}
	back, err := s.formFile(r, "cnicBack", "cnic")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid CNIC upload")
		return
	}
	u := s.SeedUser(session.User{
		Name:      name,
		Email:     email,
		Phone:     phone,
		CNIC:      r.FormValue("CNIC"),
		Address:   r.FormValue("address"),
		Role:      role,
		CNICFront: front,
		CNICBack:  back,
	}, password)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    u,
		"token":   s.Token(u.ID),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body apiclient.LoginRequest
	if err := readJSON(r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	id, ok := s.emails[strings.ToLower(body.Email)]
	var a *account
	if ok {
		a = s.accounts[id]
	}
	var pending bool
	if a != nil {
		p := s.payments[a.user.ID]
		pending = p != nil && p.Status == apiclient.PaymentPending
	}
	s.mu.Unlock()
	if a == nil || a.password != body.Password {
		writeMessage(w, http.StatusBadRequest, "Invalid email or password")
		return
	}
	if s.BlockPendingLogin && pending {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"success":        false,
			"message":        "Your payment is pending verification",
			"paymentPending": true,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    a.user,
		"token":   s.Token(a.user.ID),
	})
}

func (s *Server) handleCompleteProfile(w http.ResponseWriter, r *http.Request, a *account) {
	var body apiclient.ProfileRequest
	if err := readJSON(r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body.Education) == 0 || len(body.Experience) == 0 {
		writeMessage(w, http.StatusBadRequest, "Education and experience are required")
		return
	}
	s.mu.Lock()
	a.user.Education = body.Education
	a.user.Experience = body.Experience
	a.user.ProfileCompleted = true
	u := *a.user.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile completed", "user": u})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	u := *a.user.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ *account) {
	search := strings.ToLower(r.URL.Query().Get("search"))
	s.mu.Lock()
	var users []session.User
	for _, a := range s.accounts {
		if search != "" && !strings.Contains(strings.ToLower(a.user.Name+" "+a.user.Email), search) {
			continue
		}
		users = append(users, *a.user.Clone())
	}
	s.mu.Unlock()
	sortUsers(users)
	writeJSON(w, http.StatusOK, pageBody(r, users, "data"))
}

func sortUsers(users []session.User) {
	for i := 1; i < len(users); i++ {
		for j := i; j > 0 && users[j].Email < users[j-1].Email; j-- {
			users[j], users[j-1] = users[j-1], users[j]
		}
	}
}

func (s *Server) handleUserDetails(w http.ResponseWriter, r *http.Request, _ *account) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	var d apiclient.UserDetails
	d.User = a.user.Clone()
	for _, sc := range s.scholarships {
		if sc.User.ID == id {
			d.Applications.Scholarships = append(d.Applications.Scholarships, *sc)
		}
	}
	for _, g := range s.grants {
		if g.User.ID == id {
			d.Applications.Grants = append(d.Applications.Grants, *g)
		}
	}
	for _, c := range s.consultations {
		if c.User.ID == id {
			d.Applications.Consultations = append(d.Applications.Consultations, *c)
		}
	}
	d.Applications.Payment = s.payments[id]
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// Payment
// ---------------------------------------------------------------------------

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request, a *account) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	amount, err := decimal.NewFromString(r.FormValue("amount"))
	if err != nil || !(amount.Equal(apiclient.AmountStandard) || amount.Equal(apiclient.AmountExtended)) {
		writeMessage(w, http.StatusBadRequest, "Amount must be 2500 or 5000")
		return
	}
	shot, err := s.formFile(r, "screenshot", "payments")
	if err != nil || shot == "" {
		writeMessage(w, http.StatusBadRequest, "Payment screenshot is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[a.user.ID]; ok && p.Status != apiclient.PaymentRejected {
		writeMessage(w, http.StatusBadRequest, "Payment already submitted")
		return
	}
	p := &apiclient.Payment{
		ID:         newID(),
		User:       apiclient.UserRef{ID: a.user.ID},
		Amount:     amount,
		Status:     apiclient.PaymentPending,
		Screenshot: shot,
		CreatedAt:  now(),
	}
	s.payments[a.user.ID] = p
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Payment submitted", "payment": p})
}

func (s *Server) handleMyPayment(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[a.user.ID]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"payment": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": p})
}

func (s *Server) handleAllPayments(w http.ResponseWriter, r *http.Request, _ *account) {
	status := r.URL.Query().Get("status")
	s.mu.Lock()
	var out []apiclient.Payment
	for uid, p := range s.payments {
		if status != "" && string(p.Status) != status {
			continue
		}
		cp := *p
		if a, ok := s.accounts[uid]; ok {
			cp.User = userRef(a)
		}
		out = append(out, cp)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageBody(r, out, "data"))
}

func (s *Server) findPayment(id string) *apiclient.Payment {
	for _, p := range s.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Server) handlePaymentByID(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findPayment(chi.URLParam(r, "id"))
	if p == nil {
		writeMessage(w, http.StatusNotFound, "Payment not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": p})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request, admin *account) {
	var body struct {
		Status     apiclient.PaymentStatus `json:"status"`
		AdminNotes string                  `json:"adminNotes"`
	}
	if err := readJSON(r, &body); err != nil || !body.Status.Terminal() {
		writeMessage(w, http.StatusBadRequest, "Status must be verified or rejected")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findPayment(chi.URLParam(r, "id"))
	if p == nil {
		writeMessage(w, http.StatusNotFound, "Payment not found")
		return
	}
	s.applyPaymentStatus(p, body.Status, body.AdminNotes)
	p.VerifiedBy = apiclient.UserRef{ID: admin.user.ID}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Payment " + string(body.Status), "payment": p})
}

// ---------------------------------------------------------------------------
// Scholarships
// ---------------------------------------------------------------------------

func (s *Server) handleCreateScholarship(w http.ResponseWriter, r *http.Request, a *account) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if r.FormValue("degreeLevel") == "" || r.FormValue("course") == "" {
		writeMessage(w, http.StatusBadRequest, "Degree level and course are required")
		return
	}
	passport, err := s.formFile(r, "passport", "scholarships")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	docs, err := s.formFiles(r, "documents", "scholarships")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	expDocs, err := s.formFiles(r, "experienceDocuments", "scholarships")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	app := &apiclient.ScholarshipApplication{
		ID:                  newID(),
		User:                apiclient.UserRef{ID: a.user.ID},
		DegreeLevel:         r.FormValue("degreeLevel"),
		Course:              r.FormValue("course"),
		Opportunity:         apiclient.Ref[apiclient.ScholarshipOpportunity]{ID: r.FormValue("opportunityId")},
		Passport:            passport,
		Documents:           docs,
		ExperienceDocuments: expDocs,
		Status:              apiclient.ApplicationPending,
		CreatedAt:           now(),
	}
	s.mu.Lock()
	s.scholarships = append(s.scholarships, app)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Scholarship submitted", "scholarship": app})
}

func (s *Server) handleMyScholarships(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	out := []apiclient.ScholarshipApplication{}
	for _, sc := range s.scholarships {
		if sc.User.ID == a.user.ID {
			out = append(out, *sc)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"applications": out})
}

func (s *Server) handleAllScholarships(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	out := make([]apiclient.ScholarshipApplication, 0, len(s.scholarships))
	for _, sc := range s.scholarships {
		cp := *sc
		if a, ok := s.accounts[sc.User.ID]; ok {
			cp.User = userRef(a)
		}
		out = append(out, cp)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageBody(r, out, "data"))
}

func (s *Server) findScholarship(id string) *apiclient.ScholarshipApplication {
	for _, sc := range s.scholarships {
		if sc.ID == id {
			return sc
		}
	}
	return nil
}

func (s *Server) handleScholarshipStatus(w http.ResponseWriter, r *http.Request, _ *account) {
	st, ok := parseStatus(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid status")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.findScholarship(chi.URLParam(r, "id"))
	if sc == nil {
		writeMessage(w, http.StatusNotFound, "Scholarship not found")
		return
	}
	sc.Status = st
	writeJSON(w, http.StatusOK, map[string]any{"message": "Status updated", "scholarship": sc})
}

func (s *Server) handleScholarshipByID(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.findScholarship(chi.URLParam(r, "id"))
	if sc == nil || (a.user.Role != session.RoleAdmin && sc.User.ID != a.user.ID) {
		writeMessage(w, http.StatusNotFound, "Scholarship not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scholarship": sc})
}

func (s *Server) distinctScholarship(field func(*apiclient.ScholarshipOpportunity) string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, o := range s.scholarshipOpps {
		v := field(o)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (s *Server) handleList(key string, values func() []string) authedHandler {
	return func(w http.ResponseWriter, _ *http.Request, _ *account) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, key: values()})
	}
}

func (s *Server) handleCreateScholarshipOpp(w http.ResponseWriter, r *http.Request, _ *account) {
	var o apiclient.ScholarshipOpportunity
	if err := readJSON(r, &o); err != nil || o.DegreeLevel == "" || o.Course == "" || o.Country == "" {
		writeMessage(w, http.StatusBadRequest, "Degree level, course and country are required")
		return
	}
	o.ID = newID()
	o.CreatedAt = now()
	s.mu.Lock()
	s.scholarshipOpps = append(s.scholarshipOpps, &o)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Opportunity created", "opportunity": o})
}

func (s *Server) handleScholarshipOpps(w http.ResponseWriter, r *http.Request, _ *account) {
	search := strings.ToLower(r.URL.Query().Get("search"))
	s.mu.Lock()
	out := []apiclient.ScholarshipOpportunity{}
	for _, o := range s.scholarshipOpps {
		if search != "" && !strings.Contains(strings.ToLower(o.Course+" "+o.Country+" "+o.DegreeLevel), search) {
			continue
		}
		out = append(out, *o)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageBody(r, out, "opportunities"))
}

func (s *Server) handleSearchScholarshipOpps(w http.ResponseWriter, r *http.Request, _ *account) {
	level, course := r.URL.Query().Get("degreeLevel"), r.URL.Query().Get("course")
	s.mu.Lock()
	out := []apiclient.ScholarshipOpportunity{}
	for _, o := range s.scholarshipOpps {
		if o.IsActive && strings.EqualFold(o.DegreeLevel, level) && strings.EqualFold(o.Course, course) {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "opportunities": out})
}

func (s *Server) handleUpdateScholarshipOpp(w http.ResponseWriter, r *http.Request, _ *account) {
	var in apiclient.ScholarshipOpportunity
	if err := readJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.scholarshipOpps {
		if o.ID == id {
			in.ID, in.CreatedAt = o.ID, o.CreatedAt
			*o = in
			writeJSON(w, http.StatusOK, map[string]any{"message": "Opportunity updated", "opportunity": o})
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Opportunity not found")
}

func (s *Server) handleDeleteScholarshipOpp(w http.ResponseWriter, r *http.Request, _ *account) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.scholarshipOpps {
		if o.ID == id {
			s.scholarshipOpps = append(s.scholarshipOpps[:i], s.scholarshipOpps[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"message": "Opportunity deleted"})
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Opportunity not found")
}

// ---------------------------------------------------------------------------
// Business grants
// ---------------------------------------------------------------------------

func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request, a *account) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if r.FormValue("title") == "" || r.FormValue("description") == "" {
		writeMessage(w, http.StatusBadRequest, "Title and description are required")
		return
	}
	proposal, err := s.formFile(r, "proposal", "businessGrants")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	g := &apiclient.GrantApplication{
		ID:          newID(),
		User:        apiclient.UserRef{ID: a.user.ID},
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Proposal:    proposal,
		Opportunity: apiclient.Ref[apiclient.GrantOpportunity]{ID: r.FormValue("opportunityId")},
		Status:      apiclient.ApplicationPending,
		CreatedAt:   now(),
	}
	s.mu.Lock()
	s.grants = append(s.grants, g)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Grant submitted", "grant": g})
}

func (s *Server) handleMyGrants(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	out := []apiclient.GrantApplication{}
	for _, g := range s.grants {
		if g.User.ID == a.user.ID {
			out = append(out, *g)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}

func (s *Server) handleAllGrants(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	out := make([]apiclient.GrantApplication, 0, len(s.grants))
	for _, g := range s.grants {
		cp := *g
		if a, ok := s.accounts[g.User.ID]; ok {
			cp.User = userRef(a)
		}
		out = append(out, cp)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageBody(r, out, "data"))
}

func (s *Server) findGrant(id string) *apiclient.GrantApplication {
	for _, g := range s.grants {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (s *Server) handleGrantStatus(w http.ResponseWriter, r *http.Request, _ *account) {
	st, ok := parseStatus(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid status")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.findGrant(chi.URLParam(r, "id"))
	if g == nil {
		writeMessage(w, http.StatusNotFound, "Grant not found")
		return
	}
	g.Status = st
	writeJSON(w, http.StatusOK, map[string]any{"message": "Status updated", "grant": g})
}

func (s *Server) handleGrantByID(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.findGrant(chi.URLParam(r, "id"))
	if g == nil || (a.user.Role != session.RoleAdmin && g.User.ID != a.user.ID) {
		writeMessage(w, http.StatusNotFound, "Grant not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grant": g})
}

func (s *Server) handleCreateGrantOpp(w http.ResponseWriter, r *http.Request, _ *account) {
	var o apiclient.GrantOpportunity
	if err := readJSON(r, &o); err != nil || o.City == "" {
		writeMessage(w, http.StatusBadRequest, "City is required")
		return
	}
	o.ID = newID()
	o.CreatedAt = now()
	s.mu.Lock()
	s.grantOpps = append(s.grantOpps, &o)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Opportunity created", "opportunity": o})
}

func (s *Server) handleGrantOpps(w http.ResponseWriter, r *http.Request, _ *account) {
	search := strings.ToLower(r.URL.Query().Get("search"))
	s.mu.Lock()
	out := []apiclient.GrantOpportunity{}
	for _, o := range s.grantOpps {
		if search != "" && !strings.Contains(strings.ToLower(o.City+" "+o.Description), search) {
			continue
		}
		out = append(out, *o)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageBody(r, out, "data"))
}

func (s *Server) handleActiveGrantOpps(w http.ResponseWriter, _ *http.Request, _ *account) {
	s.mu.Lock()
	out := []apiclient.GrantOpportunity{}
	for _, o := range s.grantOpps {
		if o.IsActive {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "opportunities": out})
}

func (s *Server) handleUpdateGrantOpp(w http.ResponseWriter, r *http.Request, _ *account) {
	var in apiclient.GrantOpportunity
	if err := readJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.grantOpps {
		if o.ID == id {
			in.ID, in.CreatedAt = o.ID, o.CreatedAt
			*o = in
			writeJSON(w, http.StatusOK, map[string]any{"message": "Opportunity updated", "opportunity": o})
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Opportunity not found")
}

func (s *Server) handleDeleteGrantOpp(w http.ResponseWriter, r *http.Request, _ *account) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.grantOpps {
		if o.ID == id {
			s.grantOpps = append(s.grantOpps[:i], s.grantOpps[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"message": "Opportunity deleted"})
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Opportunity not found")
}

// ---------------------------------------------------------------------------
// Consultations
// ---------------------------------------------------------------------------

func (s *Server) handleCreateConsultation(w http.ResponseWriter, r *http.Request, a *account) {
	var in apiclient.ConsultationRequest
	if err := readJSON(r, &in); err != nil || in.Category == "" || in.Description == "" {
		writeMessage(w, http.StatusBadRequest, "Category and description are required")
		return
	}
	c := &apiclient.Consultation{
		ID:          newID(),
		User:        apiclient.UserRef{ID: a.user.ID},
		Category:    in.Category,
		Description: in.Description,
		Status:      apiclient.ApplicationPending,
		CreatedAt:   now(),
	}
	s.mu.Lock()
	s.consultations = append(s.consultations, c)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Consultation submitted", "consultation": c})
}

func (s *Server) handleMyConsultations(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	out := []apiclient.Consultation{}
	for _, c := range s.consultations {
		if c.User.ID == a.user.ID {
			out = append(out, *c)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"consultations": out})
}

func (s *Server) handleAllConsultations(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	out := make([]apiclient.Consultation, 0, len(s.consultations))
	for _, c := range s.consultations {
		cp := *c
		if a, ok := s.accounts[c.User.ID]; ok {
			cp.User = userRef(a)
		}
		out = append(out, cp)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageBody(r, out, "data"))
}

func (s *Server) findConsultation(id string) *apiclient.Consultation {
	for _, c := range s.consultations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Server) handleConsultationStatus(w http.ResponseWriter, r *http.Request, _ *account) {
	st, ok := parseStatus(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid status")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findConsultation(chi.URLParam(r, "id"))
	if c == nil {
		writeMessage(w, http.StatusNotFound, "Consultation not found")
		return
	}
	c.Status = st
	writeJSON(w, http.StatusOK, map[string]any{"message": "Status updated", "consultation": c})
}

func (s *Server) handleConsultationByID(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findConsultation(chi.URLParam(r, "id"))
	if c == nil || (a.user.Role != session.RoleAdmin && c.User.ID != a.user.ID) {
		writeMessage(w, http.StatusNotFound, "Consultation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultation": c})
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request, _ *account) {
	key := chi.URLParam(r, "folder") + "/" + chi.URLParam(r, "filename")
	s.mu.Lock()
	data, ok := s.files[key]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}
