package session

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Role is the account role as reported by the remote API.
type Role string

const (
	// RoleUser is an end-user going through the paid program flow.
	RoleUser Role = "user"
	// RoleAdmin is an administrator. Administrators bypass profile and payment gating.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Education is one entry of a user's education history.
type Education struct {
	Institute string `json:"institute" validate:"required"`
	Degree    string `json:"degree" validate:"required"`
	CGPA      string `json:"cgpa,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Experience is one entry of a user's work history.
type Experience struct {
	Institute string `json:"institute" validate:"required"`
	Role      string `json:"role" validate:"required"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// FilePath is a reference to an uploaded document. The API reports it either
// as a bare path string or as an object carrying the path.
type FilePath string

func (p *FilePath) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = FilePath(s)
		return nil
	}
	var obj struct {
		URL      string `json:"url"`
		FilePath string `json:"filePath"`
		Path     string `json:"path"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.FilePath != "":
		*p = FilePath(obj.FilePath)
	case obj.URL != "":
		*p = FilePath(obj.URL)
	default:
		*p = FilePath(obj.Path)
	}
	return nil
}

// User is the account record held by the session.
//
// Fields the portal does not interpret are kept in Extra so that a user
// fetched from the API and stored wholesale round-trips without loss.
type User struct {
	ID               string       `json:"_id"`
	Name             string       `json:"name,omitempty"`
	Email            string       `json:"email,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	CNIC             string       `json:"CNIC,omitempty"`
	Address          string       `json:"address,omitempty"`
	Role             Role         `json:"role"`
	ProfileCompleted bool         `json:"profileCompleted"`
	PaymentVerified  bool         `json:"paymentVerified"`
	CreditHours      int          `json:"creditHours"`
	Education        []Education  `json:"education,omitempty"`
	Experience       []Experience `json:"experience,omitempty"`
	CNICFront        FilePath     `json:"cnicFront,omitempty"`
	CNICBack         FilePath     `json:"cnicBack,omitempty"`
	CreatedAt        *time.Time   `json:"createdAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownUserFields = []string{
	"_id", "name", "email", "phone", "CNIC", "address", "role",
	"profileCompleted", "paymentVerified", "creditHours",
	"education", "experience", "cnicFront", "cnicBack", "createdAt",
}

type userJSON User

func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var decoded userJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	// Older accounts carry chancesLeft instead of creditHours.
	if _, ok := raw["creditHours"]; !ok {
		if legacy, ok := raw["chancesLeft"]; ok {
			var n int
			if err := json.Unmarshal(legacy, &n); err == nil {
				decoded.CreditHours = n
			}
		}
	}
	for _, k := range knownUserFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		decoded.Extra = raw
	}
	*u = User(decoded)
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(userJSON(u))
	if err != nil || len(u.Extra) == 0 {
		return data, err
	}
	merged := maps.Clone(u.Extra)
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	maps.Copy(merged, known)
	return json.Marshal(merged)
}

// Clone returns a deep copy of u. A nil user clones to nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Education = slices.Clone(u.Education)
	c.Experience = slices.Clone(u.Experience)
	if u.CreatedAt != nil {
		t := *u.CreatedAt
		c.CreatedAt = &t
	}
	if u.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = slices.Clone(v)
		}
	}
	return &c
}

// Session is a point-in-time view of the session state. Values returned by
// the Store are deep copies and may be kept or modified freely.
type Session struct {
	User       *User  `json:"user"`
	Token      string `json:"token,omitempty"`
	IsLoggedIn bool   `json:"isLoggedIn"`
	IsHydrated bool   `json:"isHydrated"`
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.User = s.User.Clone()
	return s
}

// Role returns the role of the session's user, or "" when there is none.
func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// UserID returns the ID of the session's user, or "" when there is none.
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Valid reports whether the logged-in flag agrees with the presence of both
// a user and a token.
func (s Session) Valid() bool {
	return s.IsLoggedIn == (s.User != nil && s.Token != "")
}
