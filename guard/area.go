package guard

import (
	"strings"

	"github.com/skwf/portal/session"
)

// Area names a renderable part of the portal.
type Area string

const (
	AreaLogin        Area = "login"
	AreaRegister     Area = "register"
	AreaUnauthorized Area = "unauthorized"
	AreaProfile      Area = "profile"
	AreaPayment      Area = "payment"

	AreaUserDashboard    Area = "user"
	AreaUserScholarships Area = "user/scholarships"
	AreaUserGrants       Area = "user/grants"
	AreaUserConsultation Area = "user/consultation"

	AreaAdminDashboard    Area = "admin"
	AreaAdminPayments     Area = "admin/payments"
	AreaAdminScholarships Area = "admin/scholarships"
	AreaAdminGrants       Area = "admin/grants"
	AreaAdminConsultation Area = "admin/consultation"
	AreaAdminUsers        Area = "admin/manage-users"
)

// Layer selects which evaluation applies to an area.
type Layer int

const (
	// LayerPublic areas are always allowed.
	LayerPublic Layer = iota
	// LayerRole areas use Evaluate with the area's roles.
	LayerRole
	// LayerProfile is the profile completion area.
	LayerProfile
	// LayerPayment is the payment submission area.
	LayerPayment
)

// AreaInfo describes a registered area.
type AreaInfo struct {
	Area  Area
	Path  string
	Layer Layer
	Roles []session.Role
}

var (
	userOnly  = []session.Role{session.RoleUser}
	adminOnly = []session.Role{session.RoleAdmin}
)

var registry = []AreaInfo{
	{Area: AreaLogin, Layer: LayerPublic},
	{Area: AreaRegister, Layer: LayerPublic},
	{Area: AreaUnauthorized, Layer: LayerPublic},
	{Area: AreaProfile, Layer: LayerProfile},
	{Area: AreaPayment, Layer: LayerPayment},
	{Area: AreaUserDashboard, Layer: LayerRole, Roles: userOnly},
	{Area: AreaUserScholarships, Layer: LayerRole, Roles: userOnly},
	{Area: AreaUserGrants, Layer: LayerRole, Roles: userOnly},
	{Area: AreaUserConsultation, Layer: LayerRole, Roles: userOnly},
	{Area: AreaAdminDashboard, Layer: LayerRole, Roles: adminOnly},
	{Area: AreaAdminPayments, Layer: LayerRole, Roles: adminOnly},
	{Area: AreaAdminScholarships, Layer: LayerRole, Roles: adminOnly},
	{Area: AreaAdminGrants, Layer: LayerRole, Roles: adminOnly},
	{Area: AreaAdminConsultation, Layer: LayerRole, Roles: adminOnly},
	{Area: AreaAdminUsers, Layer: LayerRole, Roles: adminOnly},
}

var byArea = func() map[Area]AreaInfo {
	m := make(map[Area]AreaInfo, len(registry))
	for i := range registry {
		registry[i].Path = "/" + string(registry[i].Area)
		m[registry[i].Area] = registry[i]
	}
	return m
}()

// Lookup returns the registration for a.
func Lookup(a Area) (AreaInfo, bool) {
	info, ok := byArea[a]
	return info, ok
}

// Areas returns every registered area in a stable order.
func Areas() []AreaInfo {
	out := make([]AreaInfo, len(registry))
	copy(out, registry)
	return out
}

// ParseArea accepts an area name or its path ("/user/grants", "user/grants/").
func ParseArea(s string) (Area, bool) {
	a := Area(strings.Trim(strings.TrimSpace(s), "/"))
	_, ok := byArea[a]
	return a, ok
}

// Path returns the area's path, or "" for an unknown area.
func (a Area) Path() string {
	return byArea[a].Path
}

func (a Area) String() string { return string(a) }
