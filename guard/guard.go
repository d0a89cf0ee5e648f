// Package guard decides whether a session may render a portal area.
//
// Every function here is pure and total: any session, including a malformed
// one, maps to a Decision, and ambiguous state never maps to Allow.
package guard

import (
	"slices"

	"github.com/skwf/portal/session"
)

// Outcome is the kind of Decision.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
	// OutcomePending means the session has not been hydrated yet; the caller
	// waits and evaluates again.
	OutcomePending Outcome = "pending"
)

// Reason explains a Decision. It is stable and suitable as a metric label.
type Reason string

const (
	ReasonGranted           Reason = "granted"
	ReasonNotHydrated       Reason = "not_hydrated"
	ReasonNotLoggedIn       Reason = "not_logged_in"
	ReasonInvalidSession    Reason = "invalid_session"
	ReasonRoleNotAllowed    Reason = "role_not_allowed"
	ReasonPaymentUnverified Reason = "payment_unverified"
	ReasonProfileIncomplete Reason = "profile_incomplete"
	ReasonProfileCompleted  Reason = "profile_completed"
	ReasonAdminArea         Reason = "admin_area"
	ReasonUnknownArea       Reason = "unknown_area"
)

// Decision is the result of evaluating a session against an area.
type Decision struct {
	Outcome Outcome
	Target  Area
	Reason  Reason
}

func allow() Decision {
	return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted}
}

func pending() Decision {
	return Decision{Outcome: OutcomePending, Reason: ReasonNotHydrated}
}

func redirect(to Area, why Reason) Decision {
	return Decision{Outcome: OutcomeRedirect, Target: to, Reason: why}
}

// Allowed reports whether d grants access.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Redirected reports whether d sends the caller elsewhere.
func (d Decision) Redirected() bool { return d.Outcome == OutcomeRedirect }

// Pending reports whether d is waiting on hydration.
func (d Decision) Pending() bool { return d.Outcome == OutcomePending }

// authenticate applies the checks shared by every protected area: hydration,
// login, and a consistent user/token pair with a known role.
func authenticate(s session.Session) (Decision, bool) {
	if !s.IsHydrated {
		return pending(), false
	}
	if !s.IsLoggedIn {
		return redirect(AreaLogin, ReasonNotLoggedIn), false
	}
	if s.User == nil || s.Token == "" {
		return redirect(AreaLogin, ReasonInvalidSession), false
	}
	if !s.User.Role.Valid() {
		return redirect(AreaUnauthorized, ReasonRoleNotAllowed), false
	}
	return Decision{}, true
}

// Evaluate is the general gate for an area open to the allowed roles. An
// empty allowed set admits any known role. End-users are additionally held
// at the payment area until their payment is verified; administrators are
// never gated on profile or payment.
func Evaluate(s session.Session, allowed ...session.Role) Decision {
	if d, ok := authenticate(s); !ok {
		return d
	}
	role := s.User.Role
	if len(allowed) > 0 && !slices.Contains(allowed, role) {
		return redirect(AreaUnauthorized, ReasonRoleNotAllowed)
	}
	if slices.Contains(allowed, session.RoleUser) && role == session.RoleUser && !s.User.PaymentVerified {
		return redirect(AreaPayment, ReasonPaymentUnverified)
	}
	return allow()
}

// EvaluateProfileArea gates the profile completion form. Administrators go
// to their dashboard; end-users who already completed their profile move on
// to payment.
func EvaluateProfileArea(s session.Session) Decision {
	if d, ok := authenticate(s); !ok {
		return d
	}
	if s.User.Role == session.RoleAdmin {
		return redirect(AreaAdminDashboard, ReasonAdminArea)
	}
	if s.User.ProfileCompleted {
		return redirect(AreaPayment, ReasonProfileCompleted)
	}
	return allow()
}

// EvaluatePaymentArea gates the payment submission area. Only end-users may
// enter, and only once their profile is complete.
func EvaluatePaymentArea(s session.Session) Decision {
	if d, ok := authenticate(s); !ok {
		return d
	}
	if s.User.Role != session.RoleUser {
		return redirect(AreaUnauthorized, ReasonRoleNotAllowed)
	}
	if !s.User.ProfileCompleted {
		return redirect(AreaProfile, ReasonProfileIncomplete)
	}
	return allow()
}

// Check evaluates s against a registered area. Unknown areas are refused.
func Check(s session.Session, area Area) Decision {
	info, ok := Lookup(area)
	if !ok {
		return redirect(AreaUnauthorized, ReasonUnknownArea)
	}
	switch info.Layer {
	case LayerPublic:
		return allow()
	case LayerProfile:
		return EvaluateProfileArea(s)
	case LayerPayment:
		return EvaluatePaymentArea(s)
	default:
		return Evaluate(s, info.Roles...)
	}
}

// maxHops bounds redirect chains in Resolve.
const maxHops = 8

// Resolution is where a navigation ends up after following redirects.
type Resolution struct {
	// Area is the area that will render, or the requested area when pending.
	Area Area
	// Decision is the decision for Area.
	Decision Decision
	// Hops lists the areas redirected through, starting with the request.
	Hops []Area
}

// Resolve follows redirects from area until an area allows s or
// evaluation is pending.
func Resolve(s session.Session, area Area) Resolution {
	hops := []Area{area}
	current := area
	for range maxHops {
		d := Check(s, current)
		if !d.Redirected() {
			return Resolution{Area: current, Decision: d, Hops: hops}
		}
		current = d.Target
		hops = append(hops, current)
	}
	return Resolution{
		Area:     AreaUnauthorized,
		Decision: allow(),
		Hops:     append(hops, AreaUnauthorized),
	}
}

// Landing is the area a session should land on after login or signup.
func Landing(s session.Session) Area {
	if s.IsLoggedIn && s.User != nil && s.User.Role == session.RoleAdmin {
		return Resolve(s, AreaAdminDashboard).Area
	}
	return Resolve(s, AreaUserDashboard).Area
}
