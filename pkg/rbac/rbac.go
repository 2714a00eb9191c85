// Package rbac provides the coarse role model for the roadops API.
// Roles are deliberately a small fixed set; transition logic depends only on
// the injected CapabilityChecker so a real policy engine can be substituted
// without touching the lifecycle engine.
package rbac

import (
	"net/http"
	"strings"
)

// Role represents an actor's access level.
type Role string

const (
	// RoleViewer has read-only access (browse events, view edits and views).
	RoleViewer Role = "viewer"

	// RoleOperator runs day-to-day work: starts and ends events, moves work
	// orders, submits and peer-reviews evidence.
	RoleOperator Role = "operator"

	// RoleAuthority is the government-authority actor class: closes events
	// and makes final accept/reject decisions on evidence.
	RoleAuthority Role = "authority"
)

// Capability names a single guarded operation.
type Capability string

const (
	CapTransitionEvent     Capability = "transition_event"
	CapCloseEvent          Capability = "close_event"
	CapRecordDecision      Capability = "record_decision"
	CapTransitionWorkOrder Capability = "transition_workorder"
	CapPeerReview          Capability = "peer_review"
	CapAuthorityDecision   Capability = "authority_decision"
	CapManageAssets        Capability = "manage_assets"
)

// CapabilityChecker reports whether a role holds a capability. The engine
// only ever calls this function; it never compares role names directly.
type CapabilityChecker func(role Role, cap Capability) bool

// defaultCapabilities is the built-in role/capability matrix.
var defaultCapabilities = map[Role]map[Capability]bool{
	RoleOperator: {
		CapTransitionEvent:     true,
		CapRecordDecision:      true,
		CapTransitionWorkOrder: true,
		CapPeerReview:          true,
		CapManageAssets:        true,
	},
	RoleAuthority: {
		CapTransitionEvent:     true,
		CapCloseEvent:          true,
		CapRecordDecision:      true,
		CapTransitionWorkOrder: true,
		CapPeerReview:          true,
		CapAuthorityDecision:   true,
	},
}

// DefaultChecker is the CapabilityChecker backed by the built-in matrix.
// Viewers hold no mutating capabilities.
func DefaultChecker(role Role, cap Capability) bool {
	caps, ok := defaultCapabilities[role]
	if !ok {
		return false
	}
	return caps[cap]
}

// RoleHeader is the HTTP header used by the default extractor.
const RoleHeader = "X-User-Role"

// PrincipalHeader carries the acting user's principal name.
const PrincipalHeader = "X-User-Principal"

// RoleExtractor is a function that extracts a Role from an HTTP request.
type RoleExtractor func(r *http.Request) Role

// DefaultRoleExtractor reads the role from the X-User-Role header.
// Returns RoleViewer if the header is missing or unrecognized.
func DefaultRoleExtractor(r *http.Request) Role {
	header := strings.TrimSpace(strings.ToLower(r.Header.Get(RoleHeader)))
	switch header {
	case string(RoleOperator):
		return RoleOperator
	case string(RoleAuthority):
		return RoleAuthority
	default:
		return RoleViewer
	}
}

// Actor extracts the acting principal from the request headers,
// falling back to the role name and then "system".
func Actor(r *http.Request) string {
	if principal := r.Header.Get(PrincipalHeader); principal != "" {
		return principal
	}
	if role := r.Header.Get(RoleHeader); role != "" {
		return role
	}
	return "system"
}

// RequireCapability returns middleware that rejects requests whose role
// lacks the given capability with 403 Forbidden.
func RequireCapability(cap Capability, extractor RoleExtractor, checker CapabilityChecker) func(http.Handler) http.Handler {
	if extractor == nil {
		extractor = DefaultRoleExtractor
	}
	if checker == nil {
		checker = DefaultChecker
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker(extractor(r), cap) {
				http.Error(w, `{"error":"forbidden","message":"insufficient permissions"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
