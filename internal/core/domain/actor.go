package domain

// ActorRole identifies who is requesting a trade transition. The system role
// is a first-class identity used for deadline-driven transitions so that the
// audit trail and the authorization checks treat it uniformly with the
// buyer, seller and arbiter roles.
type ActorRole int

const (
	RoleBuyer ActorRole = iota
	RoleSeller
	RoleSystem
	RoleArbiter
)

func (r ActorRole) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	case RoleSystem:
		return "system"
	case RoleArbiter:
		return "arbiter"
	default:
		return "unknown"
	}
}

// ParseActorRole returns the role matching the given string representation.
func ParseActorRole(s string) (ActorRole, bool) {
	switch s {
	case "buyer":
		return RoleBuyer, true
	case "seller":
		return RoleSeller, true
	case "system":
		return RoleSystem, true
	case "arbiter":
		return RoleArbiter, true
	default:
		return 0, false
	}
}

// Actor is the identity attached to every transition request.
type Actor struct {
	Id   string
	Role ActorRole
}

// SystemActor is the pseudo-identity used by the deadline scheduler.
var SystemActor = Actor{Id: "system", Role: RoleSystem}
