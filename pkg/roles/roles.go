package roles

// Role is an actor's permission level, carried in the JWT.
type Role string

const (
	Operator   Role = "operator"
	Supervisor Role = "supervisor"
	Admin      Role = "admin"
)

type HierarchyLevel int

const (
	OperatorLevel   HierarchyLevel = 1
	SupervisorLevel HierarchyLevel = 2
	AdminLevel      HierarchyLevel = 3
)

func (r Role) GetHierarchyLevel() HierarchyLevel {
	switch r {
	case Operator:
		return OperatorLevel
	case Supervisor:
		return SupervisorLevel
	case Admin:
		return AdminLevel
	default:
		return OperatorLevel
	}
}

func (r Role) HasPermission(requiredRole Role) bool {
	return r.GetHierarchyLevel() >= requiredRole.GetHierarchyLevel()
}

func (r Role) IsValid() bool {
	switch r {
	case Operator, Supervisor, Admin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// Actor identifies who performs an engine operation.
type Actor struct {
	ID   int
	Role Role
}

// Override kinds the engine checks with the policy.
const (
	OverrideQAStatus        = "qa_status"
	OverrideOverConsumption = "over_consumption"
)

// OverridePolicy decides whether an actor may bypass a guard (QA status on
// reserve, over-consumption on work-order completion). The authorization
// boundary lives outside the engine, so it is injected, not hard-coded.
type OverridePolicy interface {
	Allow(kind string, actor Actor) bool
}

// RolePolicy permits overrides to supervisors and above.
type RolePolicy struct{}

func (RolePolicy) Allow(kind string, actor Actor) bool {
	switch kind {
	case OverrideQAStatus, OverrideOverConsumption:
		return actor.Role.HasPermission(Supervisor)
	default:
		return false
	}
}
