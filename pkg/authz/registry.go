package authz

// Roles supplied by the identity collaborator. Only admin, vice_president
// and ic_coordinator may create/edit/delete engine records; members read.
const (
	RoleAdmin         = "admin"
	RoleVicePresident = "vice_president"
	RoleICCoordinator = "ic_coordinator"
	RoleMember        = "member"
	RoleAnonymous     = "anonymous"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const (
	ObjectTaxonomyNodes    = "taxonomy.nodes"
	ObjectTaxonomyActions  = "taxonomy.actions"
	ObjectActionPlans      = "actionplan.plans"
	ObjectLifecycleRecords = "lifecycle.records"
	ObjectRollups          = "rollup.aggregates"
)

// WriterRoles lists every role allowed to mutate lifecycle records; the
// policy file grants taxonomy node writes to admin only.
var WriterRoles = []string{RoleAdmin, RoleVicePresident, RoleICCoordinator}

func IsWriterRole(roleSlug string) bool {
	for _, r := range WriterRoles {
		if r == roleSlug {
			return true
		}
	}
	return false
}
