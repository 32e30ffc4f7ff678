package authz

const (
	RoleSales      = 10
	RoleOperations = 20
	RoleAudit      = 30
	RoleManagement = 40
	RoleAdmin      = 50
)

func IsReadOnly(roleID int) bool {
	return roleID == RoleAudit
}

// IntegrationManagers may read and change the WhatsApp integration.
var IntegrationManagers = []int{RoleManagement, RoleAdmin}
