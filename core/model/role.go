package model

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleOperator   Role = "operator"
	RoleMaintainer Role = "maintainer"
	RolePauser     Role = "pauser"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleMaintainer, RolePauser:
		return true
	}
	return false
}
