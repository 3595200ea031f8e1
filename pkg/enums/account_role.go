package enums

import "fmt"

// AccountRole identifies who is acting on a cart.
type AccountRole string

const (
	AccountRoleCustomer AccountRole = "customer"
	AccountRoleStaff    AccountRole = "staff"
)

var validAccountRoles = []AccountRole{
	AccountRoleCustomer,
	AccountRoleStaff,
}

// String implements fmt.Stringer.
func (r AccountRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AccountRole.
func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	for _, candidate := range validAccountRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}
