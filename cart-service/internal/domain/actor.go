package domain

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller taken from the bearer token.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
