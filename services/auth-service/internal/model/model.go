package model

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleAccountant Role = "accountant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAccountant:
		return true
	}
	return false
}

// User is identified by its store id inside this service and by PublicID
// everywhere else.
type User struct {
	ID       string `json:"id"`
	PublicID string `json:"public_id"`
	Role     Role   `json:"role"`
	Email    string `json:"email"`
}

// Auth links a credential to a user. BeakShape never leaves the service.
type Auth struct {
	UserID    string
	BeakShape string
}
