package model

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleAccountant Role = "accountant"
)

// AssignableRoles are the roles tasks may be assigned to.
var AssignableRoles = []Role{RoleManager, RoleAccountant}

// User mirrors the auth-service user, keyed by its public id.
type User struct {
	PublicID string `json:"public_id"`
	Role     Role   `json:"role"`
	Email    string `json:"email"`
}

type TaskStatus string

const (
	TaskOpen   TaskStatus = "open"
	TaskClosed TaskStatus = "closed"
)

type Task struct {
	PublicID    string     `json:"public_id"`
	UserID      string     `json:"user_id"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	JiraID      string     `json:"jira_id,omitempty"`
}

// TaskFilter narrows a task listing; empty fields match everything.
type TaskFilter struct {
	Status TaskStatus
	UserID string
}
