package domain

import "time"

// Role distinguishes creators, who may upload, from plain consumers.
type Role string

const (
	RoleCreator  Role = "CREATOR"
	RoleConsumer Role = "CONSUMER"
)

// ParseRole maps free-form input onto a Role, defaulting to consumer.
func ParseRole(raw string) Role {
	if Role(raw) == RoleCreator {
		return RoleCreator
	}
	return RoleConsumer
}

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Actor identifies the authenticated caller of a write operation.
type Actor struct {
	UserID   string
	Username string
	Role     Role
}

// IsCreator reports whether the actor holds the creator role.
func (a Actor) IsCreator() bool {
	return a.Role == RoleCreator
}
