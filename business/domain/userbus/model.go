package userbus

import (
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/password"
	"github.com/lodgehub/lodgehub/business/types/phone"
	"github.com/lodgehub/lodgehub/business/types/role"
)

// User represents information about an individual user. Every user belongs
// to exactly one tenant; cross-tenant reach comes from the session's
// hierarchy context, never from the user record.
type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         name.Name
	Email        mail.Address
	Role         role.Role
	PasswordHash []byte
	Phone        phone.Null
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser contains information needed to create a new user.
type NewUser struct {
	TenantID uuid.UUID
	Name     name.Name
	Email    mail.Address
	Phone    phone.Null
	Role     role.Role
	Password password.Password
}

// UpdateUser contains information needed to update a user.
type UpdateUser struct {
	Name     *name.Name
	Email    *mail.Address
	Role     *role.Role
	Phone    *phone.Null
	Password *password.Password
	Enabled  *bool
}
