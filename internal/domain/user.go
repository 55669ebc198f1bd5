package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	FullName  string     `json:"full_name" db:"full_name"`
	Role      string     `json:"role" db:"role"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

type UserRole string

const (
	RoleMember        UserRole = "member"
	RoleAdmin         UserRole = "admin"
	RoleTransport     UserRole = "transport"
	RoleSupply        UserRole = "supply"
	RoleIT            UserRole = "it"
	RoleCommunication UserRole = "communication"
)

// Sectors reviewed by a dedicated role. The sector name doubles as the
// reviewer role name.
var Sectors = []string{string(RoleSupply), string(RoleIT), string(RoleCommunication)}

func (r UserRole) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleTransport, RoleSupply, RoleIT, RoleCommunication:
		return true
	default:
		return false
	}
}

func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

func (u *User) HasRole(requiredRole string) bool {
	if u.IsAdmin() {
		return true
	}
	return u.Role == requiredRole
}

// ReviewedSectors lists the request sectors this user may decide on. A nil
// slice with ok=true means every sector.
func (u *User) ReviewedSectors() (sectors []string, ok bool) {
	if u.IsAdmin() {
		return nil, true
	}
	for _, s := range Sectors {
		if u.Role == s {
			return []string{s}, true
		}
	}
	return nil, false
}

func (u *User) ReviewsTransport() bool {
	return u.Role == string(RoleTransport) || u.IsAdmin()
}

// ReviewerRoleFor returns the role that reviews requests of the given sector.
func ReviewerRoleFor(sector string) UserRole {
	return UserRole(sector)
}
