package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleStaff, RoleAdmin:
		return r, true
	}
	return "", false
}

// Capability is a permission derived from a role.
type Capability string

const (
	// CapBook covers creating and managing one's own bookings.
	CapBook Capability = "book"
	// CapHost covers listing and managing one's own rooms.
	CapHost Capability = "host"
	// CapReview covers writing and editing one's own reviews.
	CapReview      Capability = "review"
	CapModerate    Capability = "moderate"
	CapManageUsers Capability = "manage_users"
)

var roleCapabilities = map[Role][]Capability{
	RoleUser:  {CapBook, CapHost, CapReview},
	RoleStaff: {CapModerate},
	RoleAdmin: {CapModerate, CapManageUsers},
}

// Can is the single capability check. A superuser holds the admin set and
// loses the regular-user set.
func (r Role) Can(c Capability, superuser bool) bool {
	role := r
	if superuser {
		role = RoleAdmin
	}
	for _, have := range roleCapabilities[role] {
		if have == c {
			return true
		}
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsSuperuser  bool      `json:"is_superuser"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName is what booking history records as the actor.
func (u *User) DisplayName() string {
	if n := u.FullName(); n != "" {
		return n
	}
	return u.Email
}

func (u *User) IsAdmin() bool { return u.Role.Can(CapManageUsers, u.IsSuperuser) }
func (u *User) IsStaff() bool { return u.Role.Can(CapModerate, u.IsSuperuser) }

func (u *User) Identity() Identity {
	return Identity{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.DisplayName(),
		Role:      u.Role,
		Superuser: u.IsSuperuser,
		Active:    u.IsActive,
	}
}

// Identity is the acting principal of an operation. The zero value is anonymous.
type Identity struct {
	UserID    int64
	Email     string
	Name      string
	Role      Role
	Superuser bool
	Active    bool
}

func Anonymous() Identity { return Identity{} }

func (i Identity) Authenticated() bool { return i.UserID != 0 }

func (i Identity) Can(c Capability) bool {
	return i.Authenticated() && i.Active && i.Role.Can(c, i.Superuser)
}

// ActorName is the label written into audit records.
func (i Identity) ActorName() string {
	if strings.TrimSpace(i.Name) != "" {
		return i.Name
	}
	return i.Email
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *RegisterRequest) Validate() error {
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return NewValidationError("email", "a valid email is required")
	}
	if len(r.Password) < 8 {
		return NewValidationError("password", "must be at least 8 characters")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}
