package auth

import "time"

// User is an authenticated account. Identity itself is provisioned by
// the external identity provider; this package only consumes it.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name,omitempty"`
	IsPlatformAdmin bool       `json:"is_platform_admin"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// Organization is a tenant boundary
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the explicit (user, organization) pair permission
// decisions are made for. Either field may be empty: an anonymous or
// org-less context is valid and simply has no permissions.
type Identity struct {
	UserID        string
	OrgID         string
	PlatformAdmin bool
}

// IsComplete reports whether both the user and the organization are known
func (id Identity) IsComplete() bool {
	return id.UserID != "" && id.OrgID != ""
}

// AuthContext carries the authenticated caller through a request
type AuthContext struct {
	User         *User         `json:"user,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
}

// Identity derives the identity pair from the request context. Missing
// user or organization yields the corresponding empty field.
func (c *AuthContext) Identity() Identity {
	var id Identity
	if c == nil {
		return id
	}
	if c.User != nil {
		id.UserID = c.User.ID
		id.PlatformAdmin = c.User.IsPlatformAdmin
	}
	if c.Organization != nil {
		id.OrgID = c.Organization.ID
	}
	return id
}
