package identity

import "time"

// Permission represents a single named capability granted to the user within
// their tenant (e.g. "invoices.read").
type Permission string

// User is the profile snapshot returned by the auth backend on login or
// refresh. It is immutable once stored; a new snapshot replaces it wholesale.
type User struct {
	ID        string    `json:"id,omitempty"`         // Unique identifier for the user
	Email     string    `json:"email,omitempty"`      // User's email address
	FirstName string    `json:"first_name,omitempty"` // First name of the user
	LastName  string    `json:"last_name,omitempty"`  // Last name of the user
	LastLogin time.Time `json:"last_login,omitempty"` // Last time the user logged in
}

// Tenant represents the organization the session is scoped to.
type Tenant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

// Identity is the triple associated with an authenticated session: who the
// user is, which tenant they belong to, and what they may do there. It is
// written as one logical block and read back as one logical block; a partial
// Identity is never a valid session.
type Identity struct {
	User        *User        `json:"user,omitempty"`
	Tenant      *Tenant      `json:"tenant,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Complete reports whether the identity carries both a user and a tenant.
// Permissions may legitimately be empty, so they do not factor in.
func (id *Identity) Complete() bool {
	return id != nil && id.User != nil && id.Tenant != nil
}

// HasPermission reports whether the identity grants the named permission.
func (id *Identity) HasPermission(p Permission) bool {
	if id == nil {
		return false
	}
	for _, have := range id.Permissions {
		if have == p {
			return true
		}
	}
	return false
}
