package auth

import "errors"

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("admin privileges required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

// Principal is the authenticated caller of an operation. It is resolved
// once per request and handed to every service call.
type Principal struct {
	UserID   int64
	Username string
	Admin    bool
}

// Authorize reports whether p may act with the given role. A nil principal
// is unauthenticated.
func Authorize(p *Principal, need Role) error {
	if p == nil || p.UserID == 0 {
		return ErrUnauthenticated
	}
	if need == RoleAdmin && !p.Admin {
		return ErrForbidden
	}
	return nil
}
