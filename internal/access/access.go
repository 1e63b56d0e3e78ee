package access

import "errors"

type Role string

const (
	RoleAdvisor Role = "advisor"
	RoleManager Role = "manager"
)

var (
	ErrUnauthenticated = errors.New("access: not authenticated")
	ErrNotOwner        = errors.New("access: not the owner")
)

// Identity is the already-validated acting user for one request.
type Identity struct {
	ID   int64
	Name string
	Role Role
}

// Authorize allows the call only when identity is present and owns the resource.
func Authorize(identity *Identity, ownerID int64) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if identity.ID != ownerID {
		return ErrNotOwner
	}
	return nil
}

// Require rejects a nil identity. List operations use it before scoping by owner.
func Require(identity *Identity) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	return nil
}

func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleAdvisor, RoleManager:
		return Role(role)
	default:
		return RoleAdvisor
	}
}
