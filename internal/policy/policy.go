// Package policy is the standalone authorization decision table. It is pure
// and side-effect free so callers can be tested against it in isolation;
// every mutating entry point must consult it before touching the store.
package policy

import "errors"

type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleMember    Role = "member"
	RoleAdmin     Role = "admin"
)

type Operation string

const (
	OpRead    Operation = "read"
	OpList    Operation = "list"
	OpSearch  Operation = "search"
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpReindex Operation = "reindex"
)

// ErrNotAuthorized is a policy denial. It is surfaced to the caller and
// never retried.
var ErrNotAuthorized = errors.New("not authorized")

// ParseRole normalizes an externally supplied role string. Anything
// unrecognized degrades to anonymous rather than failing the request.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleMember:
		return RoleMember
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleAnonymous
	}
}

// Authorize decides whether role may perform op. Reads are open to every
// role, mutations and reindexing are admin-only.
func Authorize(role Role, op Operation) error {
	switch op {
	case OpRead, OpList, OpSearch:
		return nil
	case OpCreate, OpUpdate, OpDelete, OpReindex:
		if role == RoleAdmin {
			return nil
		}
		return ErrNotAuthorized
	default:
		return ErrNotAuthorized
	}
}
