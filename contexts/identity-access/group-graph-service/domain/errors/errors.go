package errors

import "errors"

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrGroupNotFound         = errors.New("group not found")
	ErrGroupExists           = errors.New("group already exists")
	ErrPersonNotFound        = errors.New("person not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserExists            = errors.New("user already exists")
	ErrImmutableField        = errors.New("field is immutable")
	ErrCycleViolation        = errors.New("membership would create a cycle")
	ErrDuplicateEdge         = errors.New("edge already exists")
	ErrDuplicatePath         = errors.New("member is already reachable through another path")
	ErrEdgeNotFound          = errors.New("edge not found")
	ErrInactiveOrExpired     = errors.New("group is deactivated or expired")
	ErrPrimaryGroupMember    = errors.New("primary groups cannot contain members")
	ErrPrimaryGroupModerated = errors.New("primary groups cannot be moderated")
	ErrPrimaryGroupLifecycle = errors.New("primary groups follow their principal lifecycle")
	ErrExpiryOutOfRange      = errors.New("user expiry cannot exceed person expiry")
	ErrWriteConflict         = errors.New("write conflict, retry the request")
)
