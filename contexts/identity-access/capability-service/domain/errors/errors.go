package errors

import "errors"

var (
	// ErrInvalidRequest marks input that fails structural validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrImmutableField marks an update that touches a field fixed at creation.
	ErrImmutableField = errors.New("field is immutable")
	// ErrCapabilityNotFound is returned when no catalog entry has the name.
	ErrCapabilityNotFound = errors.New("capability not found")
	// ErrCapabilityExists is returned when a catalog name is already taken.
	ErrCapabilityExists = errors.New("capability already exists")
	// ErrGrantNotFound is returned when no grant matches the id or name.
	ErrGrantNotFound = errors.New("grant not found")
	// ErrGrantExists is returned when a grant name is already taken.
	ErrGrantExists = errors.New("grant already exists")
	// ErrRankInvariant is returned when a requested rank would break the
	// dense 1..N numbering of a partition.
	ErrRankInvariant = errors.New("rank violates partition numbering")
	// ErrReferentialIntegrity is returned when removing a capability would
	// leave a grant with an empty allow-list.
	ErrReferentialIntegrity = errors.New("capability is still referenced by grants")
	// ErrUnknownCapability is returned when a grant references a capability
	// name that is not in the catalog.
	ErrUnknownCapability = errors.New("grant references unknown capability")
	// ErrGroupNotFound is returned when a required group fails the directory
	// existence check.
	ErrGroupNotFound = errors.New("required group not found")
	// ErrWriteConflict is returned when a concurrent writer won the race for
	// a partition rank; the request can be retried.
	ErrWriteConflict = errors.New("write conflict, retry the request")
)
