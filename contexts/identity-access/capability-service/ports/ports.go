// Package ports declares the driven-side contracts the capability service
// depends on: the catalog/grant repository, the group directory it consults
// for existence checks and resolution, and clock/id providers.
package ports

import (
	"context"
	"time"

	"bastion/contexts/identity-access/capability-service/domain/entities"
)

// Clock abstracts time so rank and window checks stay testable.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for capabilities and grants.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// SyncStats reports the outcome of a full catalog replacement.
type SyncStats struct {
	Created int
	Updated int
	Deleted int
}

// GrantUpdate carries the mutable grant fields. Nil pointers leave a field
// untouched; the Clear flags reset optional fields to absent. Name,
// namespace, HTTP method and rank are fixed (rank moves go through
// SetGrantRank).
type GrantUpdate struct {
	NamesAllowed        []string
	Hostnames           []string
	URIPattern          *string
	RequiredGroups      []string
	StartDate           *time.Time
	ClearStartDate      bool
	EndDate             *time.Time
	ClearEndDate        bool
	MaxNumUsages        *int
	ClearMaxNumUsages   bool
	GroupExistenceCheck *bool
	Metadata            map[string]any
}

// Repository persists the capability catalog and the ranked grants. Every
// mutation appends audit records in the same transaction, and rank moves are
// applied atomically so a partition never exposes a gap or duplicate.
type Repository interface {
	SyncCapabilities(ctx context.Context, actor string, capabilities []entities.Capability) (SyncStats, error)
	GetCapability(ctx context.Context, name string) (entities.Capability, error)
	ListCapabilities(ctx context.Context) ([]entities.Capability, error)
	DeleteCapability(ctx context.Context, actor string, name string) error

	CreateGrant(ctx context.Context, actor string, grant entities.Grant, rankRequested *int) (entities.Grant, error)
	GetGrant(ctx context.Context, ref string) (entities.Grant, error)
	ListGrants(ctx context.Context) ([]entities.Grant, error)
	ListGrantsByPartition(ctx context.Context, namespace, httpMethod string) ([]entities.Grant, error)
	UpdateGrant(ctx context.Context, actor string, ref string, update GrantUpdate) (entities.Grant, error)
	SetGrantRank(ctx context.Context, actor string, ref string, newRank int) (entities.Grant, error)
	AddGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error)
	RemoveGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error)
	DeleteGrant(ctx context.Context, actor string, ref string) error
}

// Directory is the slice of the group graph the capability service needs:
// existence checks for required groups and chain resolution for principals.
type Directory interface {
	GroupExists(ctx context.Context, name string) (bool, error)
	GroupNameContains(ctx context.Context, fragment string) (bool, error)
	AscendantGroupNames(ctx context.Context, name string) ([]string, error)
	PersonGroup(ctx context.Context, personID string) (string, error)
	UserGroup(ctx context.Context, userName string) (string, error)
	UserNamesForPerson(ctx context.Context, personID string) ([]string, error)
}
