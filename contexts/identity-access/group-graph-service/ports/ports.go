package ports

import (
	"context"
	"time"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	"bastion/contexts/identity-access/group-graph-service/domain/services"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// GroupUpdate carries the mutable group fields. Nil pointers leave the
// field untouched; ClearExpiry removes the expiry date.
type GroupUpdate struct {
	Activated   *bool
	Description *string
	ExpiryDate  *time.Time
	ClearExpiry bool
	Metadata    map[string]any
}

type PersonUpdate struct {
	FullName    *string
	Activated   *bool
	ExpiryDate  *time.Time
	ClearExpiry bool
	Metadata    map[string]any
}

type UserUpdate struct {
	Activated   *bool
	ExpiryDate  *time.Time
	ClearExpiry bool
	Metadata    map[string]any
}

// MemberReport is the direct/transitive/ultimate view of one group.
type MemberReport struct {
	GroupName         string
	DirectMembers     []string
	TransitiveMembers []services.MemberEdge
	UltimateMembers   []string
}

// GroupAffiliation is one upward membership step annotated with the parent
// group's lifecycle state.
type GroupAffiliation struct {
	MemberName      string
	GroupName       string
	GroupActivated  bool
	GroupExpiryDate *time.Time
}

// Repository is the transactional boundary of the group graph. Every
// mutating operation validates and writes as one atomic unit and captures
// audit records for the acting identity.
type Repository interface {
	CreateGroup(ctx context.Context, actor string, group entities.Group) error
	GetGroup(ctx context.Context, name string) (entities.Group, error)
	ListGroups(ctx context.Context) ([]entities.Group, error)
	UpdateGroup(ctx context.Context, actor string, name string, update GroupUpdate) (entities.Group, error)
	DeleteGroup(ctx context.Context, actor string, name string) error

	AddMember(ctx context.Context, actor string, group string, member string) error
	RemoveMember(ctx context.Context, actor string, group string, member string) error
	AddModerator(ctx context.Context, actor string, group string, moderator string) error
	RemoveModerator(ctx context.Context, actor string, group string, moderator string) error

	CreatePerson(ctx context.Context, actor string, person entities.Person, primaryGroup entities.Group) error
	GetPerson(ctx context.Context, personID string) (entities.Person, error)
	ListPersons(ctx context.Context) ([]entities.Person, error)
	UpdatePerson(ctx context.Context, actor string, personID string, update PersonUpdate) (entities.Person, error)
	DeletePerson(ctx context.Context, actor string, personID string) error

	CreateUser(ctx context.Context, actor string, user entities.User, primaryGroup entities.Group) error
	GetUser(ctx context.Context, userName string) (entities.User, error)
	ListUsersByPerson(ctx context.Context, personID string) ([]entities.User, error)
	UpdateUser(ctx context.Context, actor string, userName string, update UserUpdate) (entities.User, error)
	DeleteUser(ctx context.Context, actor string, userName string) error

	Snapshot(ctx context.Context) (services.Snapshot, error)
}
