package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
	"bastion/contexts/identity-access/group-graph-service/domain/services"
	"bastion/contexts/identity-access/group-graph-service/ports"
)

// Service exposes the group graph operations and the directory reads other
// modules resolve principals through.
type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

type CreateGroupInput struct {
	Name        string
	Type        entities.GroupType
	Description string
	ExpiryDate  *time.Time
	Metadata    map[string]any
}

type RegisterPersonInput struct {
	FullName   string
	ExpiryDate *time.Time
	Metadata   map[string]any
}

type RegisterUserInput struct {
	UserName   string
	PersonID   string
	ExpiryDate *time.Time
	Metadata   map[string]any
}

func (s Service) CreateGroup(ctx context.Context, actor string, input CreateGroupInput) (entities.Group, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || strings.TrimSpace(actor) == "" {
		return entities.Group{}, domainerrors.ErrInvalidRequest
	}
	groupType := input.Type
	if groupType == "" {
		groupType = entities.GroupTypeGeneric
	}
	if groupType != entities.GroupTypeGeneric && groupType != entities.GroupTypeWeb {
		return entities.Group{}, domainerrors.ErrPrimaryGroupLifecycle
	}

	groupID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Group{}, err
	}
	group := entities.Group{
		GroupID:     groupID,
		Name:        name,
		Class:       entities.GroupClassSecondary,
		Type:        groupType,
		Description: input.Description,
		Activated:   true,
		ExpiryDate:  normalizeExpiry(input.ExpiryDate),
		Metadata:    input.Metadata,
	}
	if err := s.Repo.CreateGroup(ctx, actor, group); err != nil {
		return entities.Group{}, err
	}

	ResolveLogger(s.Logger).Info("group created",
		"event", "group_graph_group_created",
		"module", "identity-access/group-graph-service",
		"layer", "application",
		"group_name", name,
		"group_type", string(groupType),
		"identity", actor,
	)
	return group, nil
}

func (s Service) GetGroup(ctx context.Context, name string) (entities.Group, error) {
	return s.Repo.GetGroup(ctx, name)
}

func (s Service) ListGroups(ctx context.Context) ([]entities.Group, error) {
	return s.Repo.ListGroups(ctx)
}

func (s Service) UpdateGroup(
	ctx context.Context,
	actor string,
	name string,
	update ports.GroupUpdate,
) (entities.Group, error) {
	if strings.TrimSpace(actor) == "" {
		return entities.Group{}, domainerrors.ErrInvalidRequest
	}
	update.ExpiryDate = normalizeExpiry(update.ExpiryDate)
	return s.Repo.UpdateGroup(ctx, actor, name, update)
}

func (s Service) DeleteGroup(ctx context.Context, actor string, name string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	return s.Repo.DeleteGroup(ctx, actor, name)
}

// AddMember links a member into a group. The member reference may be a
// group name, a person id or a user name; principals resolve to their
// primary group.
func (s Service) AddMember(ctx context.Context, actor string, group string, member string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	resolved, err := s.resolveMemberGroup(ctx, member)
	if err != nil {
		return err
	}
	if err := s.Repo.AddMember(ctx, actor, group, resolved); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("group member added",
		"event", "group_graph_member_added",
		"module", "identity-access/group-graph-service",
		"layer", "application",
		"group_name", group,
		"member_group", resolved,
		"identity", actor,
	)
	return nil
}

func (s Service) RemoveMember(ctx context.Context, actor string, group string, member string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	resolved, err := s.resolveMemberGroup(ctx, member)
	if err != nil {
		return err
	}
	return s.Repo.RemoveMember(ctx, actor, group, resolved)
}

func (s Service) AddModerator(ctx context.Context, actor string, group string, moderator string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	resolved, err := s.resolveMemberGroup(ctx, moderator)
	if err != nil {
		return err
	}
	return s.Repo.AddModerator(ctx, actor, group, resolved)
}

func (s Service) RemoveModerator(ctx context.Context, actor string, group string, moderator string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	resolved, err := s.resolveMemberGroup(ctx, moderator)
	if err != nil {
		return err
	}
	return s.Repo.RemoveModerator(ctx, actor, group, resolved)
}

// GroupMembers reports direct, transitive and ultimate members of a group.
func (s Service) GroupMembers(ctx context.Context, group string) (ports.MemberReport, error) {
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return ports.MemberReport{}, err
	}
	if _, ok := snapshot.Groups[group]; !ok {
		return ports.MemberReport{}, domainerrors.ErrGroupNotFound
	}
	return ports.MemberReport{
		GroupName:         group,
		DirectMembers:     services.DirectMembers(snapshot, group),
		TransitiveMembers: services.DescendantEdges(snapshot, group),
		UltimateMembers:   services.UltimateMembers(snapshot, group),
	}, nil
}

func (s Service) GroupModerators(ctx context.Context, group string) ([]string, error) {
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Groups[group]; !ok {
		return nil, domainerrors.ErrGroupNotFound
	}
	return services.GroupModerators(snapshot, group), nil
}

// GroupMemberships reports every group the given group belongs to, with
// the parent group's lifecycle state.
func (s Service) GroupMemberships(ctx context.Context, group string) ([]ports.GroupAffiliation, error) {
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Groups[group]; !ok {
		return nil, domainerrors.ErrGroupNotFound
	}
	return affiliations(snapshot, group), nil
}

func (s Service) RegisterPerson(
	ctx context.Context,
	actor string,
	input RegisterPersonInput,
) (entities.Person, error) {
	if strings.TrimSpace(input.FullName) == "" || strings.TrimSpace(actor) == "" {
		return entities.Person{}, domainerrors.ErrInvalidRequest
	}
	personID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Person{}, err
	}
	groupID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Person{}, err
	}

	expiry := normalizeExpiry(input.ExpiryDate)
	person := entities.Person{
		PersonID:    personID,
		FullName:    strings.TrimSpace(input.FullName),
		Activated:   true,
		ExpiryDate:  expiry,
		PersonGroup: personID + "-group",
		Metadata:    input.Metadata,
	}
	primaryGroup := entities.Group{
		GroupID:       groupID,
		Name:          person.PersonGroup,
		Class:         entities.GroupClassPrimary,
		Type:          entities.GroupTypePerson,
		PrimaryMember: personID,
		Activated:     true,
		ExpiryDate:    expiry,
	}
	if err := s.Repo.CreatePerson(ctx, actor, person, primaryGroup); err != nil {
		return entities.Person{}, err
	}

	ResolveLogger(s.Logger).Info("person registered",
		"event", "group_graph_person_registered",
		"module", "identity-access/group-graph-service",
		"layer", "application",
		"person_id", personID,
		"identity", actor,
	)
	return person, nil
}

func (s Service) GetPerson(ctx context.Context, personID string) (entities.Person, error) {
	return s.Repo.GetPerson(ctx, personID)
}

func (s Service) ListPersons(ctx context.Context) ([]entities.Person, error) {
	return s.Repo.ListPersons(ctx)
}

func (s Service) UpdatePerson(
	ctx context.Context,
	actor string,
	personID string,
	update ports.PersonUpdate,
) (entities.Person, error) {
	if strings.TrimSpace(actor) == "" {
		return entities.Person{}, domainerrors.ErrInvalidRequest
	}
	update.ExpiryDate = normalizeExpiry(update.ExpiryDate)
	return s.Repo.UpdatePerson(ctx, actor, personID, update)
}

func (s Service) DeletePerson(ctx context.Context, actor string, personID string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	return s.Repo.DeletePerson(ctx, actor, personID)
}

func (s Service) RegisterUser(
	ctx context.Context,
	actor string,
	input RegisterUserInput,
) (entities.User, error) {
	userName := strings.TrimSpace(input.UserName)
	if userName == "" || strings.TrimSpace(input.PersonID) == "" || strings.TrimSpace(actor) == "" {
		return entities.User{}, domainerrors.ErrInvalidRequest
	}
	groupID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.User{}, err
	}

	user := entities.User{
		UserName:   userName,
		PersonID:   input.PersonID,
		Activated:  true,
		ExpiryDate: normalizeExpiry(input.ExpiryDate),
		UserGroup:  userName + "-group",
		Metadata:   input.Metadata,
	}
	primaryGroup := entities.Group{
		GroupID:       groupID,
		Name:          user.UserGroup,
		Class:         entities.GroupClassPrimary,
		Type:          entities.GroupTypeUser,
		PrimaryMember: userName,
		Activated:     true,
	}
	if err := s.Repo.CreateUser(ctx, actor, user, primaryGroup); err != nil {
		return entities.User{}, err
	}
	created, err := s.Repo.GetUser(ctx, userName)
	if err != nil {
		return entities.User{}, err
	}

	ResolveLogger(s.Logger).Info("user registered",
		"event", "group_graph_user_registered",
		"module", "identity-access/group-graph-service",
		"layer", "application",
		"user_name", userName,
		"person_id", input.PersonID,
		"identity", actor,
	)
	return created, nil
}

func (s Service) GetUser(ctx context.Context, userName string) (entities.User, error) {
	return s.Repo.GetUser(ctx, userName)
}

func (s Service) UpdateUser(
	ctx context.Context,
	actor string,
	userName string,
	update ports.UserUpdate,
) (entities.User, error) {
	if strings.TrimSpace(actor) == "" {
		return entities.User{}, domainerrors.ErrInvalidRequest
	}
	update.ExpiryDate = normalizeExpiry(update.ExpiryDate)
	return s.Repo.UpdateUser(ctx, actor, userName, update)
}

func (s Service) DeleteUser(ctx context.Context, actor string, userName string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	return s.Repo.DeleteUser(ctx, actor, userName)
}

// PersonGroups reports the person group plus every group it is a member of.
func (s Service) PersonGroups(ctx context.Context, personID string) ([]ports.GroupAffiliation, error) {
	person, err := s.Repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return affiliations(snapshot, person.PersonGroup), nil
}

func (s Service) UserGroups(ctx context.Context, userName string) ([]ports.GroupAffiliation, error) {
	user, err := s.Repo.GetUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return affiliations(snapshot, user.UserGroup), nil
}

// UserModerators reports the groups moderated by any group in the user's
// membership chain.
func (s Service) UserModerators(ctx context.Context, userName string) ([]string, error) {
	user, err := s.Repo.GetUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	chain := append(services.AscendantGroups(snapshot, user.UserGroup), user.UserGroup)
	return services.ModeratedBy(snapshot, chain), nil
}

// Directory reads consumed by the capability module.

func (s Service) GroupExists(ctx context.Context, name string) (bool, error) {
	_, err := s.Repo.GetGroup(ctx, name)
	if err != nil {
		if errors.Is(err, domainerrors.ErrGroupNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GroupNameContains reports whether any group name contains the fragment.
func (s Service) GroupNameContains(ctx context.Context, fragment string) (bool, error) {
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	for name := range snapshot.Groups {
		if strings.Contains(name, fragment) {
			return true, nil
		}
	}
	return false, nil
}

func (s Service) AscendantGroupNames(ctx context.Context, group string) ([]string, error) {
	snapshot, err := s.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Groups[group]; !ok {
		return nil, domainerrors.ErrGroupNotFound
	}
	return services.AscendantGroups(snapshot, group), nil
}

func (s Service) PersonGroup(ctx context.Context, personID string) (string, error) {
	person, err := s.Repo.GetPerson(ctx, personID)
	if err != nil {
		return "", err
	}
	return person.PersonGroup, nil
}

func (s Service) UserGroup(ctx context.Context, userName string) (string, error) {
	user, err := s.Repo.GetUser(ctx, userName)
	if err != nil {
		return "", err
	}
	return user.UserGroup, nil
}

func (s Service) UserNamesForPerson(ctx context.Context, personID string) ([]string, error) {
	users, err := s.Repo.ListUsersByPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.UserName)
	}
	return names, nil
}

func (s Service) resolveMemberGroup(ctx context.Context, member string) (string, error) {
	member = strings.TrimSpace(member)
	if member == "" {
		return "", domainerrors.ErrInvalidRequest
	}
	if _, err := s.Repo.GetGroup(ctx, member); err == nil {
		return member, nil
	} else if !errors.Is(err, domainerrors.ErrGroupNotFound) {
		return "", err
	}
	if person, err := s.Repo.GetPerson(ctx, member); err == nil {
		return person.PersonGroup, nil
	} else if !errors.Is(err, domainerrors.ErrPersonNotFound) {
		return "", err
	}
	if user, err := s.Repo.GetUser(ctx, member); err == nil {
		return user.UserGroup, nil
	} else if !errors.Is(err, domainerrors.ErrUserNotFound) {
		return "", err
	}
	return "", domainerrors.ErrGroupNotFound
}

func affiliations(snapshot services.Snapshot, group string) []ports.GroupAffiliation {
	items := make([]ports.GroupAffiliation, 0)
	for _, edge := range services.AscendantEdges(snapshot, group) {
		parent := snapshot.Groups[edge.GroupName]
		items = append(items, ports.GroupAffiliation{
			MemberName:      edge.MemberName,
			GroupName:       edge.GroupName,
			GroupActivated:  parent.Activated,
			GroupExpiryDate: parent.ExpiryDate,
		})
	}
	return items
}

func normalizeExpiry(expiry *time.Time) *time.Time {
	if expiry == nil {
		return nil
	}
	value := expiry.UTC()
	return &value
}
