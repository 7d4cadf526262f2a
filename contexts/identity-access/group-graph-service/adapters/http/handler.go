package httpadapter

import (
	"context"
	"log/slog"

	"bastion/contexts/identity-access/group-graph-service/application"
	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
	"bastion/contexts/identity-access/group-graph-service/ports"
	httptransport "bastion/contexts/identity-access/group-graph-service/transport/http"
)

// Handler maps HTTP DTOs to application calls.
type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateGroupHandler(
	ctx context.Context,
	actor string,
	request httptransport.CreateGroupRequest,
) (httptransport.GroupResponse, error) {
	group, err := h.Service.CreateGroup(ctx, actor, application.CreateGroupInput{
		Name:        request.GroupName,
		Type:        entities.GroupType(request.GroupType),
		Description: request.Description,
		ExpiryDate:  request.ExpiryDate,
		Metadata:    request.Metadata,
	})
	if err != nil {
		return httptransport.GroupResponse{}, err
	}
	return toGroupDTO(group), nil
}

func (h Handler) GetGroupHandler(ctx context.Context, name string) (httptransport.GroupResponse, error) {
	group, err := h.Service.GetGroup(ctx, name)
	if err != nil {
		return httptransport.GroupResponse{}, err
	}
	return toGroupDTO(group), nil
}

func (h Handler) ListGroupsHandler(ctx context.Context) (httptransport.ListGroupsResponse, error) {
	groups, err := h.Service.ListGroups(ctx)
	if err != nil {
		return httptransport.ListGroupsResponse{}, err
	}
	items := make([]httptransport.GroupResponse, 0, len(groups))
	for _, group := range groups {
		items = append(items, toGroupDTO(group))
	}
	return httptransport.ListGroupsResponse{Groups: items}, nil
}

func (h Handler) UpdateGroupHandler(
	ctx context.Context,
	actor string,
	name string,
	request httptransport.UpdateGroupRequest,
) (httptransport.GroupResponse, error) {
	if request.GroupName != nil || request.GroupClass != nil ||
		request.GroupType != nil || request.PrimaryMember != nil {
		return httptransport.GroupResponse{}, domainerrors.ErrImmutableField
	}
	group, err := h.Service.UpdateGroup(ctx, actor, name, ports.GroupUpdate{
		Activated:   request.Activated,
		Description: request.Description,
		ExpiryDate:  request.ExpiryDate,
		ClearExpiry: request.ClearExpiry,
		Metadata:    request.Metadata,
	})
	if err != nil {
		return httptransport.GroupResponse{}, err
	}
	return toGroupDTO(group), nil
}

func (h Handler) DeleteGroupHandler(ctx context.Context, actor string, name string) error {
	return h.Service.DeleteGroup(ctx, actor, name)
}

func (h Handler) AddMemberHandler(
	ctx context.Context,
	actor string,
	group string,
	request httptransport.AddMemberRequest,
) error {
	return h.Service.AddMember(ctx, actor, group, request.Member)
}

func (h Handler) RemoveMemberHandler(ctx context.Context, actor string, group string, member string) error {
	return h.Service.RemoveMember(ctx, actor, group, member)
}

func (h Handler) AddModeratorHandler(
	ctx context.Context,
	actor string,
	group string,
	request httptransport.AddModeratorRequest,
) error {
	return h.Service.AddModerator(ctx, actor, group, request.Moderator)
}

func (h Handler) RemoveModeratorHandler(ctx context.Context, actor string, group string, moderator string) error {
	return h.Service.RemoveModerator(ctx, actor, group, moderator)
}

func (h Handler) GroupMembersHandler(ctx context.Context, group string) (httptransport.MemberReportResponse, error) {
	report, err := h.Service.GroupMembers(ctx, group)
	if err != nil {
		return httptransport.MemberReportResponse{}, err
	}
	edges := make([]httptransport.MemberEdgeDTO, 0, len(report.TransitiveMembers))
	for _, edge := range report.TransitiveMembers {
		edges = append(edges, httptransport.MemberEdgeDTO{
			GroupName:     edge.GroupName,
			MemberName:    edge.MemberName,
			MemberClass:   string(edge.Class),
			PrimaryMember: edge.PrimaryMember,
		})
	}
	return httptransport.MemberReportResponse{
		GroupName:         report.GroupName,
		DirectMembers:     report.DirectMembers,
		TransitiveMembers: edges,
		UltimateMembers:   report.UltimateMembers,
	}, nil
}

func (h Handler) GroupModeratorsHandler(ctx context.Context, group string) (httptransport.ModeratorsResponse, error) {
	moderators, err := h.Service.GroupModerators(ctx, group)
	if err != nil {
		return httptransport.ModeratorsResponse{}, err
	}
	return httptransport.ModeratorsResponse{GroupName: group, Moderators: moderators}, nil
}

func (h Handler) GroupMembershipsHandler(ctx context.Context, group string) (httptransport.MembershipsResponse, error) {
	memberships, err := h.Service.GroupMemberships(ctx, group)
	if err != nil {
		return httptransport.MembershipsResponse{}, err
	}
	return toMembershipsResponse(memberships), nil
}

func (h Handler) RegisterPersonHandler(
	ctx context.Context,
	actor string,
	request httptransport.RegisterPersonRequest,
) (httptransport.PersonResponse, error) {
	person, err := h.Service.RegisterPerson(ctx, actor, application.RegisterPersonInput{
		FullName:   request.FullName,
		ExpiryDate: request.ExpiryDate,
		Metadata:   request.Metadata,
	})
	if err != nil {
		return httptransport.PersonResponse{}, err
	}
	return toPersonDTO(person), nil
}

func (h Handler) GetPersonHandler(ctx context.Context, personID string) (httptransport.PersonResponse, error) {
	person, err := h.Service.GetPerson(ctx, personID)
	if err != nil {
		return httptransport.PersonResponse{}, err
	}
	return toPersonDTO(person), nil
}

func (h Handler) ListPersonsHandler(ctx context.Context) (httptransport.ListPersonsResponse, error) {
	persons, err := h.Service.ListPersons(ctx)
	if err != nil {
		return httptransport.ListPersonsResponse{}, err
	}
	items := make([]httptransport.PersonResponse, 0, len(persons))
	for _, person := range persons {
		items = append(items, toPersonDTO(person))
	}
	return httptransport.ListPersonsResponse{Persons: items}, nil
}

func (h Handler) UpdatePersonHandler(
	ctx context.Context,
	actor string,
	personID string,
	request httptransport.UpdatePersonRequest,
) (httptransport.PersonResponse, error) {
	if request.PersonID != nil {
		return httptransport.PersonResponse{}, domainerrors.ErrImmutableField
	}
	person, err := h.Service.UpdatePerson(ctx, actor, personID, ports.PersonUpdate{
		FullName:    request.FullName,
		Activated:   request.Activated,
		ExpiryDate:  request.ExpiryDate,
		ClearExpiry: request.ClearExpiry,
		Metadata:    request.Metadata,
	})
	if err != nil {
		return httptransport.PersonResponse{}, err
	}
	return toPersonDTO(person), nil
}

func (h Handler) DeletePersonHandler(ctx context.Context, actor string, personID string) error {
	return h.Service.DeletePerson(ctx, actor, personID)
}

func (h Handler) RegisterUserHandler(
	ctx context.Context,
	actor string,
	request httptransport.RegisterUserRequest,
) (httptransport.UserResponse, error) {
	user, err := h.Service.RegisterUser(ctx, actor, application.RegisterUserInput{
		UserName:   request.UserName,
		PersonID:   request.PersonID,
		ExpiryDate: request.ExpiryDate,
		Metadata:   request.Metadata,
	})
	if err != nil {
		return httptransport.UserResponse{}, err
	}
	return toUserDTO(user), nil
}

func (h Handler) GetUserHandler(ctx context.Context, userName string) (httptransport.UserResponse, error) {
	user, err := h.Service.GetUser(ctx, userName)
	if err != nil {
		return httptransport.UserResponse{}, err
	}
	return toUserDTO(user), nil
}

func (h Handler) ListPersonUsersHandler(ctx context.Context, personID string) (httptransport.ListUsersResponse, error) {
	if _, err := h.Service.GetPerson(ctx, personID); err != nil {
		return httptransport.ListUsersResponse{}, err
	}
	names, err := h.Service.UserNamesForPerson(ctx, personID)
	if err != nil {
		return httptransport.ListUsersResponse{}, err
	}
	items := make([]httptransport.UserResponse, 0, len(names))
	for _, name := range names {
		user, err := h.Service.GetUser(ctx, name)
		if err != nil {
			return httptransport.ListUsersResponse{}, err
		}
		items = append(items, toUserDTO(user))
	}
	return httptransport.ListUsersResponse{Users: items}, nil
}

func (h Handler) UpdateUserHandler(
	ctx context.Context,
	actor string,
	userName string,
	request httptransport.UpdateUserRequest,
) (httptransport.UserResponse, error) {
	if request.UserName != nil || request.PersonID != nil {
		return httptransport.UserResponse{}, domainerrors.ErrImmutableField
	}
	user, err := h.Service.UpdateUser(ctx, actor, userName, ports.UserUpdate{
		Activated:   request.Activated,
		ExpiryDate:  request.ExpiryDate,
		ClearExpiry: request.ClearExpiry,
		Metadata:    request.Metadata,
	})
	if err != nil {
		return httptransport.UserResponse{}, err
	}
	return toUserDTO(user), nil
}

func (h Handler) DeleteUserHandler(ctx context.Context, actor string, userName string) error {
	return h.Service.DeleteUser(ctx, actor, userName)
}

func (h Handler) PersonGroupsHandler(ctx context.Context, personID string) (httptransport.MembershipsResponse, error) {
	memberships, err := h.Service.PersonGroups(ctx, personID)
	if err != nil {
		return httptransport.MembershipsResponse{}, err
	}
	return toMembershipsResponse(memberships), nil
}

func (h Handler) UserGroupsHandler(ctx context.Context, userName string) (httptransport.MembershipsResponse, error) {
	memberships, err := h.Service.UserGroups(ctx, userName)
	if err != nil {
		return httptransport.MembershipsResponse{}, err
	}
	return toMembershipsResponse(memberships), nil
}

func (h Handler) UserModeratorsHandler(ctx context.Context, userName string) (httptransport.ModeratedGroupsResponse, error) {
	groups, err := h.Service.UserModerators(ctx, userName)
	if err != nil {
		return httptransport.ModeratedGroupsResponse{}, err
	}
	return httptransport.ModeratedGroupsResponse{Groups: groups}, nil
}

func toGroupDTO(group entities.Group) httptransport.GroupResponse {
	return httptransport.GroupResponse{
		GroupID:       group.GroupID,
		GroupName:     group.Name,
		GroupClass:    string(group.Class),
		GroupType:     string(group.Type),
		PrimaryMember: group.PrimaryMember,
		Description:   group.Description,
		Activated:     group.Activated,
		ExpiryDate:    group.ExpiryDate,
		Metadata:      group.Metadata,
	}
}

func toPersonDTO(person entities.Person) httptransport.PersonResponse {
	return httptransport.PersonResponse{
		PersonID:    person.PersonID,
		FullName:    person.FullName,
		Activated:   person.Activated,
		ExpiryDate:  person.ExpiryDate,
		PersonGroup: person.PersonGroup,
		Metadata:    person.Metadata,
	}
}

func toUserDTO(user entities.User) httptransport.UserResponse {
	return httptransport.UserResponse{
		UserName:   user.UserName,
		PersonID:   user.PersonID,
		Activated:  user.Activated,
		ExpiryDate: user.ExpiryDate,
		UserGroup:  user.UserGroup,
		Metadata:   user.Metadata,
	}
}

func toMembershipsResponse(memberships []ports.GroupAffiliation) httptransport.MembershipsResponse {
	items := make([]httptransport.AffiliationDTO, 0, len(memberships))
	for _, membership := range memberships {
		items = append(items, httptransport.AffiliationDTO{
			MemberName:      membership.MemberName,
			GroupName:       membership.GroupName,
			GroupActivated:  membership.GroupActivated,
			GroupExpiryDate: membership.GroupExpiryDate,
		})
	}
	return httptransport.MembershipsResponse{Memberships: items}
}
