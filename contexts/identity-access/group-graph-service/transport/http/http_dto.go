package httptransport

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateGroupRequest struct {
	GroupName   string         `json:"group_name"`
	GroupType   string         `json:"group_type,omitempty"`
	Description string         `json:"description,omitempty"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateGroupRequest carries the mutable fields. The immutable fields are
// declared so requests trying to change them are rejected explicitly
// instead of silently ignored.
type UpdateGroupRequest struct {
	GroupName     *string        `json:"group_name,omitempty"`
	GroupClass    *string        `json:"group_class,omitempty"`
	GroupType     *string        `json:"group_type,omitempty"`
	PrimaryMember *string        `json:"group_primary_member,omitempty"`
	Activated     *bool          `json:"group_activated,omitempty"`
	Description   *string        `json:"description,omitempty"`
	ExpiryDate    *time.Time     `json:"group_expiry_date,omitempty"`
	ClearExpiry   bool           `json:"clear_expiry_date,omitempty"`
	Metadata      map[string]any `json:"group_metadata,omitempty"`
}

type GroupResponse struct {
	GroupID       string         `json:"group_id"`
	GroupName     string         `json:"group_name"`
	GroupClass    string         `json:"group_class"`
	GroupType     string         `json:"group_type"`
	PrimaryMember string         `json:"group_primary_member,omitempty"`
	Description   string         `json:"description,omitempty"`
	Activated     bool           `json:"group_activated"`
	ExpiryDate    *time.Time     `json:"group_expiry_date,omitempty"`
	Metadata      map[string]any `json:"group_metadata,omitempty"`
}

type ListGroupsResponse struct {
	Groups []GroupResponse `json:"groups"`
}

type AddMemberRequest struct {
	Member string `json:"member"`
}

type AddModeratorRequest struct {
	Moderator string `json:"moderator"`
}

type MemberEdgeDTO struct {
	GroupName     string `json:"group_name"`
	MemberName    string `json:"member_name"`
	MemberClass   string `json:"member_class"`
	PrimaryMember string `json:"primary_member,omitempty"`
}

type MemberReportResponse struct {
	GroupName         string          `json:"group_name"`
	DirectMembers     []string        `json:"direct_members"`
	TransitiveMembers []MemberEdgeDTO `json:"transitive_members"`
	UltimateMembers   []string        `json:"ultimate_members"`
}

type ModeratorsResponse struct {
	GroupName  string   `json:"group_name"`
	Moderators []string `json:"moderators"`
}

type AffiliationDTO struct {
	MemberName      string     `json:"member_name"`
	GroupName       string     `json:"group_name"`
	GroupActivated  bool       `json:"group_activated"`
	GroupExpiryDate *time.Time `json:"group_expiry_date,omitempty"`
}

type MembershipsResponse struct {
	Memberships []AffiliationDTO `json:"memberships"`
}

type RegisterPersonRequest struct {
	FullName   string         `json:"full_name"`
	ExpiryDate *time.Time     `json:"expiry_date,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type UpdatePersonRequest struct {
	PersonID    *string        `json:"person_id,omitempty"`
	FullName    *string        `json:"full_name,omitempty"`
	Activated   *bool          `json:"activated,omitempty"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty"`
	ClearExpiry bool           `json:"clear_expiry_date,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type PersonResponse struct {
	PersonID    string         `json:"person_id"`
	FullName    string         `json:"full_name"`
	Activated   bool           `json:"activated"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty"`
	PersonGroup string         `json:"person_group"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ListPersonsResponse struct {
	Persons []PersonResponse `json:"persons"`
}

type RegisterUserRequest struct {
	UserName   string         `json:"user_name"`
	PersonID   string         `json:"person_id"`
	ExpiryDate *time.Time     `json:"expiry_date,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type UpdateUserRequest struct {
	UserName    *string        `json:"user_name,omitempty"`
	PersonID    *string        `json:"person_id,omitempty"`
	Activated   *bool          `json:"activated,omitempty"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty"`
	ClearExpiry bool           `json:"clear_expiry_date,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type UserResponse struct {
	UserName   string         `json:"user_name"`
	PersonID   string         `json:"person_id"`
	Activated  bool           `json:"activated"`
	ExpiryDate *time.Time     `json:"expiry_date,omitempty"`
	UserGroup  string         `json:"user_group"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
}

type ModeratedGroupsResponse struct {
	Groups []string `json:"groups"`
}
