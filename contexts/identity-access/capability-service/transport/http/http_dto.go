// Package httptransport defines the wire DTOs of the capability API.
package httptransport

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CapabilityDTO struct {
	CapabilityID        string         `json:"capability_id"`
	Name                string         `json:"name"`
	Hostnames           []string       `json:"hostnames,omitempty"`
	RequiredGroups      []string       `json:"required_groups,omitempty"`
	MatchMethod         string         `json:"match_method"`
	LifetimeSeconds     int64          `json:"lifetime_seconds"`
	Description         string         `json:"description,omitempty"`
	ExpiryDate          *time.Time     `json:"expiry_date,omitempty"`
	GroupExistenceCheck bool           `json:"group_existence_check"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type CapabilityDefinition struct {
	Name                string         `json:"name"`
	Hostnames           []string       `json:"hostnames,omitempty"`
	RequiredGroups      []string       `json:"required_groups,omitempty"`
	MatchMethod         string         `json:"match_method,omitempty"`
	LifetimeSeconds     int64          `json:"lifetime_seconds"`
	Description         string         `json:"description,omitempty"`
	ExpiryDate          *time.Time     `json:"expiry_date,omitempty"`
	GroupExistenceCheck bool           `json:"group_existence_check,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type SyncCapabilitiesRequest struct {
	Capabilities []CapabilityDefinition `json:"capabilities"`
}

type SyncCapabilitiesResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

type ListCapabilitiesResponse struct {
	Capabilities []CapabilityDTO `json:"capabilities"`
}

type GrantDTO struct {
	GrantID             string         `json:"grant_id"`
	Name                string         `json:"name"`
	NamesAllowed        []string       `json:"names_allowed"`
	Hostnames           []string       `json:"hostnames,omitempty"`
	Namespace           string         `json:"namespace"`
	HTTPMethod          string         `json:"http_method"`
	Rank                int            `json:"rank"`
	URIPattern          string         `json:"uri_pattern,omitempty"`
	RequiredGroups      []string       `json:"required_groups,omitempty"`
	StartDate           *time.Time     `json:"start_date,omitempty"`
	EndDate             *time.Time     `json:"end_date,omitempty"`
	MaxNumUsages        *int           `json:"max_num_usages,omitempty"`
	GroupExistenceCheck bool           `json:"group_existence_check"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type CreateGrantRequest struct {
	Name                string         `json:"name"`
	NamesAllowed        []string       `json:"names_allowed"`
	Hostnames           []string       `json:"hostnames,omitempty"`
	Namespace           string         `json:"namespace"`
	HTTPMethod          string         `json:"http_method"`
	Rank                *int           `json:"rank,omitempty"`
	URIPattern          string         `json:"uri_pattern,omitempty"`
	RequiredGroups      []string       `json:"required_groups,omitempty"`
	StartDate           *time.Time     `json:"start_date,omitempty"`
	EndDate             *time.Time     `json:"end_date,omitempty"`
	MaxNumUsages        *int           `json:"max_num_usages,omitempty"`
	GroupExistenceCheck bool           `json:"group_existence_check,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// UpdateGrantRequest declares the partition and rank fields so requests that
// try to change them are rejected explicitly. Rank moves use the rank
// endpoint.
type UpdateGrantRequest struct {
	Name                *string        `json:"name,omitempty"`
	Namespace           *string        `json:"namespace,omitempty"`
	HTTPMethod          *string        `json:"http_method,omitempty"`
	Rank                *int           `json:"rank,omitempty"`
	NamesAllowed        []string       `json:"names_allowed,omitempty"`
	Hostnames           []string       `json:"hostnames,omitempty"`
	URIPattern          *string        `json:"uri_pattern,omitempty"`
	RequiredGroups      []string       `json:"required_groups,omitempty"`
	StartDate           *time.Time     `json:"start_date,omitempty"`
	ClearStartDate      bool           `json:"clear_start_date,omitempty"`
	EndDate             *time.Time     `json:"end_date,omitempty"`
	ClearEndDate        bool           `json:"clear_end_date,omitempty"`
	MaxNumUsages        *int           `json:"max_num_usages,omitempty"`
	ClearMaxNumUsages   bool           `json:"clear_max_num_usages,omitempty"`
	GroupExistenceCheck *bool          `json:"group_existence_check,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type SetGrantRankRequest struct {
	Rank int `json:"rank"`
}

type GrantGroupRequest struct {
	Group string `json:"group"`
}

type ListGrantsResponse struct {
	Grants []GrantDTO `json:"grants"`
}

type GroupAccessResponse struct {
	GroupName    string          `json:"group_name"`
	Capabilities []CapabilityDTO `json:"capabilities"`
	Grants       []GrantDTO      `json:"grants"`
}

type PersonAccessResponse struct {
	PersonID     string          `json:"person_id"`
	Capabilities []CapabilityDTO `json:"capabilities"`
	Grants       []GrantDTO      `json:"grants"`
}
