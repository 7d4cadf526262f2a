// Package application validates capability and grant requests, runs the
// optional group existence checks against the directory and resolves which
// capabilities and grants a group, person or user can reach.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bastion/contexts/identity-access/capability-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
	"bastion/contexts/identity-access/capability-service/domain/services"
	"bastion/contexts/identity-access/capability-service/ports"
)

// httpMethods is the verb set grants may partition on.
var httpMethods = map[string]bool{
	"OPTIONS": true,
	"HEAD":    true,
	"GET":     true,
	"PUT":     true,
	"POST":    true,
	"PATCH":   true,
	"DELETE":  true,
}

// Sentinel group tokens resolved at evaluation time, never checked against
// the directory.
const (
	sentinelSelf      = "self"
	sentinelModerator = "moderator"
)

// Service exposes the capability catalog, the ranked grants and the
// resolution queries. GroupCheck gates the directory existence checks
// globally; each capability and grant still carries its own flag.
type Service struct {
	Repo       ports.Repository
	Directory  ports.Directory
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
	GroupCheck bool
}

type CapabilityInput struct {
	Name                string
	Hostnames           []string
	RequiredGroups      []string
	MatchMethod         entities.MatchMethod
	Lifetime            time.Duration
	Description         string
	ExpiryDate          *time.Time
	GroupExistenceCheck bool
	Metadata            map[string]any
}

type CreateGrantInput struct {
	Name                string
	NamesAllowed        []string
	Hostnames           []string
	Namespace           string
	HTTPMethod          string
	Rank                *int
	URIPattern          string
	RequiredGroups      []string
	StartDate           *time.Time
	EndDate             *time.Time
	MaxNumUsages        *int
	GroupExistenceCheck bool
	Metadata            map[string]any
}

// PersonAccess bundles everything a person can currently reach: the matched
// catalog entries and the grants whose required groups intersect the
// person's group chains.
type PersonAccess struct {
	PersonID     string
	Capabilities []entities.Capability
	Grants       []entities.Grant
}

// GroupAccess is the grant-inclusive variant of a group resolution.
type GroupAccess struct {
	GroupName    string
	Capabilities []entities.Capability
	Grants       []entities.Grant
}

// SyncCapabilities replaces the whole catalog with the given definitions.
func (s Service) SyncCapabilities(ctx context.Context, actor string, inputs []CapabilityInput) (ports.SyncStats, error) {
	if strings.TrimSpace(actor) == "" {
		return ports.SyncStats{}, domainerrors.ErrInvalidRequest
	}
	seen := make(map[string]bool, len(inputs))
	capabilities := make([]entities.Capability, 0, len(inputs))
	for _, input := range inputs {
		capability, err := s.buildCapability(ctx, input)
		if err != nil {
			return ports.SyncStats{}, err
		}
		if seen[capability.Name] {
			return ports.SyncStats{}, fmt.Errorf("%w: duplicate capability %s", domainerrors.ErrInvalidRequest, capability.Name)
		}
		seen[capability.Name] = true
		capabilities = append(capabilities, capability)
	}

	stats, err := s.Repo.SyncCapabilities(ctx, actor, capabilities)
	if err != nil {
		return ports.SyncStats{}, err
	}
	ResolveLogger(s.Logger).Info("capability catalog synced",
		"event", "capability_catalog_synced",
		"module", "identity-access/capability-service",
		"layer", "application",
		"created", stats.Created,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"identity", actor,
	)
	return stats, nil
}

func (s Service) buildCapability(ctx context.Context, input CapabilityInput) (entities.Capability, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return entities.Capability{}, fmt.Errorf("%w: capability name required", domainerrors.ErrInvalidRequest)
	}
	method := input.MatchMethod
	if method == "" {
		method = entities.MatchExact
	}
	if method != entities.MatchExact && method != entities.MatchWildcard {
		return entities.Capability{}, fmt.Errorf("%w: match method %q", domainerrors.ErrInvalidRequest, input.MatchMethod)
	}
	if input.Lifetime <= 0 {
		return entities.Capability{}, fmt.Errorf("%w: lifetime must be positive", domainerrors.ErrInvalidRequest)
	}
	if err := requireUnique(input.RequiredGroups, "required_groups"); err != nil {
		return entities.Capability{}, err
	}
	if err := requireUnique(input.Hostnames, "hostnames"); err != nil {
		return entities.Capability{}, err
	}
	if err := s.checkGroups(ctx, input.RequiredGroups, method, input.GroupExistenceCheck); err != nil {
		return entities.Capability{}, err
	}
	return entities.Capability{
		Name:                name,
		Hostnames:           input.Hostnames,
		RequiredGroups:      input.RequiredGroups,
		MatchMethod:         method,
		Lifetime:            input.Lifetime,
		Description:         input.Description,
		ExpiryDate:          input.ExpiryDate,
		GroupExistenceCheck: input.GroupExistenceCheck,
		Metadata:            input.Metadata,
	}, nil
}

func (s Service) GetCapability(ctx context.Context, name string) (entities.Capability, error) {
	return s.Repo.GetCapability(ctx, name)
}

func (s Service) ListCapabilities(ctx context.Context) ([]entities.Capability, error) {
	return s.Repo.ListCapabilities(ctx)
}

func (s Service) DeleteCapability(ctx context.Context, actor string, name string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	if err := s.Repo.DeleteCapability(ctx, actor, name); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("capability deleted",
		"event", "capability_deleted",
		"module", "identity-access/capability-service",
		"layer", "application",
		"capability_name", name,
		"identity", actor,
	)
	return nil
}

// CapabilityLifetime reports the lifetime of a catalog entry, with ok=false
// when the name is unknown. Instance issuance depends on this read.
func (s Service) CapabilityLifetime(ctx context.Context, name string) (time.Duration, bool, error) {
	capability, err := s.Repo.GetCapability(ctx, name)
	if err != nil {
		if errors.Is(err, domainerrors.ErrCapabilityNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return capability.Lifetime, true, nil
}

func (s Service) CreateGrant(ctx context.Context, actor string, input CreateGrantInput) (entities.Grant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || strings.TrimSpace(actor) == "" {
		return entities.Grant{}, domainerrors.ErrInvalidRequest
	}
	namespace := strings.TrimSpace(input.Namespace)
	if namespace == "" {
		return entities.Grant{}, fmt.Errorf("%w: namespace required", domainerrors.ErrInvalidRequest)
	}
	if !httpMethods[input.HTTPMethod] {
		return entities.Grant{}, fmt.Errorf("%w: http method %q", domainerrors.ErrInvalidRequest, input.HTTPMethod)
	}
	if len(input.NamesAllowed) == 0 {
		return entities.Grant{}, fmt.Errorf("%w: names_allowed required", domainerrors.ErrInvalidRequest)
	}
	if err := requireUnique(input.NamesAllowed, "names_allowed"); err != nil {
		return entities.Grant{}, err
	}
	if err := requireUnique(input.RequiredGroups, "required_groups"); err != nil {
		return entities.Grant{}, err
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return entities.Grant{}, fmt.Errorf("%w: end_date before start_date", domainerrors.ErrInvalidRequest)
	}
	if input.MaxNumUsages != nil && *input.MaxNumUsages < 1 {
		return entities.Grant{}, fmt.Errorf("%w: max_num_usages must be positive", domainerrors.ErrInvalidRequest)
	}
	if err := s.checkGroups(ctx, input.RequiredGroups, entities.MatchWildcard, input.GroupExistenceCheck); err != nil {
		return entities.Grant{}, err
	}

	grantID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Grant{}, err
	}
	grant := entities.Grant{
		GrantID:             grantID,
		Name:                name,
		NamesAllowed:        input.NamesAllowed,
		Hostnames:           input.Hostnames,
		Namespace:           namespace,
		HTTPMethod:          input.HTTPMethod,
		URIPattern:          input.URIPattern,
		RequiredGroups:      input.RequiredGroups,
		StartDate:           input.StartDate,
		EndDate:             input.EndDate,
		MaxNumUsages:        input.MaxNumUsages,
		GroupExistenceCheck: input.GroupExistenceCheck,
		Metadata:            input.Metadata,
	}
	created, err := s.Repo.CreateGrant(ctx, actor, grant, input.Rank)
	if err != nil {
		return entities.Grant{}, err
	}
	ResolveLogger(s.Logger).Info("grant created",
		"event", "capability_grant_created",
		"module", "identity-access/capability-service",
		"layer", "application",
		"grant_name", name,
		"namespace", namespace,
		"http_method", input.HTTPMethod,
		"rank", created.Rank,
		"identity", actor,
	)
	return created, nil
}

func (s Service) GetGrant(ctx context.Context, ref string) (entities.Grant, error) {
	return s.Repo.GetGrant(ctx, ref)
}

func (s Service) ListGrants(ctx context.Context) ([]entities.Grant, error) {
	return s.Repo.ListGrants(ctx)
}

func (s Service) ListGrantsByPartition(ctx context.Context, namespace, httpMethod string) ([]entities.Grant, error) {
	return s.Repo.ListGrantsByPartition(ctx, namespace, httpMethod)
}

func (s Service) UpdateGrant(ctx context.Context, actor string, ref string, update ports.GrantUpdate) (entities.Grant, error) {
	if strings.TrimSpace(actor) == "" {
		return entities.Grant{}, domainerrors.ErrInvalidRequest
	}
	if update.NamesAllowed != nil {
		if err := requireUnique(update.NamesAllowed, "names_allowed"); err != nil {
			return entities.Grant{}, err
		}
	}
	if update.RequiredGroups != nil {
		if err := requireUnique(update.RequiredGroups, "required_groups"); err != nil {
			return entities.Grant{}, err
		}
	}
	if update.MaxNumUsages != nil && *update.MaxNumUsages < 1 {
		return entities.Grant{}, fmt.Errorf("%w: max_num_usages must be positive", domainerrors.ErrInvalidRequest)
	}
	return s.Repo.UpdateGrant(ctx, actor, ref, update)
}

func (s Service) SetGrantRank(ctx context.Context, actor string, ref string, newRank int) (entities.Grant, error) {
	if strings.TrimSpace(actor) == "" {
		return entities.Grant{}, domainerrors.ErrInvalidRequest
	}
	grant, err := s.Repo.SetGrantRank(ctx, actor, ref, newRank)
	if err != nil {
		return entities.Grant{}, err
	}
	ResolveLogger(s.Logger).Info("grant rank moved",
		"event", "capability_grant_rank_moved",
		"module", "identity-access/capability-service",
		"layer", "application",
		"grant_name", grant.Name,
		"rank", grant.Rank,
		"identity", actor,
	)
	return grant, nil
}

func (s Service) AddGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error) {
	group = strings.TrimSpace(group)
	if group == "" || strings.TrimSpace(actor) == "" {
		return entities.Grant{}, domainerrors.ErrInvalidRequest
	}
	existing, err := s.Repo.GetGrant(ctx, ref)
	if err != nil {
		return entities.Grant{}, err
	}
	if err := s.checkGroups(ctx, []string{group}, entities.MatchWildcard, existing.GroupExistenceCheck); err != nil {
		return entities.Grant{}, err
	}
	return s.Repo.AddGrantGroup(ctx, actor, ref, group)
}

func (s Service) RemoveGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error) {
	if strings.TrimSpace(actor) == "" {
		return entities.Grant{}, domainerrors.ErrInvalidRequest
	}
	return s.Repo.RemoveGrantGroup(ctx, actor, ref, group)
}

func (s Service) DeleteGrant(ctx context.Context, actor string, ref string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	if err := s.Repo.DeleteGrant(ctx, actor, ref); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("grant deleted",
		"event", "capability_grant_deleted",
		"module", "identity-access/capability-service",
		"layer", "application",
		"grant_ref", ref,
		"identity", actor,
	)
	return nil
}

// GroupCapabilities returns the catalog entries a group can reach through
// its own name or any ascendant group.
func (s Service) GroupCapabilities(ctx context.Context, group string) ([]entities.Capability, error) {
	candidates, err := s.groupCandidates(ctx, group)
	if err != nil {
		return nil, err
	}
	return s.matchCapabilities(ctx, candidates)
}

// GroupAccess resolves a group like GroupCapabilities and additionally
// returns the grants whose required groups intersect the candidate set.
func (s Service) GroupAccess(ctx context.Context, group string) (GroupAccess, error) {
	candidates, err := s.groupCandidates(ctx, group)
	if err != nil {
		return GroupAccess{}, err
	}
	capabilities, err := s.matchCapabilities(ctx, candidates)
	if err != nil {
		return GroupAccess{}, err
	}
	grants, err := s.matchGrants(ctx, candidates)
	if err != nil {
		return GroupAccess{}, err
	}
	return GroupAccess{GroupName: group, Capabilities: capabilities, Grants: grants}, nil
}

// UserCapabilities resolves a user through its primary group chain.
func (s Service) UserCapabilities(ctx context.Context, userName string) ([]entities.Capability, error) {
	userGroup, err := s.Directory.UserGroup(ctx, userName)
	if err != nil {
		return nil, err
	}
	candidates, err := s.groupCandidates(ctx, userGroup)
	if err != nil {
		return nil, err
	}
	return s.matchCapabilities(ctx, candidates)
}

// PersonCapabilities resolves a person through its own primary group chain
// and the chains of every user belonging to the person.
func (s Service) PersonCapabilities(ctx context.Context, personID string) ([]entities.Capability, error) {
	candidates, err := s.personCandidates(ctx, personID)
	if err != nil {
		return nil, err
	}
	return s.matchCapabilities(ctx, candidates)
}

// PersonAccess reports both the capabilities and the grants reachable from
// the person's group chains.
func (s Service) PersonAccess(ctx context.Context, personID string) (PersonAccess, error) {
	candidates, err := s.personCandidates(ctx, personID)
	if err != nil {
		return PersonAccess{}, err
	}
	capabilities, err := s.matchCapabilities(ctx, candidates)
	if err != nil {
		return PersonAccess{}, err
	}
	grants, err := s.matchGrants(ctx, candidates)
	if err != nil {
		return PersonAccess{}, err
	}
	return PersonAccess{PersonID: personID, Capabilities: capabilities, Grants: grants}, nil
}

func (s Service) matchGrants(ctx context.Context, candidates []string) ([]entities.Grant, error) {
	grants, err := s.Repo.ListGrants(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]entities.Grant, 0, len(grants))
	for _, grant := range grants {
		if services.GrantMatches(grant, candidates) {
			matched = append(matched, grant)
		}
	}
	return matched, nil
}

func (s Service) groupCandidates(ctx context.Context, group string) ([]string, error) {
	ascendants, err := s.Directory.AscendantGroupNames(ctx, group)
	if err != nil {
		return nil, err
	}
	return append(ascendants, group), nil
}

func (s Service) personCandidates(ctx context.Context, personID string) ([]string, error) {
	personGroup, err := s.Directory.PersonGroup(ctx, personID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.groupCandidates(ctx, personGroup)
	if err != nil {
		return nil, err
	}
	userNames, err := s.Directory.UserNamesForPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		seen[candidate] = true
	}
	for _, userName := range userNames {
		userGroup, err := s.Directory.UserGroup(ctx, userName)
		if err != nil {
			return nil, err
		}
		chain, err := s.groupCandidates(ctx, userGroup)
		if err != nil {
			return nil, err
		}
		for _, candidate := range chain {
			if !seen[candidate] {
				seen[candidate] = true
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates, nil
}

func (s Service) matchCapabilities(ctx context.Context, candidates []string) ([]entities.Capability, error) {
	catalog, err := s.Repo.ListCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]entities.Capability, 0, len(catalog))
	for _, capability := range catalog {
		if services.CapabilityMatches(capability, candidates) {
			matched = append(matched, capability)
		}
	}
	return matched, nil
}

func (s Service) checkGroups(ctx context.Context, groups []string, method entities.MatchMethod, enabled bool) error {
	if !s.GroupCheck || !enabled || s.Directory == nil {
		return nil
	}
	for _, group := range groups {
		if group == sentinelSelf || group == sentinelModerator {
			continue
		}
		var found bool
		var err error
		if method == entities.MatchWildcard {
			found, err = s.Directory.GroupNameContains(ctx, group)
		} else {
			found, err = s.Directory.GroupExists(ctx, group)
		}
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", domainerrors.ErrGroupNotFound, group)
		}
	}
	return nil
}

func requireUnique(values []string, field string) error {
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		if seen[value] {
			return fmt.Errorf("%w: duplicate entry %q in %s", domainerrors.ErrInvalidRequest, value, field)
		}
		seen[value] = true
	}
	return nil
}
