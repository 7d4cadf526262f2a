package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"bastion/contexts/identity-access/capability-service/application"
	"bastion/contexts/identity-access/capability-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
	"bastion/contexts/identity-access/capability-service/ports"
	httptransport "bastion/contexts/identity-access/capability-service/transport/http"
)

// Handler maps HTTP DTOs to application calls.
type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) SyncCapabilitiesHandler(
	ctx context.Context,
	actor string,
	request httptransport.SyncCapabilitiesRequest,
) (httptransport.SyncCapabilitiesResponse, error) {
	inputs := make([]application.CapabilityInput, 0, len(request.Capabilities))
	for _, definition := range request.Capabilities {
		inputs = append(inputs, application.CapabilityInput{
			Name:                definition.Name,
			Hostnames:           definition.Hostnames,
			RequiredGroups:      definition.RequiredGroups,
			MatchMethod:         entities.MatchMethod(definition.MatchMethod),
			Lifetime:            time.Duration(definition.LifetimeSeconds) * time.Second,
			Description:         definition.Description,
			ExpiryDate:          definition.ExpiryDate,
			GroupExistenceCheck: definition.GroupExistenceCheck,
			Metadata:            definition.Metadata,
		})
	}
	stats, err := h.Service.SyncCapabilities(ctx, actor, inputs)
	if err != nil {
		return httptransport.SyncCapabilitiesResponse{}, err
	}
	return httptransport.SyncCapabilitiesResponse{
		Created: stats.Created,
		Updated: stats.Updated,
		Deleted: stats.Deleted,
	}, nil
}

func (h Handler) GetCapabilityHandler(ctx context.Context, name string) (httptransport.CapabilityDTO, error) {
	capability, err := h.Service.GetCapability(ctx, name)
	if err != nil {
		return httptransport.CapabilityDTO{}, err
	}
	return toCapabilityDTO(capability), nil
}

func (h Handler) ListCapabilitiesHandler(ctx context.Context) (httptransport.ListCapabilitiesResponse, error) {
	capabilities, err := h.Service.ListCapabilities(ctx)
	if err != nil {
		return httptransport.ListCapabilitiesResponse{}, err
	}
	return httptransport.ListCapabilitiesResponse{Capabilities: toCapabilityDTOs(capabilities)}, nil
}

func (h Handler) DeleteCapabilityHandler(ctx context.Context, actor string, name string) error {
	return h.Service.DeleteCapability(ctx, actor, name)
}

func (h Handler) CreateGrantHandler(
	ctx context.Context,
	actor string,
	request httptransport.CreateGrantRequest,
) (httptransport.GrantDTO, error) {
	grant, err := h.Service.CreateGrant(ctx, actor, application.CreateGrantInput{
		Name:                request.Name,
		NamesAllowed:        request.NamesAllowed,
		Hostnames:           request.Hostnames,
		Namespace:           request.Namespace,
		HTTPMethod:          request.HTTPMethod,
		Rank:                request.Rank,
		URIPattern:          request.URIPattern,
		RequiredGroups:      request.RequiredGroups,
		StartDate:           request.StartDate,
		EndDate:             request.EndDate,
		MaxNumUsages:        request.MaxNumUsages,
		GroupExistenceCheck: request.GroupExistenceCheck,
		Metadata:            request.Metadata,
	})
	if err != nil {
		return httptransport.GrantDTO{}, err
	}
	return toGrantDTO(grant), nil
}

func (h Handler) GetGrantHandler(ctx context.Context, ref string) (httptransport.GrantDTO, error) {
	grant, err := h.Service.GetGrant(ctx, ref)
	if err != nil {
		return httptransport.GrantDTO{}, err
	}
	return toGrantDTO(grant), nil
}

func (h Handler) ListGrantsHandler(ctx context.Context, namespace, httpMethod string) (httptransport.ListGrantsResponse, error) {
	var grants []entities.Grant
	var err error
	if namespace != "" && httpMethod != "" {
		grants, err = h.Service.ListGrantsByPartition(ctx, namespace, httpMethod)
	} else {
		grants, err = h.Service.ListGrants(ctx)
	}
	if err != nil {
		return httptransport.ListGrantsResponse{}, err
	}
	return httptransport.ListGrantsResponse{Grants: toGrantDTOs(grants)}, nil
}

func (h Handler) UpdateGrantHandler(
	ctx context.Context,
	actor string,
	ref string,
	request httptransport.UpdateGrantRequest,
) (httptransport.GrantDTO, error) {
	if request.Name != nil || request.Namespace != nil || request.HTTPMethod != nil || request.Rank != nil {
		return httptransport.GrantDTO{}, domainerrors.ErrImmutableField
	}
	grant, err := h.Service.UpdateGrant(ctx, actor, ref, ports.GrantUpdate{
		NamesAllowed:        request.NamesAllowed,
		Hostnames:           request.Hostnames,
		URIPattern:          request.URIPattern,
		RequiredGroups:      request.RequiredGroups,
		StartDate:           request.StartDate,
		ClearStartDate:      request.ClearStartDate,
		EndDate:             request.EndDate,
		ClearEndDate:        request.ClearEndDate,
		MaxNumUsages:        request.MaxNumUsages,
		ClearMaxNumUsages:   request.ClearMaxNumUsages,
		GroupExistenceCheck: request.GroupExistenceCheck,
		Metadata:            request.Metadata,
	})
	if err != nil {
		return httptransport.GrantDTO{}, err
	}
	return toGrantDTO(grant), nil
}

func (h Handler) SetGrantRankHandler(
	ctx context.Context,
	actor string,
	ref string,
	request httptransport.SetGrantRankRequest,
) (httptransport.GrantDTO, error) {
	grant, err := h.Service.SetGrantRank(ctx, actor, ref, request.Rank)
	if err != nil {
		return httptransport.GrantDTO{}, err
	}
	return toGrantDTO(grant), nil
}

func (h Handler) AddGrantGroupHandler(
	ctx context.Context,
	actor string,
	ref string,
	request httptransport.GrantGroupRequest,
) (httptransport.GrantDTO, error) {
	grant, err := h.Service.AddGrantGroup(ctx, actor, ref, request.Group)
	if err != nil {
		return httptransport.GrantDTO{}, err
	}
	return toGrantDTO(grant), nil
}

func (h Handler) RemoveGrantGroupHandler(ctx context.Context, actor string, ref string, group string) (httptransport.GrantDTO, error) {
	grant, err := h.Service.RemoveGrantGroup(ctx, actor, ref, group)
	if err != nil {
		return httptransport.GrantDTO{}, err
	}
	return toGrantDTO(grant), nil
}

func (h Handler) DeleteGrantHandler(ctx context.Context, actor string, ref string) error {
	return h.Service.DeleteGrant(ctx, actor, ref)
}

func (h Handler) GroupCapabilitiesHandler(ctx context.Context, group string) (httptransport.ListCapabilitiesResponse, error) {
	capabilities, err := h.Service.GroupCapabilities(ctx, group)
	if err != nil {
		return httptransport.ListCapabilitiesResponse{}, err
	}
	return httptransport.ListCapabilitiesResponse{Capabilities: toCapabilityDTOs(capabilities)}, nil
}

func (h Handler) GroupAccessHandler(ctx context.Context, group string) (httptransport.GroupAccessResponse, error) {
	access, err := h.Service.GroupAccess(ctx, group)
	if err != nil {
		return httptransport.GroupAccessResponse{}, err
	}
	return httptransport.GroupAccessResponse{
		GroupName:    access.GroupName,
		Capabilities: toCapabilityDTOs(access.Capabilities),
		Grants:       toGrantDTOs(access.Grants),
	}, nil
}

func (h Handler) PersonCapabilitiesHandler(ctx context.Context, personID string) (httptransport.ListCapabilitiesResponse, error) {
	capabilities, err := h.Service.PersonCapabilities(ctx, personID)
	if err != nil {
		return httptransport.ListCapabilitiesResponse{}, err
	}
	return httptransport.ListCapabilitiesResponse{Capabilities: toCapabilityDTOs(capabilities)}, nil
}

func (h Handler) UserCapabilitiesHandler(ctx context.Context, userName string) (httptransport.ListCapabilitiesResponse, error) {
	capabilities, err := h.Service.UserCapabilities(ctx, userName)
	if err != nil {
		return httptransport.ListCapabilitiesResponse{}, err
	}
	return httptransport.ListCapabilitiesResponse{Capabilities: toCapabilityDTOs(capabilities)}, nil
}

func (h Handler) PersonAccessHandler(ctx context.Context, personID string) (httptransport.PersonAccessResponse, error) {
	access, err := h.Service.PersonAccess(ctx, personID)
	if err != nil {
		return httptransport.PersonAccessResponse{}, err
	}
	return httptransport.PersonAccessResponse{
		PersonID:     access.PersonID,
		Capabilities: toCapabilityDTOs(access.Capabilities),
		Grants:       toGrantDTOs(access.Grants),
	}, nil
}

func toCapabilityDTO(capability entities.Capability) httptransport.CapabilityDTO {
	return httptransport.CapabilityDTO{
		CapabilityID:        capability.CapabilityID,
		Name:                capability.Name,
		Hostnames:           capability.Hostnames,
		RequiredGroups:      capability.RequiredGroups,
		MatchMethod:         string(capability.MatchMethod),
		LifetimeSeconds:     int64(capability.Lifetime / time.Second),
		Description:         capability.Description,
		ExpiryDate:          capability.ExpiryDate,
		GroupExistenceCheck: capability.GroupExistenceCheck,
		Metadata:            capability.Metadata,
	}
}

func toCapabilityDTOs(capabilities []entities.Capability) []httptransport.CapabilityDTO {
	items := make([]httptransport.CapabilityDTO, 0, len(capabilities))
	for _, capability := range capabilities {
		items = append(items, toCapabilityDTO(capability))
	}
	return items
}

func toGrantDTO(grant entities.Grant) httptransport.GrantDTO {
	return httptransport.GrantDTO{
		GrantID:             grant.GrantID,
		Name:                grant.Name,
		NamesAllowed:        grant.NamesAllowed,
		Hostnames:           grant.Hostnames,
		Namespace:           grant.Namespace,
		HTTPMethod:          grant.HTTPMethod,
		Rank:                grant.Rank,
		URIPattern:          grant.URIPattern,
		RequiredGroups:      grant.RequiredGroups,
		StartDate:           grant.StartDate,
		EndDate:             grant.EndDate,
		MaxNumUsages:        grant.MaxNumUsages,
		GroupExistenceCheck: grant.GroupExistenceCheck,
		Metadata:            grant.Metadata,
	}
}

func toGrantDTOs(grants []entities.Grant) []httptransport.GrantDTO {
	items := make([]httptransport.GrantDTO, 0, len(grants))
	for _, grant := range grants {
		items = append(items, toGrantDTO(grant))
	}
	return items
}
