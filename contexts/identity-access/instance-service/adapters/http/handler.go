package httpadapter

import (
	"context"
	"log/slog"

	"bastion/contexts/identity-access/instance-service/application"
	"bastion/contexts/identity-access/instance-service/domain/entities"
	httptransport "bastion/contexts/identity-access/instance-service/transport/http"
)

// Handler maps HTTP DTOs to application calls.
type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateInstanceHandler(
	ctx context.Context,
	actor string,
	request httptransport.CreateInstanceRequest,
) (httptransport.InstanceResponse, error) {
	instance, err := h.Service.CreateInstance(ctx, actor, application.CreateInstanceInput{
		CapabilityName:  request.CapabilityName,
		StartDate:       request.StartDate,
		EndDate:         request.EndDate,
		UsagesRemaining: request.UsagesRemaining,
		Metadata:        request.Metadata,
	})
	if err != nil {
		return httptransport.InstanceResponse{}, err
	}
	return toInstanceDTO(instance), nil
}

func (h Handler) GetInstanceHandler(ctx context.Context, instanceID string) (httptransport.InstanceResponse, error) {
	instance, err := h.Service.GetInstance(ctx, instanceID)
	if err != nil {
		return httptransport.InstanceResponse{}, err
	}
	return toInstanceDTO(instance), nil
}

func (h Handler) ListInstancesHandler(ctx context.Context, capabilityName string) (httptransport.ListInstancesResponse, error) {
	instances, err := h.Service.ListInstances(ctx, capabilityName)
	if err != nil {
		return httptransport.ListInstancesResponse{}, err
	}
	items := make([]httptransport.InstanceResponse, 0, len(instances))
	for _, instance := range instances {
		items = append(items, toInstanceDTO(instance))
	}
	return httptransport.ListInstancesResponse{Instances: items}, nil
}

func (h Handler) DeleteInstanceHandler(ctx context.Context, actor string, instanceID string) error {
	return h.Service.DeleteInstance(ctx, actor, instanceID)
}

func (h Handler) RedeemInstanceHandler(ctx context.Context, actor string, instanceID string) (httptransport.InstanceResponse, error) {
	instance, err := h.Service.Redeem(ctx, actor, instanceID)
	if err != nil {
		return httptransport.InstanceResponse{}, err
	}
	return toInstanceDTO(instance), nil
}

func toInstanceDTO(instance entities.CapabilityInstance) httptransport.InstanceResponse {
	return httptransport.InstanceResponse{
		InstanceID:      instance.InstanceID,
		CapabilityName:  instance.CapabilityName,
		StartDate:       instance.StartDate,
		EndDate:         instance.EndDate,
		UsagesRemaining: instance.UsagesRemaining,
		Metadata:        instance.Metadata,
	}
}
