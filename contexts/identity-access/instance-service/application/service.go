// Package application issues capability instances against the catalog and
// drives redemptions, retrying write conflicts a bounded number of times.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bastion/contexts/identity-access/instance-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/instance-service/domain/errors"
	"bastion/contexts/identity-access/instance-service/ports"
)

// redeemAttempts bounds the retry loop on write conflicts.
const redeemAttempts = 3

type Service struct {
	Store   ports.Store
	Catalog ports.CapabilityCatalog
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

type CreateInstanceInput struct {
	CapabilityName  string
	StartDate       *time.Time
	EndDate         *time.Time
	UsagesRemaining *int
	Metadata        map[string]any
}

// CreateInstance issues an instance of a catalog capability. The validity
// window defaults to [now, now+lifetime] from the catalog entry.
func (s Service) CreateInstance(ctx context.Context, actor string, input CreateInstanceInput) (entities.CapabilityInstance, error) {
	name := strings.TrimSpace(input.CapabilityName)
	if name == "" || strings.TrimSpace(actor) == "" {
		return entities.CapabilityInstance{}, domainerrors.ErrInvalidRequest
	}
	if input.UsagesRemaining != nil && *input.UsagesRemaining < 1 {
		return entities.CapabilityInstance{}, fmt.Errorf("%w: usages_remaining must be positive", domainerrors.ErrInvalidRequest)
	}

	lifetime, ok, err := s.Catalog.CapabilityLifetime(ctx, name)
	if err != nil {
		return entities.CapabilityInstance{}, err
	}
	if !ok {
		return entities.CapabilityInstance{}, fmt.Errorf("%w: %s", domainerrors.ErrCapabilityNotFound, name)
	}

	start := s.Clock.Now()
	if input.StartDate != nil {
		start = input.StartDate.UTC()
	}
	end := start.Add(lifetime)
	if input.EndDate != nil {
		end = input.EndDate.UTC()
	}
	if !end.After(start) {
		return entities.CapabilityInstance{}, fmt.Errorf("%w: end_date must be after start_date", domainerrors.ErrInvalidRequest)
	}

	instanceID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.CapabilityInstance{}, err
	}
	instance := entities.CapabilityInstance{
		InstanceID:      instanceID,
		CapabilityName:  name,
		StartDate:       start,
		EndDate:         end,
		UsagesRemaining: input.UsagesRemaining,
		Metadata:        input.Metadata,
	}
	if err := s.Store.CreateInstance(ctx, actor, instance); err != nil {
		return entities.CapabilityInstance{}, err
	}

	ResolveLogger(s.Logger).Info("capability instance issued",
		"event", "capability_instance_issued",
		"module", "identity-access/instance-service",
		"layer", "application",
		"instance_id", instanceID,
		"capability_name", name,
		"identity", actor,
	)
	return instance, nil
}

func (s Service) GetInstance(ctx context.Context, instanceID string) (entities.CapabilityInstance, error) {
	return s.Store.GetInstance(ctx, instanceID)
}

func (s Service) ListInstances(ctx context.Context, capabilityName string) ([]entities.CapabilityInstance, error) {
	if capabilityName != "" {
		return s.Store.ListInstancesByCapability(ctx, capabilityName)
	}
	return s.Store.ListInstances(ctx)
}

func (s Service) DeleteInstance(ctx context.Context, actor string, instanceID string) error {
	if strings.TrimSpace(actor) == "" {
		return domainerrors.ErrInvalidRequest
	}
	return s.Store.DeleteInstance(ctx, actor, instanceID)
}

// Redeem spends one usage of an instance. Write conflicts from concurrent
// redemptions are retried up to redeemAttempts times before the call gives
// up with ErrContentionExceeded.
func (s Service) Redeem(ctx context.Context, actor string, instanceID string) (entities.CapabilityInstance, error) {
	if strings.TrimSpace(actor) == "" {
		return entities.CapabilityInstance{}, domainerrors.ErrInvalidRequest
	}
	for attempt := 1; attempt <= redeemAttempts; attempt++ {
		instance, err := s.Store.Redeem(ctx, actor, instanceID, s.Clock.Now())
		if errors.Is(err, domainerrors.ErrWriteConflict) {
			ResolveLogger(s.Logger).Warn("redemption write conflict",
				"event", "capability_instance_redeem_conflict",
				"module", "identity-access/instance-service",
				"layer", "application",
				"instance_id", instanceID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return entities.CapabilityInstance{}, err
		}
		ResolveLogger(s.Logger).Info("capability instance redeemed",
			"event", "capability_instance_redeemed",
			"module", "identity-access/instance-service",
			"layer", "application",
			"instance_id", instanceID,
			"capability_name", instance.CapabilityName,
			"identity", actor,
		)
		return instance, nil
	}
	return entities.CapabilityInstance{}, domainerrors.ErrContentionExceeded
}
