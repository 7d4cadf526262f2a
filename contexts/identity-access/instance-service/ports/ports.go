// Package ports declares the driven-side contracts of the instance service.
package ports

import (
	"context"
	"time"

	"bastion/contexts/identity-access/instance-service/domain/entities"
)

// Clock abstracts time so issuance and redemption stay testable.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints instance identifiers.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Store persists capability instances. Redeem applies the whole redemption
// rule inside one transaction and reports ErrWriteConflict when a concurrent
// redemption invalidated this one; the application retries.
type Store interface {
	CreateInstance(ctx context.Context, actor string, instance entities.CapabilityInstance) error
	GetInstance(ctx context.Context, instanceID string) (entities.CapabilityInstance, error)
	ListInstances(ctx context.Context) ([]entities.CapabilityInstance, error)
	ListInstancesByCapability(ctx context.Context, capabilityName string) ([]entities.CapabilityInstance, error)
	DeleteInstance(ctx context.Context, actor string, instanceID string) error
	Redeem(ctx context.Context, actor string, instanceID string, now time.Time) (entities.CapabilityInstance, error)
}

// CapabilityCatalog is the slice of the capability service instances depend
// on: the lifetime that bounds a fresh instance's validity window. ok=false
// means the catalog has no entry with that name.
type CapabilityCatalog interface {
	CapabilityLifetime(ctx context.Context, name string) (lifetime time.Duration, ok bool, err error)
}
