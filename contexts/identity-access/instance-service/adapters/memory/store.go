// Package memory provides an in-memory instance store for tests and local
// composition. Redemptions run under the store mutex, so the write conflicts
// the postgres adapter surfaces cannot happen here.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"bastion/contexts/identity-access/instance-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/instance-service/domain/errors"
	"bastion/contexts/identity-access/instance-service/domain/services"
	"bastion/internal/shared/audit"
)

type auditRow struct {
	record      audit.Record
	publishedAt *time.Time
}

type Store struct {
	mu        sync.RWMutex
	instances map[string]entities.CapabilityInstance
	auditRows map[string]auditRow
}

func NewStore() *Store {
	return &Store{
		instances: make(map[string]entities.CapabilityInstance),
		auditRows: make(map[string]auditRow),
	}
}

// Now implements ports.Clock.
func (s *Store) Now() time.Time { return time.Now().UTC() }

// NewID implements ports.IDGenerator.
func (s *Store) NewID(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) CreateInstance(ctx context.Context, actor string, instance entities.CapabilityInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[instance.InstanceID]; ok {
		return fmt.Errorf("%w: instance %s already exists", domainerrors.ErrInvalidRequest, instance.InstanceID)
	}
	s.instances[instance.InstanceID] = cloneInstance(instance)
	s.appendAudit(actor, "insert", instance.InstanceID, "definition", "", instance.CapabilityName)
	return nil
}

func (s *Store) GetInstance(ctx context.Context, instanceID string) (entities.CapabilityInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[instanceID]
	if !ok {
		return entities.CapabilityInstance{}, fmt.Errorf("%w: %s", domainerrors.ErrInstanceNotFound, instanceID)
	}
	return cloneInstance(instance), nil
}

func (s *Store) ListInstances(ctx context.Context) ([]entities.CapabilityInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.CapabilityInstance, 0, len(s.instances))
	for _, instance := range s.instances {
		out = append(out, cloneInstance(instance))
	}
	sortInstances(out)
	return out, nil
}

func (s *Store) ListInstancesByCapability(ctx context.Context, capabilityName string) ([]entities.CapabilityInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entities.CapabilityInstance
	for _, instance := range s.instances {
		if instance.CapabilityName == capabilityName {
			out = append(out, cloneInstance(instance))
		}
	}
	sortInstances(out)
	return out, nil
}

func (s *Store) DeleteInstance(ctx context.Context, actor string, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", domainerrors.ErrInstanceNotFound, instanceID)
	}
	delete(s.instances, instanceID)
	s.appendAudit(actor, "delete", instanceID, "definition", instance.CapabilityName, "")
	return nil
}

func (s *Store) Redeem(ctx context.Context, actor string, instanceID string, now time.Time) (entities.CapabilityInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.instances[instanceID]
	if !ok {
		return entities.CapabilityInstance{}, fmt.Errorf("%w: %s", domainerrors.ErrInstanceNotFound, instanceID)
	}
	result, outcome, err := services.EvaluateRedemption(instance, now)
	switch outcome {
	case services.OutcomeExpiredDelete:
		delete(s.instances, instanceID)
		s.appendAudit(actor, "delete", instanceID, "expired", instance.CapabilityName, "")
	case services.OutcomeConsumed:
		delete(s.instances, instanceID)
		s.appendAudit(actor, "delete", instanceID, "usages_remaining", usageValue(instance.UsagesRemaining), "0")
	case services.OutcomeDecremented:
		s.instances[instanceID] = cloneInstance(result)
		s.appendAudit(actor, "update", instanceID, "usages_remaining", usageValue(instance.UsagesRemaining), usageValue(result.UsagesRemaining))
	}
	if err != nil {
		return entities.CapabilityInstance{}, err
	}
	return cloneInstance(result), nil
}

// ListPendingAudit implements audit.Log.
func (s *Store) ListPendingAudit(ctx context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []audit.Record
	for _, row := range s.auditRows {
		if row.publishedAt == nil {
			pending = append(pending, row.record)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].EventTime.Before(pending[j].EventTime) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// MarkAuditPublished implements audit.Log.
func (s *Store) MarkAuditPublished(ctx context.Context, recordID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.auditRows[recordID]
	if !ok {
		return fmt.Errorf("audit record %s not found", recordID)
	}
	row.publishedAt = &publishedAt
	s.auditRows[recordID] = row
	return nil
}

func (s *Store) appendAudit(actor, operation, entityKey, column, oldValue, newValue string) {
	record := audit.Record{
		RecordID:  uuid.NewString(),
		Identity:  actor,
		Operation: operation,
		Entity:    "capability_instances",
		EntityKey: entityKey,
		Column:    column,
		OldValue:  oldValue,
		NewValue:  newValue,
		EventTime: time.Now().UTC(),
	}
	s.auditRows[record.RecordID] = auditRow{record: record}
}

func sortInstances(instances []entities.CapabilityInstance) {
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].InstanceID < instances[j].InstanceID
	})
}

func cloneInstance(instance entities.CapabilityInstance) entities.CapabilityInstance {
	if instance.UsagesRemaining != nil {
		value := *instance.UsagesRemaining
		instance.UsagesRemaining = &value
	}
	if instance.Metadata != nil {
		metadata := make(map[string]any, len(instance.Metadata))
		for key, value := range instance.Metadata {
			metadata[key] = value
		}
		instance.Metadata = metadata
	}
	return instance
}

func usageValue(usages *int) string {
	if usages == nil {
		return ""
	}
	return strconv.Itoa(*usages)
}
