package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"bastion/contexts/identity-access/instance-service/adapters/memory"
	"bastion/contexts/identity-access/instance-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/instance-service/domain/errors"
)

type fakeCatalog struct {
	lifetimes map[string]time.Duration
}

func (c fakeCatalog) CapabilityLifetime(ctx context.Context, name string) (time.Duration, bool, error) {
	lifetime, ok := c.lifetimes[name]
	return lifetime, ok, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// conflictingStore fails every redemption with a write conflict.
type conflictingStore struct {
	*memory.Store
	attempts int
}

func (s *conflictingStore) Redeem(ctx context.Context, actor string, instanceID string, now time.Time) (entities.CapabilityInstance, error) {
	s.attempts++
	return entities.CapabilityInstance{}, domainerrors.ErrWriteConflict
}

func newService() (Service, *memory.Store) {
	store := memory.NewStore()
	return Service{
		Store:   store,
		Catalog: fakeCatalog{lifetimes: map[string]time.Duration{"read-reports": 24 * time.Hour}},
		Clock:   fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		IDGen:   store,
	}, store
}

func TestCreateInstanceDefaultsWindowFromLifetime(t *testing.T) {
	ctx := context.Background()
	service, _ := newService()

	instance, err := service.CreateInstance(ctx, "admin", CreateInstanceInput{CapabilityName: "read-reports"})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	wantStart := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if !instance.StartDate.Equal(wantStart) {
		t.Fatalf("start date = %v", instance.StartDate)
	}
	if !instance.EndDate.Equal(wantStart.Add(24 * time.Hour)) {
		t.Fatalf("end date = %v", instance.EndDate)
	}
	if instance.InstanceID == "" {
		t.Fatalf("instance id not assigned")
	}
}

func TestCreateInstanceRejectsUnknownCapability(t *testing.T) {
	ctx := context.Background()
	service, _ := newService()

	if _, err := service.CreateInstance(ctx, "admin", CreateInstanceInput{CapabilityName: "nosuch"}); !errors.Is(err, domainerrors.ErrCapabilityNotFound) {
		t.Fatalf("unknown capability: got %v", err)
	}
	zero := 0
	if _, err := service.CreateInstance(ctx, "admin", CreateInstanceInput{
		CapabilityName:  "read-reports",
		UsagesRemaining: &zero,
	}); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("zero usages: got %v", err)
	}
}

func TestRedeemSpendsUsage(t *testing.T) {
	ctx := context.Background()
	service, _ := newService()

	two := 2
	instance, err := service.CreateInstance(ctx, "admin", CreateInstanceInput{
		CapabilityName:  "read-reports",
		UsagesRemaining: &two,
	})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	redeemed, err := service.Redeem(ctx, "kor1", instance.InstanceID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if redeemed.UsagesRemaining == nil || *redeemed.UsagesRemaining != 1 {
		t.Fatalf("usages after redeem = %v", redeemed.UsagesRemaining)
	}

	if _, err := service.Redeem(ctx, "kor1", instance.InstanceID); err != nil {
		t.Fatalf("final Redeem: %v", err)
	}
	if _, err := service.GetInstance(ctx, instance.InstanceID); !errors.Is(err, domainerrors.ErrInstanceNotFound) {
		t.Fatalf("consumed instance still present: %v", err)
	}
}

func TestRedeemGivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{Store: memory.NewStore()}
	service := Service{
		Store:   store,
		Catalog: fakeCatalog{lifetimes: map[string]time.Duration{"read-reports": time.Hour}},
		Clock:   fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		IDGen:   store.Store,
	}

	if _, err := service.Redeem(ctx, "kor1", "i1"); !errors.Is(err, domainerrors.ErrContentionExceeded) {
		t.Fatalf("contention: got %v", err)
	}
	if store.attempts != 3 {
		t.Fatalf("retry attempts = %d", store.attempts)
	}
}
