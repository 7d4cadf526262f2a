package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bastion/contexts/identity-access/instance-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/instance-service/domain/errors"
)

func seedInstance(t *testing.T, store *Store, usages *int) entities.CapabilityInstance {
	t.Helper()
	instance := entities.CapabilityInstance{
		InstanceID:      "i1",
		CapabilityName:  "read-reports",
		StartDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		UsagesRemaining: usages,
	}
	if err := store.CreateInstance(context.Background(), "admin", instance); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	return instance
}

func TestBoundedInstanceConsumedAfterAllUsages(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	three := 3
	seedInstance(t, store, &three)
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	for want := 2; want >= 1; want-- {
		instance, err := store.Redeem(ctx, "kor1", "i1", now)
		if err != nil {
			t.Fatalf("Redeem: %v", err)
		}
		if instance.UsagesRemaining == nil || *instance.UsagesRemaining != want {
			t.Fatalf("usages after redeem = %v, want %d", instance.UsagesRemaining, want)
		}
	}

	// The final redemption succeeds with the pre-decrement snapshot and
	// removes the instance.
	instance, err := store.Redeem(ctx, "kor1", "i1", now)
	if err != nil {
		t.Fatalf("final Redeem: %v", err)
	}
	if instance.UsagesRemaining == nil || *instance.UsagesRemaining != 1 {
		t.Fatalf("final snapshot usages = %v", instance.UsagesRemaining)
	}
	if _, err := store.GetInstance(ctx, "i1"); !errors.Is(err, domainerrors.ErrInstanceNotFound) {
		t.Fatalf("consumed instance still present: %v", err)
	}
	if _, err := store.Redeem(ctx, "kor1", "i1", now); !errors.Is(err, domainerrors.ErrInstanceNotFound) {
		t.Fatalf("redeeming consumed instance: got %v", err)
	}
}

func TestRedeemBeforeStartLeavesInstance(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedInstance(t, store, nil)

	before := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.Redeem(ctx, "kor1", "i1", before); !errors.Is(err, domainerrors.ErrInstanceNotYetActive) {
		t.Fatalf("early redemption: got %v", err)
	}
	if _, err := store.GetInstance(ctx, "i1"); err != nil {
		t.Fatalf("early redemption removed the instance: %v", err)
	}
}

func TestRedeemAfterEndDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedInstance(t, store, nil)

	after := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	if _, err := store.Redeem(ctx, "kor1", "i1", after); !errors.Is(err, domainerrors.ErrInstanceExpired) {
		t.Fatalf("expired redemption: got %v", err)
	}
	if _, err := store.GetInstance(ctx, "i1"); !errors.Is(err, domainerrors.ErrInstanceNotFound) {
		t.Fatalf("expired instance still present: %v", err)
	}
}

func TestUnboundedInstanceIsReusable(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedInstance(t, store, nil)
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := store.Redeem(ctx, "kor1", "i1", now); err != nil {
			t.Fatalf("reusable redemption %d: %v", i, err)
		}
	}
	if _, err := store.GetInstance(ctx, "i1"); err != nil {
		t.Fatalf("reusable instance removed: %v", err)
	}
}

func TestListInstancesByCapability(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedInstance(t, store, nil)
	other := entities.CapabilityInstance{
		InstanceID:     "i2",
		CapabilityName: "write-reports",
		StartDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	if err := store.CreateInstance(ctx, "admin", other); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	instances, err := store.ListInstancesByCapability(ctx, "read-reports")
	if err != nil {
		t.Fatalf("ListInstancesByCapability: %v", err)
	}
	if len(instances) != 1 || instances[0].InstanceID != "i1" {
		t.Fatalf("instances = %+v", instances)
	}
}
