package services

import (
	"errors"
	"testing"
	"time"

	"bastion/contexts/identity-access/instance-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/instance-service/domain/errors"
)

func windowInstance(usages *int) entities.CapabilityInstance {
	return entities.CapabilityInstance{
		InstanceID:      "i1",
		CapabilityName:  "read-reports",
		StartDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		UsagesRemaining: usages,
	}
}

func TestRedemptionBeforeStartLeavesInstanceIntact(t *testing.T) {
	before := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	_, outcome, err := EvaluateRedemption(windowInstance(nil), before)
	if !errors.Is(err, domainerrors.ErrInstanceNotYetActive) {
		t.Fatalf("expected not-yet-active, got %v", err)
	}
	if outcome != OutcomeReusable {
		t.Fatalf("early redemption must not touch the instance, outcome %v", outcome)
	}
}

func TestRedemptionAfterEndDeletes(t *testing.T) {
	after := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	_, outcome, err := EvaluateRedemption(windowInstance(nil), after)
	if !errors.Is(err, domainerrors.ErrInstanceExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if outcome != OutcomeExpiredDelete {
		t.Fatalf("expired instance must be deleted, outcome %v", outcome)
	}
}

func TestRedemptionWithoutUsageBoundIsReusable(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	instance, outcome, err := EvaluateRedemption(windowInstance(nil), now)
	if err != nil || outcome != OutcomeReusable {
		t.Fatalf("unbounded redemption: outcome %v, err %v", outcome, err)
	}
	if instance.UsagesRemaining != nil {
		t.Fatalf("unbounded instance gained a usage count")
	}
}

func TestRedemptionDecrements(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	three := 3
	instance, outcome, err := EvaluateRedemption(windowInstance(&three), now)
	if err != nil || outcome != OutcomeDecremented {
		t.Fatalf("bounded redemption: outcome %v, err %v", outcome, err)
	}
	if instance.UsagesRemaining == nil || *instance.UsagesRemaining != 2 {
		t.Fatalf("usage count = %v", instance.UsagesRemaining)
	}
}

func TestFinalRedemptionConsumesAndReturnsSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	one := 1
	instance, outcome, err := EvaluateRedemption(windowInstance(&one), now)
	if err != nil || outcome != OutcomeConsumed {
		t.Fatalf("final redemption: outcome %v, err %v", outcome, err)
	}
	// The caller receives the pre-decrement snapshot.
	if instance.UsagesRemaining == nil || *instance.UsagesRemaining != 1 {
		t.Fatalf("snapshot usage count = %v", instance.UsagesRemaining)
	}
}
