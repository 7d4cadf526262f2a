// Package services holds the pure redemption rule. Stores call
// EvaluateRedemption inside their transaction and apply the outcome.
package services

import (
	"time"

	"bastion/contexts/identity-access/instance-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/instance-service/domain/errors"
)

// Outcome tells the store what to do with the instance row after a
// redemption attempt.
type Outcome int

const (
	// OutcomeDecremented leaves the instance in place with one fewer usage.
	OutcomeDecremented Outcome = iota
	// OutcomeReusable leaves the instance untouched.
	OutcomeReusable
	// OutcomeConsumed removes the instance; the returned snapshot carries
	// the pre-decrement usage count.
	OutcomeConsumed
	// OutcomeExpiredDelete removes the instance and reports expiry.
	OutcomeExpiredDelete
)

// EvaluateRedemption applies the validity window and usage accounting to a
// single redemption attempt. The returned instance reflects what the caller
// should hand back: on the final usage it is the pre-decrement snapshot.
func EvaluateRedemption(instance entities.CapabilityInstance, now time.Time) (entities.CapabilityInstance, Outcome, error) {
	if now.Before(instance.StartDate) {
		return entities.CapabilityInstance{}, OutcomeReusable, domainerrors.ErrInstanceNotYetActive
	}
	if now.After(instance.EndDate) {
		return entities.CapabilityInstance{}, OutcomeExpiredDelete, domainerrors.ErrInstanceExpired
	}
	if instance.UsagesRemaining == nil {
		return instance, OutcomeReusable, nil
	}
	remaining := *instance.UsagesRemaining
	if remaining-1 < 1 {
		return instance, OutcomeConsumed, nil
	}
	decremented := remaining - 1
	instance.UsagesRemaining = &decremented
	return instance, OutcomeDecremented, nil
}
