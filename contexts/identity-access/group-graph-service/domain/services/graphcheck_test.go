package services

import (
	"errors"
	"testing"
	"time"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
)

func TestExpiredComparesAtDayGranularity(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	if Expired(now, nil) {
		t.Fatalf("nil expiry must never expire")
	}
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if Expired(now, &today) {
		t.Fatalf("a group expiring today is still valid")
	}
	yesterday := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	if !Expired(now, &yesterday) {
		t.Fatalf("a group expiring yesterday is expired")
	}
}

func TestValidateMembershipOrder(t *testing.T) {
	now := time.Now()
	s := graphSnapshot()

	if err := ValidateMembership(s, "g1", "g1", now); !errors.Is(err, domainerrors.ErrCycleViolation) {
		t.Fatalf("self reference: got %v", err)
	}
	if err := ValidateMembership(s, "missing", "g1", now); !errors.Is(err, domainerrors.ErrGroupNotFound) {
		t.Fatalf("missing parent: got %v", err)
	}
	if err := ValidateMembership(s, "kor1-group", "g3", now); !errors.Is(err, domainerrors.ErrPrimaryGroupMember) {
		t.Fatalf("primary parent: got %v", err)
	}
	if err := ValidateMembership(s, "g1", "g2", now); !errors.Is(err, domainerrors.ErrDuplicateEdge) {
		t.Fatalf("duplicate edge: got %v", err)
	}
	// g3 is a member of g2 which is a member of g1: g1 under g3 is a cycle.
	if err := ValidateMembership(s, "g3", "g1", now); !errors.Is(err, domainerrors.ErrCycleViolation) {
		t.Fatalf("cycle: got %v", err)
	}
	// g3 is already reachable from g1 through g2.
	if err := ValidateMembership(s, "g1", "g3", now); !errors.Is(err, domainerrors.ErrDuplicatePath) {
		t.Fatalf("duplicate path: got %v", err)
	}
}

func TestValidateMembershipLifecycle(t *testing.T) {
	now := time.Now()
	s := graphSnapshot()

	inactive := s.Groups["g3"]
	inactive.Activated = false
	s.Groups["g3"] = inactive
	s.Groups["g5"] = entities.Group{Name: "g5", Class: entities.GroupClassSecondary, Activated: true}
	if err := ValidateMembership(s, "g5", "g3", now); !errors.Is(err, domainerrors.ErrInactiveOrExpired) {
		t.Fatalf("inactive member: got %v", err)
	}

	expired := time.Now().AddDate(0, 0, -2)
	stale := s.Groups["g5"]
	stale.ExpiryDate = &expired
	s.Groups["g5"] = stale
	if err := ValidateMembership(s, "g5", "g1", now); !errors.Is(err, domainerrors.ErrInactiveOrExpired) {
		t.Fatalf("expired parent: got %v", err)
	}
}

func TestValidateMembershipAccepts(t *testing.T) {
	now := time.Now()
	s := graphSnapshot()
	s.Groups["g6"] = entities.Group{Name: "g6", Class: entities.GroupClassSecondary, Activated: true}

	if err := ValidateMembership(s, "g3", "g6", now); err != nil {
		t.Fatalf("valid membership rejected: %v", err)
	}
}

func TestValidateModerator(t *testing.T) {
	now := time.Now()
	s := graphSnapshot()
	s.Moderators = []entities.ModeratorEdge{{GroupName: "g2", ModeratorName: "g3"}}

	if err := ValidateModerator(s, "g1", "g1", now); !errors.Is(err, domainerrors.ErrCycleViolation) {
		t.Fatalf("self moderation: got %v", err)
	}
	if err := ValidateModerator(s, "kor1-group", "g1", now); !errors.Is(err, domainerrors.ErrPrimaryGroupModerated) {
		t.Fatalf("primary moderated: got %v", err)
	}
	if err := ValidateModerator(s, "g2", "g3", now); !errors.Is(err, domainerrors.ErrDuplicateEdge) {
		t.Fatalf("duplicate moderator: got %v", err)
	}
	// g3 already moderates g2, the reverse pair is a cycle.
	if err := ValidateModerator(s, "g3", "g2", now); !errors.Is(err, domainerrors.ErrCycleViolation) {
		t.Fatalf("reverse moderator pair: got %v", err)
	}
	if err := ValidateModerator(s, "g1", "g3", now); err != nil {
		t.Fatalf("valid moderator rejected: %v", err)
	}
}
