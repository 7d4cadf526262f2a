package services

import (
	"time"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
)

// Expired reports whether an expiry date has passed. Expiry is compared at
// day granularity: a group expiring today is still valid.
func Expired(now time.Time, expiry *time.Time) bool {
	if expiry == nil {
		return false
	}
	year, month, day := now.UTC().Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return expiry.UTC().Before(today)
}

// Live reports whether a group is activated and unexpired.
func Live(group entities.Group, now time.Time) bool {
	return group.Activated && !Expired(now, group.ExpiryDate)
}

// ValidateMembership checks that adding member under parent keeps the graph
// a DAG with unique paths. Checks run in a fixed order so callers see a
// stable error for any given graph state.
func ValidateMembership(s Snapshot, parent string, member string, now time.Time) error {
	if parent == member {
		return domainerrors.ErrCycleViolation
	}
	parentGroup, ok := s.Groups[parent]
	if !ok {
		return domainerrors.ErrGroupNotFound
	}
	memberGroup, ok := s.Groups[member]
	if !ok {
		return domainerrors.ErrGroupNotFound
	}
	if parentGroup.Class == entities.GroupClassPrimary {
		return domainerrors.ErrPrimaryGroupMember
	}
	if !Live(parentGroup, now) || !Live(memberGroup, now) {
		return domainerrors.ErrInactiveOrExpired
	}
	for _, edge := range s.Memberships {
		if edge.GroupName == parent && edge.MemberName == member {
			return domainerrors.ErrDuplicateEdge
		}
	}
	for _, ascendant := range AscendantGroups(s, parent) {
		if ascendant == member {
			return domainerrors.ErrCycleViolation
		}
	}
	for _, descendant := range DescendantGroups(s, parent) {
		if descendant == member {
			return domainerrors.ErrDuplicatePath
		}
	}
	return nil
}

// ValidateModerator checks that moderator may moderate group. A moderator
// pair may not exist in both directions.
func ValidateModerator(s Snapshot, group string, moderator string, now time.Time) error {
	if group == moderator {
		return domainerrors.ErrCycleViolation
	}
	moderatedGroup, ok := s.Groups[group]
	if !ok {
		return domainerrors.ErrGroupNotFound
	}
	moderatorGroup, ok := s.Groups[moderator]
	if !ok {
		return domainerrors.ErrGroupNotFound
	}
	if moderatedGroup.Class == entities.GroupClassPrimary {
		return domainerrors.ErrPrimaryGroupModerated
	}
	if !Live(moderatedGroup, now) || !Live(moderatorGroup, now) {
		return domainerrors.ErrInactiveOrExpired
	}
	for _, edge := range s.Moderators {
		if edge.GroupName == group && edge.ModeratorName == moderator {
			return domainerrors.ErrDuplicateEdge
		}
		if edge.GroupName == moderator && edge.ModeratorName == group {
			return domainerrors.ErrCycleViolation
		}
	}
	return nil
}
