// Package services holds the pure rules for grant rank maintenance and
// capability group matching. Everything here operates on values handed in
// by an adapter inside its transaction.
package services

import (
	"fmt"

	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
)

// RankShift describes one grant whose rank must change to keep a partition
// dense after a move.
type RankShift struct {
	OldRank int
	NewRank int
}

// ValidateNewRank checks the rank requested for a grant entering a partition
// that currently holds size grants. A nil request appends at the end. An
// explicit request must equal size+1: new grants never displace existing
// ones.
func ValidateNewRank(size int, requested *int) (int, error) {
	next := size + 1
	if requested == nil {
		return next, nil
	}
	if *requested != next {
		return 0, fmt.Errorf("%w: new grant must take rank %d, got %d", domainerrors.ErrRankInvariant, next, *requested)
	}
	return next, nil
}

// PlanRankMove computes the shifts needed to move a grant from oldRank to
// newRank in a partition of max grants. Shifts are ordered so that applying
// them one at a time never collides with an occupied rank: descending when
// the grant moves up, ascending when it moves down.
func PlanRankMove(oldRank, newRank, max int) ([]RankShift, error) {
	if newRank < 1 || newRank > max {
		return nil, fmt.Errorf("%w: rank %d outside 1..%d", domainerrors.ErrRankInvariant, newRank, max)
	}
	if newRank == oldRank {
		return nil, nil
	}

	var shifts []RankShift
	if newRank < oldRank {
		// Moving up: everything in [newRank, oldRank) slides one down.
		for rank := oldRank - 1; rank >= newRank; rank-- {
			shifts = append(shifts, RankShift{OldRank: rank, NewRank: rank + 1})
		}
		return shifts, nil
	}
	// Moving down: everything in (oldRank, newRank] slides one up.
	for rank := oldRank + 1; rank <= newRank; rank++ {
		shifts = append(shifts, RankShift{OldRank: rank, NewRank: rank - 1})
	}
	return shifts, nil
}
