package services

import (
	"errors"
	"testing"

	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
)

func TestValidateNewRank(t *testing.T) {
	rank, err := ValidateNewRank(2, nil)
	if err != nil || rank != 3 {
		t.Fatalf("nil request: got %d, %v", rank, err)
	}

	three := 3
	rank, err = ValidateNewRank(2, &three)
	if err != nil || rank != 3 {
		t.Fatalf("explicit next rank: got %d, %v", rank, err)
	}

	one := 1
	if _, err := ValidateNewRank(2, &one); !errors.Is(err, domainerrors.ErrRankInvariant) {
		t.Fatalf("displacing rank: got %v", err)
	}
	five := 5
	if _, err := ValidateNewRank(2, &five); !errors.Is(err, domainerrors.ErrRankInvariant) {
		t.Fatalf("gap rank: got %v", err)
	}
}

func TestPlanRankMoveUp(t *testing.T) {
	shifts, err := PlanRankMove(3, 1, 3)
	if err != nil {
		t.Fatalf("PlanRankMove: %v", err)
	}
	want := []RankShift{{OldRank: 2, NewRank: 3}, {OldRank: 1, NewRank: 2}}
	if len(shifts) != len(want) {
		t.Fatalf("shifts = %v, want %v", shifts, want)
	}
	for i := range want {
		if shifts[i] != want[i] {
			t.Fatalf("shift %d = %v, want %v", i, shifts[i], want[i])
		}
	}
}

func TestPlanRankMoveDown(t *testing.T) {
	shifts, err := PlanRankMove(1, 3, 3)
	if err != nil {
		t.Fatalf("PlanRankMove: %v", err)
	}
	want := []RankShift{{OldRank: 2, NewRank: 1}, {OldRank: 3, NewRank: 2}}
	for i := range want {
		if shifts[i] != want[i] {
			t.Fatalf("shift %d = %v, want %v", i, shifts[i], want[i])
		}
	}
}

func TestPlanRankMoveBounds(t *testing.T) {
	if shifts, err := PlanRankMove(2, 2, 3); err != nil || shifts != nil {
		t.Fatalf("no-op move: got %v, %v", shifts, err)
	}
	if _, err := PlanRankMove(2, 0, 3); !errors.Is(err, domainerrors.ErrRankInvariant) {
		t.Fatalf("rank below 1: got %v", err)
	}
	if _, err := PlanRankMove(2, 4, 3); !errors.Is(err, domainerrors.ErrRankInvariant) {
		t.Fatalf("rank beyond partition: got %v", err)
	}
}
