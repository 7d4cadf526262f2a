package services

import (
	"reflect"
	"testing"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
)

func graphSnapshot() Snapshot {
	groups := map[string]entities.Group{
		"g1":         {Name: "g1", Class: entities.GroupClassSecondary, Activated: true},
		"g2":         {Name: "g2", Class: entities.GroupClassSecondary, Activated: true},
		"g3":         {Name: "g3", Class: entities.GroupClassSecondary, Activated: true},
		"kor1-group": {Name: "kor1-group", Class: entities.GroupClassPrimary, PrimaryMember: "kor1", Activated: true},
	}
	memberships := []entities.MembershipEdge{
		{GroupName: "g1", MemberName: "g2"},
		{GroupName: "g2", MemberName: "g3"},
		{GroupName: "g2", MemberName: "kor1-group"},
	}
	return Snapshot{Groups: groups, Memberships: memberships}
}

func TestAscendantGroups(t *testing.T) {
	s := graphSnapshot()

	got := AscendantGroups(s, "kor1-group")
	want := []string{"g1", "g2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendants of kor1-group = %v, want %v", got, want)
	}

	if got := AscendantGroups(s, "g1"); len(got) != 0 {
		t.Fatalf("g1 has no ascendants, got %v", got)
	}
}

func TestAscendantGroupsDiamondDeduplicates(t *testing.T) {
	s := graphSnapshot()
	s.Groups["g4"] = entities.Group{Name: "g4", Class: entities.GroupClassSecondary, Activated: true}
	s.Memberships = append(s.Memberships,
		entities.MembershipEdge{GroupName: "g1", MemberName: "g4"},
		entities.MembershipEdge{GroupName: "g4", MemberName: "g3"},
	)

	got := AscendantGroups(s, "g3")
	want := []string{"g1", "g2", "g4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ascendants of g3 = %v, want %v", got, want)
	}
}

func TestDescendantEdgesStopAtPrimary(t *testing.T) {
	s := graphSnapshot()

	edges := DescendantEdges(s, "g1")
	if len(edges) != 3 {
		t.Fatalf("expected 3 descendant edges from g1, got %d: %v", len(edges), edges)
	}
	if edges[0].MemberName != "g2" {
		t.Fatalf("breadth-first order broken, first edge %v", edges[0])
	}
	for _, edge := range edges {
		if edge.MemberName == "kor1-group" && edge.Class != entities.GroupClassPrimary {
			t.Fatalf("primary member class not carried: %v", edge)
		}
	}
}

func TestUltimateMembers(t *testing.T) {
	s := graphSnapshot()

	got := UltimateMembers(s, "g1")
	want := []string{"kor1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ultimate members of g1 = %v, want %v", got, want)
	}

	if got := UltimateMembers(s, "g3"); len(got) != 0 {
		t.Fatalf("g3 has no ultimate members, got %v", got)
	}
}

func TestDirectMembers(t *testing.T) {
	s := graphSnapshot()

	got := DirectMembers(s, "g2")
	want := []string{"g3", "kor1-group"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("direct members of g2 = %v, want %v", got, want)
	}
}

func TestModeratedBy(t *testing.T) {
	s := graphSnapshot()
	s.Moderators = []entities.ModeratorEdge{
		{GroupName: "g3", ModeratorName: "g2"},
		{GroupName: "g1", ModeratorName: "g2"},
		{GroupName: "g3", ModeratorName: "g1"},
	}

	got := ModeratedBy(s, []string{"g2"})
	want := []string{"g1", "g3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("groups moderated by g2 = %v, want %v", got, want)
	}
}
