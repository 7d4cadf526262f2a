package services

import (
	"sort"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
)

// Snapshot is a consistent read of the whole membership DAG. Adapters load
// one snapshot per validation or report so traversals never mix states.
type Snapshot struct {
	Groups      map[string]entities.Group
	Memberships []entities.MembershipEdge
	Moderators  []entities.ModeratorEdge
}

// MemberEdge is one resolved step of a downward traversal.
type MemberEdge struct {
	GroupName     string
	MemberName    string
	Class         entities.GroupClass
	PrimaryMember string
}

// AscendantGroups returns every group the given group is a member of,
// directly or transitively, sorted by name.
func AscendantGroups(s Snapshot, group string) []string {
	seen := map[string]struct{}{group: {}}
	queue := []string{group}
	names := make([]string, 0)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range s.Memberships {
			if edge.MemberName != current {
				continue
			}
			if _, ok := seen[edge.GroupName]; ok {
				continue
			}
			seen[edge.GroupName] = struct{}{}
			names = append(names, edge.GroupName)
			queue = append(queue, edge.GroupName)
		}
	}
	sort.Strings(names)
	return names
}

// AscendantEdges returns the (member, parent) pairs discovered walking
// upward from the given group, in breadth-first order.
func AscendantEdges(s Snapshot, group string) []entities.MembershipEdge {
	seen := map[string]struct{}{}
	queue := []string{group}
	edges := make([]entities.MembershipEdge, 0)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range s.Memberships {
			if edge.MemberName != current {
				continue
			}
			key := edge.MemberName + "\x00" + edge.GroupName
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, edge)
			queue = append(queue, edge.GroupName)
		}
	}
	return edges
}

// DescendantEdges returns every membership edge reachable downward from the
// given group, in breadth-first order. Primary members are terminal.
func DescendantEdges(s Snapshot, group string) []MemberEdge {
	visited := map[string]struct{}{group: {}}
	queue := []string{group}
	edges := make([]MemberEdge, 0)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range s.Memberships {
			if edge.GroupName != current {
				continue
			}
			member := s.Groups[edge.MemberName]
			edges = append(edges, MemberEdge{
				GroupName:     edge.GroupName,
				MemberName:    edge.MemberName,
				Class:         member.Class,
				PrimaryMember: member.PrimaryMember,
			})
			if _, ok := visited[edge.MemberName]; ok {
				continue
			}
			visited[edge.MemberName] = struct{}{}
			if member.Class != entities.GroupClassPrimary {
				queue = append(queue, edge.MemberName)
			}
		}
	}
	return edges
}

// DescendantGroups returns the set of groups reachable downward from the
// given group, sorted by name.
func DescendantGroups(s Snapshot, group string) []string {
	seen := map[string]struct{}{}
	names := make([]string, 0)
	for _, edge := range DescendantEdges(s, group) {
		if _, ok := seen[edge.MemberName]; ok {
			continue
		}
		seen[edge.MemberName] = struct{}{}
		names = append(names, edge.MemberName)
	}
	sort.Strings(names)
	return names
}

// DirectMembers returns depth-1 member names of a group, sorted.
func DirectMembers(s Snapshot, group string) []string {
	names := make([]string, 0)
	for _, edge := range s.Memberships {
		if edge.GroupName == group {
			names = append(names, edge.MemberName)
		}
	}
	sort.Strings(names)
	return names
}

// UltimateMembers resolves the primary principals (person ids and user
// names) reachable from a group, deduplicated and sorted.
func UltimateMembers(s Snapshot, group string) []string {
	seen := map[string]struct{}{}
	names := make([]string, 0)
	for _, edge := range DescendantEdges(s, group) {
		if edge.Class != entities.GroupClassPrimary || edge.PrimaryMember == "" {
			continue
		}
		if _, ok := seen[edge.PrimaryMember]; ok {
			continue
		}
		seen[edge.PrimaryMember] = struct{}{}
		names = append(names, edge.PrimaryMember)
	}
	sort.Strings(names)
	return names
}

// GroupModerators returns the moderator group names for one group, sorted.
func GroupModerators(s Snapshot, group string) []string {
	names := make([]string, 0)
	for _, edge := range s.Moderators {
		if edge.GroupName == group {
			names = append(names, edge.ModeratorName)
		}
	}
	sort.Strings(names)
	return names
}

// ModeratedBy returns the groups moderated by any of the given moderator
// groups, deduplicated and sorted.
func ModeratedBy(s Snapshot, moderators []string) []string {
	set := make(map[string]struct{}, len(moderators))
	for _, name := range moderators {
		set[name] = struct{}{}
	}
	seen := map[string]struct{}{}
	names := make([]string, 0)
	for _, edge := range s.Moderators {
		if _, ok := set[edge.ModeratorName]; !ok {
			continue
		}
		if _, ok := seen[edge.GroupName]; ok {
			continue
		}
		seen[edge.GroupName] = struct{}{}
		names = append(names, edge.GroupName)
	}
	sort.Strings(names)
	return names
}
