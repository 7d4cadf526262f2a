package services

import (
	"testing"

	"bastion/contexts/identity-access/capability-service/domain/entities"
)

func TestCapabilityMatchesExact(t *testing.T) {
	capability := entities.Capability{
		RequiredGroups: []string{"billing-admins"},
		MatchMethod:    entities.MatchExact,
	}

	if !CapabilityMatches(capability, []string{"g1", "billing-admins"}) {
		t.Fatalf("exact member not matched")
	}
	if CapabilityMatches(capability, []string{"billing-admins-eu"}) {
		t.Fatalf("exact match must not accept a superstring")
	}
}

func TestCapabilityMatchesWildcard(t *testing.T) {
	capability := entities.Capability{
		RequiredGroups: []string{"billing"},
		MatchMethod:    entities.MatchWildcard,
	}

	// The pattern is unanchored: any candidate containing it matches.
	if !CapabilityMatches(capability, []string{"eu-billing-admins"}) {
		t.Fatalf("wildcard substring not matched")
	}
	if CapabilityMatches(capability, []string{"finance"}) {
		t.Fatalf("unrelated candidate matched")
	}
}

func TestCapabilityWithoutGroupsMatchesNobody(t *testing.T) {
	if CapabilityMatches(entities.Capability{MatchMethod: entities.MatchExact}, []string{"g1"}) {
		t.Fatalf("empty required groups must never match")
	}
}

func TestGrantMatches(t *testing.T) {
	grant := entities.Grant{RequiredGroups: []string{"ops"}}

	if !GrantMatches(grant, []string{"platform-ops-oncall"}) {
		t.Fatalf("grant contains-match failed")
	}
	if GrantMatches(grant, []string{"dev"}) {
		t.Fatalf("unrelated candidate matched grant")
	}
	if GrantMatches(entities.Grant{}, []string{"ops"}) {
		t.Fatalf("grant without required groups matched")
	}
}

func TestGrantAllows(t *testing.T) {
	grant := entities.Grant{NamesAllowed: []string{"read-reports"}}
	if !GrantAllows(grant, "read-reports") {
		t.Fatalf("named capability not allowed")
	}
	if GrantAllows(grant, "delete-reports") {
		t.Fatalf("unlisted capability allowed")
	}
	if !GrantAllows(entities.Grant{NamesAllowed: []string{entities.GrantNameAll}}, "anything") {
		t.Fatalf("all sentinel not honored")
	}
}
