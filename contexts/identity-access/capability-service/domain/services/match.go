package services

import (
	"strings"

	"bastion/contexts/identity-access/capability-service/domain/entities"
)

// CapabilityMatches reports whether a principal that can reach the candidate
// group names satisfies the capability's required groups. A capability with
// no required groups matches nobody.
func CapabilityMatches(capability entities.Capability, candidates []string) bool {
	if len(capability.RequiredGroups) == 0 {
		return false
	}
	for _, required := range capability.RequiredGroups {
		if containsGroup(candidates, required, capability.MatchMethod) {
			return true
		}
	}
	return false
}

// GrantMatches reports whether any of the candidate group names appears in
// the grant's required groups. Grants always compare contains-style.
func GrantMatches(grant entities.Grant, candidates []string) bool {
	if len(grant.RequiredGroups) == 0 {
		return false
	}
	for _, required := range grant.RequiredGroups {
		if containsGroup(candidates, required, entities.MatchWildcard) {
			return true
		}
	}
	return false
}

// GrantAllows reports whether the grant's allow-list covers the capability
// name, either verbatim or through the "all" sentinel.
func GrantAllows(grant entities.Grant, capabilityName string) bool {
	for _, allowed := range grant.NamesAllowed {
		if allowed == entities.GrantNameAll || allowed == capabilityName {
			return true
		}
	}
	return false
}

func containsGroup(candidates []string, required string, method entities.MatchMethod) bool {
	for _, candidate := range candidates {
		switch method {
		case entities.MatchWildcard:
			// Unanchored substring match, same semantics as LIKE '%x%'.
			if strings.Contains(candidate, required) {
				return true
			}
		default:
			if candidate == required {
				return true
			}
		}
	}
	return false
}
