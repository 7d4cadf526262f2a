package entities

import "time"

// MatchMethod selects how a capability's required groups are compared
// against the group names a principal can reach.
type MatchMethod string

const (
	// MatchExact requires the candidate set to contain the group name verbatim.
	MatchExact MatchMethod = "exact"
	// MatchWildcard treats each required group as an unanchored substring of
	// any candidate group name.
	MatchWildcard MatchMethod = "wildcard"
)

// Capability is a catalog entry describing an access right that can be
// granted to groups and redeemed through bounded instances.
type Capability struct {
	CapabilityID        string
	Name                string
	Hostnames           []string
	RequiredGroups      []string
	MatchMethod         MatchMethod
	Lifetime            time.Duration
	Description         string
	ExpiryDate          *time.Time
	GroupExistenceCheck bool
	Metadata            map[string]any
}
