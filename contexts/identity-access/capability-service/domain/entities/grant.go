package entities

import "time"

// Grant binds a set of capability names to the groups allowed to exercise
// them on a (namespace, HTTP method) partition. Grants within a partition
// carry dense ranks 1..N that decide evaluation precedence.
type Grant struct {
	GrantID             string
	Name                string
	NamesAllowed        []string
	Hostnames           []string
	Namespace           string
	HTTPMethod          string
	Rank                int
	URIPattern          string
	RequiredGroups      []string
	StartDate           *time.Time
	EndDate             *time.Time
	MaxNumUsages        *int
	GroupExistenceCheck bool
	Metadata            map[string]any
}

// GrantNameAll marks a grant that allows every capability in the catalog.
const GrantNameAll = "all"
