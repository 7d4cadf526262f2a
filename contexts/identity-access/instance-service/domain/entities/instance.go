package entities

import "time"

// CapabilityInstance is an issued, usage-bounded copy of a catalog
// capability. A nil UsagesRemaining means the instance is reusable without
// limit inside its validity window.
type CapabilityInstance struct {
	InstanceID      string
	CapabilityName  string
	StartDate       time.Time
	EndDate         time.Time
	UsagesRemaining *int
	Metadata        map[string]any
}
