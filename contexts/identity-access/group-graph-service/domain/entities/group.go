package entities

import "time"

type GroupClass string

const (
	GroupClassPrimary   GroupClass = "primary"
	GroupClassSecondary GroupClass = "secondary"
)

type GroupType string

const (
	GroupTypePerson  GroupType = "person"
	GroupTypeUser    GroupType = "user"
	GroupTypeGeneric GroupType = "generic"
	GroupTypeWeb     GroupType = "web"
)

// Group is a node in the membership DAG. Primary groups mirror exactly one
// person or user and are never managed directly; secondary groups are the
// caller-managed containers. Name, Class, Type and PrimaryMember are fixed
// at creation.
type Group struct {
	GroupID       string
	Name          string
	Class         GroupClass
	Type          GroupType
	PrimaryMember string
	Description   string
	Activated     bool
	ExpiryDate    *time.Time
	Metadata      map[string]any
}
