package entities

// MembershipEdge states that MemberName (itself a group) is a direct
// member of GroupName.
type MembershipEdge struct {
	GroupName  string
	MemberName string
}

// ModeratorEdge states that ModeratorName (a group) moderates GroupName.
type ModeratorEdge struct {
	GroupName     string
	ModeratorName string
}
