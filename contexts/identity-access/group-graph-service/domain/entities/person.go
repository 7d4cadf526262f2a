package entities

import "time"

// Person is a registered human principal. PersonGroup names the primary
// group that mirrors this person in the membership DAG.
type Person struct {
	PersonID    string
	FullName    string
	Activated   bool
	ExpiryDate  *time.Time
	PersonGroup string
	Metadata    map[string]any
}

// User is a per-context account belonging to a person. Its expiry never
// exceeds the owning person's expiry.
type User struct {
	UserName   string
	PersonID   string
	Activated  bool
	ExpiryDate *time.Time
	UserGroup  string
	Metadata   map[string]any
}
