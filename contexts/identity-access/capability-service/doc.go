// Package capabilityservice owns the capability catalog and the ranked
// grants that bind capabilities to groups per (namespace, HTTP method)
// partition. Ranks stay dense 1..N through every create, move and delete.
package capabilityservice
