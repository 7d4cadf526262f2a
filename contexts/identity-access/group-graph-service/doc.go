// Package groupgraphservice maintains the group membership DAG and the
// person/user registry whose primary groups mirror principal lifecycle.
// Membership and moderator edges are validated for cycles, duplicate paths
// and lifecycle state inside the store transaction that writes them.
package groupgraphservice
