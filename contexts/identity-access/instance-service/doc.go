// Package instanceservice issues usage-bounded instances of catalog
// capabilities and spends them through redemptions that honor the validity
// window and retry on write conflicts.
package instanceservice
