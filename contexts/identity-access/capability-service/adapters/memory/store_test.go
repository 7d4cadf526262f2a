package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bastion/contexts/identity-access/capability-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
	"bastion/contexts/identity-access/capability-service/ports"
)

func catalogEntry(name string) entities.Capability {
	return entities.Capability{
		CapabilityID:   name + "-id",
		Name:           name,
		RequiredGroups: []string{"ops"},
		MatchMethod:    entities.MatchExact,
		Lifetime:       time.Hour,
	}
}

func seedCatalog(t *testing.T, store *Store, names ...string) {
	t.Helper()
	capabilities := make([]entities.Capability, 0, len(names))
	for _, name := range names {
		capabilities = append(capabilities, catalogEntry(name))
	}
	if _, err := store.SyncCapabilities(context.Background(), "admin", capabilities); err != nil {
		t.Fatalf("SyncCapabilities: %v", err)
	}
}

func seedGrant(t *testing.T, store *Store, name string) entities.Grant {
	t.Helper()
	grant, err := store.CreateGrant(context.Background(), "admin", entities.Grant{
		GrantID:        name + "-id",
		Name:           name,
		NamesAllowed:   []string{entities.GrantNameAll},
		Namespace:      "reports",
		HTTPMethod:     "GET",
		RequiredGroups: []string{"ops"},
	}, nil)
	if err != nil {
		t.Fatalf("CreateGrant %s: %v", name, err)
	}
	return grant
}

func partitionRanks(t *testing.T, store *Store) map[string]int {
	t.Helper()
	grants, err := store.ListGrantsByPartition(context.Background(), "reports", "GET")
	if err != nil {
		t.Fatalf("ListGrantsByPartition: %v", err)
	}
	ranks := make(map[string]int, len(grants))
	for _, grant := range grants {
		ranks[grant.Name] = grant.Rank
	}
	return ranks
}

func TestSyncCapabilitiesReplacesCatalog(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedCatalog(t, store, "read-reports", "write-reports")

	updated := catalogEntry("read-reports")
	updated.Description = "read-only report access"
	stats, err := store.SyncCapabilities(ctx, "admin", []entities.Capability{updated, catalogEntry("delete-reports")})
	if err != nil {
		t.Fatalf("SyncCapabilities: %v", err)
	}
	if stats.Created != 1 || stats.Updated != 1 || stats.Deleted != 1 {
		t.Fatalf("sync stats = %+v", stats)
	}
	if _, err := store.GetCapability(ctx, "write-reports"); !errors.Is(err, domainerrors.ErrCapabilityNotFound) {
		t.Fatalf("removed capability still present: %v", err)
	}
	capability, err := store.GetCapability(ctx, "read-reports")
	if err != nil {
		t.Fatalf("GetCapability: %v", err)
	}
	if capability.Description != "read-only report access" {
		t.Fatalf("update not applied: %+v", capability)
	}
}

func TestSyncCapabilitiesFailureLeavesCatalogUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedCatalog(t, store, "keep-me", "referenced")
	if _, err := store.CreateGrant(ctx, "admin", entities.Grant{
		GrantID:      "pinned-id",
		Name:         "pinned",
		NamesAllowed: []string{"referenced"},
		Namespace:    "reports",
		HTTPMethod:   "GET",
	}, nil); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	_, err := store.SyncCapabilities(ctx, "admin", []entities.Capability{catalogEntry("brand-new")})
	if !errors.Is(err, domainerrors.ErrReferentialIntegrity) {
		t.Fatalf("expected referential integrity failure, got %v", err)
	}
	if _, err := store.GetCapability(ctx, "brand-new"); !errors.Is(err, domainerrors.ErrCapabilityNotFound) {
		t.Fatalf("failed sync left new capability behind: %v", err)
	}
	for _, name := range []string{"keep-me", "referenced"} {
		if _, err := store.GetCapability(ctx, name); err != nil {
			t.Fatalf("failed sync removed %s: %v", name, err)
		}
	}
	grant, err := store.GetGrant(ctx, "pinned")
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if len(grant.NamesAllowed) != 1 || grant.NamesAllowed[0] != "referenced" {
		t.Fatalf("failed sync mutated grant allow-list: %v", grant.NamesAllowed)
	}
}

func TestSyncCapabilitiesBlocksCumulativeEmptying(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedCatalog(t, store, "read-reports", "write-reports")
	if _, err := store.CreateGrant(ctx, "admin", entities.Grant{
		GrantID:      "both-id",
		Name:         "both",
		NamesAllowed: []string{"read-reports", "write-reports"},
		Namespace:    "reports",
		HTTPMethod:   "GET",
	}, nil); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	// Each removal alone would leave one allowed name, but together they
	// empty the list; the sync must fail without applying either.
	_, err := store.SyncCapabilities(ctx, "admin", []entities.Capability{catalogEntry("brand-new")})
	if !errors.Is(err, domainerrors.ErrReferentialIntegrity) {
		t.Fatalf("expected referential integrity failure, got %v", err)
	}
	grant, err := store.GetGrant(ctx, "both")
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if len(grant.NamesAllowed) != 2 {
		t.Fatalf("failed sync mutated grant allow-list: %v", grant.NamesAllowed)
	}
	if _, err := store.GetCapability(ctx, "read-reports"); err != nil {
		t.Fatalf("failed sync removed read-reports: %v", err)
	}
}

func TestGrantRanksStayDense(t *testing.T) {
	store := NewStore()
	seedCatalog(t, store, "read-reports")
	seedGrant(t, store, "grant1")
	seedGrant(t, store, "grant2")
	grant3 := seedGrant(t, store, "grant3")
	if grant3.Rank != 3 {
		t.Fatalf("third grant rank = %d", grant3.Rank)
	}

	moved, err := store.SetGrantRank(context.Background(), "admin", "grant3", 1)
	if err != nil {
		t.Fatalf("SetGrantRank: %v", err)
	}
	if moved.Rank != 1 {
		t.Fatalf("moved rank = %d", moved.Rank)
	}
	ranks := partitionRanks(t, store)
	if ranks["grant3"] != 1 || ranks["grant1"] != 2 || ranks["grant2"] != 3 {
		t.Fatalf("ranks after move = %v", ranks)
	}

	if _, err := store.SetGrantRank(context.Background(), "admin", "grant3", 4); !errors.Is(err, domainerrors.ErrRankInvariant) {
		t.Fatalf("rank beyond partition: got %v", err)
	}
}

func TestCreateGrantRankRequest(t *testing.T) {
	store := NewStore()
	seedCatalog(t, store, "read-reports")
	seedGrant(t, store, "grant1")

	one := 1
	if _, err := store.CreateGrant(context.Background(), "admin", entities.Grant{
		GrantID:      "g2-id",
		Name:         "grant2",
		NamesAllowed: []string{"read-reports"},
		Namespace:    "reports",
		HTTPMethod:   "GET",
	}, &one); !errors.Is(err, domainerrors.ErrRankInvariant) {
		t.Fatalf("displacing rank on create: got %v", err)
	}
}

func TestDeleteGrantClosesRankGap(t *testing.T) {
	store := NewStore()
	seedCatalog(t, store, "read-reports")
	seedGrant(t, store, "grant1")
	seedGrant(t, store, "grant2")
	seedGrant(t, store, "grant3")

	if err := store.DeleteGrant(context.Background(), "admin", "grant1"); err != nil {
		t.Fatalf("DeleteGrant: %v", err)
	}
	ranks := partitionRanks(t, store)
	if ranks["grant2"] != 1 || ranks["grant3"] != 2 {
		t.Fatalf("ranks after delete = %v", ranks)
	}
}

func TestDeleteCapabilityPrunesGrantReferences(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedCatalog(t, store, "read-reports", "write-reports")

	if _, err := store.CreateGrant(ctx, "admin", entities.Grant{
		GrantID:      "g1-id",
		Name:         "grant1",
		NamesAllowed: []string{"read-reports", "write-reports"},
		Namespace:    "reports",
		HTTPMethod:   "GET",
	}, nil); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	if err := store.DeleteCapability(ctx, "admin", "write-reports"); err != nil {
		t.Fatalf("DeleteCapability: %v", err)
	}
	grant, err := store.GetGrant(ctx, "grant1")
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if len(grant.NamesAllowed) != 1 || grant.NamesAllowed[0] != "read-reports" {
		t.Fatalf("allow-list not pruned: %v", grant.NamesAllowed)
	}

	// The last remaining reference blocks the deletion.
	if err := store.DeleteCapability(ctx, "admin", "read-reports"); !errors.Is(err, domainerrors.ErrReferentialIntegrity) {
		t.Fatalf("emptying allow-list: got %v", err)
	}
}

func TestCreateGrantRejectsUnknownCapability(t *testing.T) {
	store := NewStore()
	seedCatalog(t, store, "read-reports")

	if _, err := store.CreateGrant(context.Background(), "admin", entities.Grant{
		GrantID:      "g1-id",
		Name:         "grant1",
		NamesAllowed: []string{"nosuch"},
		Namespace:    "reports",
		HTTPMethod:   "GET",
	}, nil); !errors.Is(err, domainerrors.ErrUnknownCapability) {
		t.Fatalf("unknown capability reference: got %v", err)
	}
}

func TestGrantGroupMaintenance(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedCatalog(t, store, "read-reports")
	seedGrant(t, store, "grant1")

	grant, err := store.AddGrantGroup(ctx, "admin", "grant1", "finance")
	if err != nil {
		t.Fatalf("AddGrantGroup: %v", err)
	}
	if len(grant.RequiredGroups) != 2 {
		t.Fatalf("required groups = %v", grant.RequiredGroups)
	}
	if _, err := store.AddGrantGroup(ctx, "admin", "grant1", "finance"); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("duplicate group add: got %v", err)
	}
	if _, err := store.RemoveGrantGroup(ctx, "admin", "grant1", "nosuch"); !errors.Is(err, domainerrors.ErrGroupNotFound) {
		t.Fatalf("removing absent group: got %v", err)
	}
	grant, err = store.RemoveGrantGroup(ctx, "admin", "grant1", "finance")
	if err != nil {
		t.Fatalf("RemoveGrantGroup: %v", err)
	}
	if len(grant.RequiredGroups) != 1 || grant.RequiredGroups[0] != "ops" {
		t.Fatalf("required groups after remove = %v", grant.RequiredGroups)
	}
}

func TestUpdateGrantFields(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedCatalog(t, store, "read-reports")
	seedGrant(t, store, "grant1")

	pattern := "/reports/*"
	usages := 5
	grant, err := store.UpdateGrant(ctx, "admin", "grant1", ports.GrantUpdate{
		URIPattern:   &pattern,
		MaxNumUsages: &usages,
	})
	if err != nil {
		t.Fatalf("UpdateGrant: %v", err)
	}
	if grant.URIPattern != pattern || grant.MaxNumUsages == nil || *grant.MaxNumUsages != 5 {
		t.Fatalf("update not applied: %+v", grant)
	}

	grant, err = store.UpdateGrant(ctx, "admin", "grant1", ports.GrantUpdate{ClearMaxNumUsages: true})
	if err != nil {
		t.Fatalf("UpdateGrant clear: %v", err)
	}
	if grant.MaxNumUsages != nil {
		t.Fatalf("max_num_usages not cleared")
	}
}
