package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bastion/contexts/identity-access/capability-service/adapters/memory"
	"bastion/contexts/identity-access/capability-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
)

// fakeDirectory is a canned slice of the group graph: groups, one person
// p1 with primary group p1-group, and one user kor1 under p1.
type fakeDirectory struct {
	groups     map[string][]string // group -> ascendants
	userGroups map[string]string
	users      map[string][]string // person -> user names
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		groups: map[string][]string{
			"p1-group":       {"g1", "g2"},
			"kor1-group":     {"billing-admins"},
			"g1":             nil,
			"g2":             {"g1"},
			"billing-admins": nil,
		},
		userGroups: map[string]string{"kor1": "kor1-group"},
		users:      map[string][]string{"p1": {"kor1"}},
	}
}

func (d *fakeDirectory) GroupExists(ctx context.Context, name string) (bool, error) {
	_, ok := d.groups[name]
	return ok, nil
}

func (d *fakeDirectory) GroupNameContains(ctx context.Context, fragment string) (bool, error) {
	for name := range d.groups {
		if fragment != "" && strings.Contains(name, fragment) {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDirectory) AscendantGroupNames(ctx context.Context, name string) ([]string, error) {
	return d.groups[name], nil
}

func (d *fakeDirectory) PersonGroup(ctx context.Context, personID string) (string, error) {
	if _, ok := d.users[personID]; !ok {
		return "", errors.New("person not found")
	}
	return personID + "-group", nil
}

func (d *fakeDirectory) UserGroup(ctx context.Context, userName string) (string, error) {
	group, ok := d.userGroups[userName]
	if !ok {
		return "", errors.New("user not found")
	}
	return group, nil
}

func (d *fakeDirectory) UserNamesForPerson(ctx context.Context, personID string) ([]string, error) {
	return d.users[personID], nil
}

func newService(t *testing.T) Service {
	t.Helper()
	store := memory.NewStore()
	return Service{
		Repo:       store,
		Directory:  newFakeDirectory(),
		Clock:      store,
		IDGen:      store,
		GroupCheck: true,
	}
}

func syncCatalog(t *testing.T, service Service, inputs ...CapabilityInput) {
	t.Helper()
	if _, err := service.SyncCapabilities(context.Background(), "admin", inputs); err != nil {
		t.Fatalf("SyncCapabilities: %v", err)
	}
}

func TestSyncCapabilitiesValidation(t *testing.T) {
	ctx := context.Background()
	service := newService(t)

	if _, err := service.SyncCapabilities(ctx, "admin", []CapabilityInput{{Name: "read", Lifetime: 0}}); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("zero lifetime: got %v", err)
	}
	if _, err := service.SyncCapabilities(ctx, "admin", []CapabilityInput{{
		Name: "read", Lifetime: time.Hour, MatchMethod: "fuzzy",
	}}); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("bad match method: got %v", err)
	}
	if _, err := service.SyncCapabilities(ctx, "admin", []CapabilityInput{
		{Name: "read", Lifetime: time.Hour, RequiredGroups: []string{"g1"}},
		{Name: "read", Lifetime: time.Hour, RequiredGroups: []string{"g2"}},
	}); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("duplicate name in batch: got %v", err)
	}
}

func TestGroupExistenceCheck(t *testing.T) {
	ctx := context.Background()
	service := newService(t)

	if _, err := service.SyncCapabilities(ctx, "admin", []CapabilityInput{{
		Name:                "read",
		Lifetime:            time.Hour,
		RequiredGroups:      []string{"nosuch"},
		GroupExistenceCheck: true,
	}}); !errors.Is(err, domainerrors.ErrGroupNotFound) {
		t.Fatalf("unknown group with check on: got %v", err)
	}

	// The self and moderator sentinels bypass the directory.
	if _, err := service.SyncCapabilities(ctx, "admin", []CapabilityInput{{
		Name:                "read",
		Lifetime:            time.Hour,
		RequiredGroups:      []string{"self", "moderator"},
		GroupExistenceCheck: true,
	}}); err != nil {
		t.Fatalf("sentinel groups rejected: %v", err)
	}

	// With the per-capability flag off the directory is not consulted.
	if _, err := service.SyncCapabilities(ctx, "admin", []CapabilityInput{{
		Name:           "write",
		Lifetime:       time.Hour,
		RequiredGroups: []string{"nosuch"},
	}}); err != nil {
		t.Fatalf("check disabled but still enforced: %v", err)
	}
}

func TestCreateGrantValidation(t *testing.T) {
	ctx := context.Background()
	service := newService(t)
	syncCatalog(t, service, CapabilityInput{Name: "read", Lifetime: time.Hour, RequiredGroups: []string{"g1"}})

	base := CreateGrantInput{
		Name:           "grant1",
		NamesAllowed:   []string{"read"},
		Namespace:      "reports",
		HTTPMethod:     "GET",
		RequiredGroups: []string{"ops"},
	}

	bad := base
	bad.HTTPMethod = "FETCH"
	if _, err := service.CreateGrant(ctx, "admin", bad); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("bad http method: got %v", err)
	}

	bad = base
	bad.NamesAllowed = nil
	if _, err := service.CreateGrant(ctx, "admin", bad); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("empty allow-list: got %v", err)
	}

	bad = base
	usages := 0
	bad.MaxNumUsages = &usages
	if _, err := service.CreateGrant(ctx, "admin", bad); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("zero usages: got %v", err)
	}

	grant, err := service.CreateGrant(ctx, "admin", base)
	if err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}
	if grant.GrantID == "" || grant.Rank != 1 {
		t.Fatalf("grant not assigned id and rank: %+v", grant)
	}
}

func TestCapabilityLifetime(t *testing.T) {
	ctx := context.Background()
	service := newService(t)
	syncCatalog(t, service, CapabilityInput{Name: "read", Lifetime: 45 * time.Minute, RequiredGroups: []string{"g1"}})

	lifetime, ok, err := service.CapabilityLifetime(ctx, "read")
	if err != nil || !ok || lifetime != 45*time.Minute {
		t.Fatalf("CapabilityLifetime = %v, %v, %v", lifetime, ok, err)
	}
	_, ok, err = service.CapabilityLifetime(ctx, "nosuch")
	if err != nil || ok {
		t.Fatalf("unknown capability: ok=%v err=%v", ok, err)
	}
}

func TestResolutionQueries(t *testing.T) {
	ctx := context.Background()
	service := newService(t)
	syncCatalog(t, service,
		CapabilityInput{Name: "read-reports", Lifetime: time.Hour, RequiredGroups: []string{"g1"}},
		CapabilityInput{Name: "manage-billing", Lifetime: time.Hour, RequiredGroups: []string{"billing"}, MatchMethod: entities.MatchWildcard},
		CapabilityInput{Name: "unreachable", Lifetime: time.Hour, RequiredGroups: []string{"security"}},
	)

	// p1-group ascends through g1 and g2.
	capabilities, err := service.GroupCapabilities(ctx, "p1-group")
	if err != nil {
		t.Fatalf("GroupCapabilities: %v", err)
	}
	if len(capabilities) != 1 || capabilities[0].Name != "read-reports" {
		t.Fatalf("group capabilities = %+v", capabilities)
	}

	// kor1's chain includes billing-admins, matching the wildcard entry.
	capabilities, err = service.UserCapabilities(ctx, "kor1")
	if err != nil {
		t.Fatalf("UserCapabilities: %v", err)
	}
	if len(capabilities) != 1 || capabilities[0].Name != "manage-billing" {
		t.Fatalf("user capabilities = %+v", capabilities)
	}

	// The person sees both its own chain and its users' chains.
	capabilities, err = service.PersonCapabilities(ctx, "p1")
	if err != nil {
		t.Fatalf("PersonCapabilities: %v", err)
	}
	names := map[string]bool{}
	for _, capability := range capabilities {
		names[capability.Name] = true
	}
	if !names["read-reports"] || !names["manage-billing"] || names["unreachable"] {
		t.Fatalf("person capabilities = %+v", capabilities)
	}
}

func TestPersonAccessIncludesGrants(t *testing.T) {
	ctx := context.Background()
	service := newService(t)
	syncCatalog(t, service, CapabilityInput{Name: "read-reports", Lifetime: time.Hour, RequiredGroups: []string{"g1"}})

	if _, err := service.CreateGrant(ctx, "admin", CreateGrantInput{
		Name:           "reports-get",
		NamesAllowed:   []string{entities.GrantNameAll},
		Namespace:      "reports",
		HTTPMethod:     "GET",
		RequiredGroups: []string{"billing"},
	}); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}
	if _, err := service.CreateGrant(ctx, "admin", CreateGrantInput{
		Name:           "admin-delete",
		NamesAllowed:   []string{entities.GrantNameAll},
		Namespace:      "admin",
		HTTPMethod:     "DELETE",
		RequiredGroups: []string{"security"},
	}); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	access, err := service.PersonAccess(ctx, "p1")
	if err != nil {
		t.Fatalf("PersonAccess: %v", err)
	}
	if len(access.Capabilities) != 1 || access.Capabilities[0].Name != "read-reports" {
		t.Fatalf("access capabilities = %+v", access.Capabilities)
	}
	if len(access.Grants) != 1 || access.Grants[0].Name != "reports-get" {
		t.Fatalf("access grants = %+v", access.Grants)
	}
}

func TestGroupAccessIncludesGrants(t *testing.T) {
	ctx := context.Background()
	service := newService(t)
	syncCatalog(t, service, CapabilityInput{Name: "read-reports", Lifetime: time.Hour, RequiredGroups: []string{"g1"}})

	if _, err := service.CreateGrant(ctx, "admin", CreateGrantInput{
		Name:           "reports-get",
		NamesAllowed:   []string{entities.GrantNameAll},
		Namespace:      "reports",
		HTTPMethod:     "GET",
		RequiredGroups: []string{"billing"},
	}); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	access, err := service.GroupAccess(ctx, "kor1-group")
	if err != nil {
		t.Fatalf("GroupAccess: %v", err)
	}
	if len(access.Capabilities) != 0 {
		t.Fatalf("expected no capabilities for kor1-group, got %+v", access.Capabilities)
	}
	if len(access.Grants) != 1 || access.Grants[0].Name != "reports-get" {
		t.Fatalf("group grants = %+v", access.Grants)
	}

	access, err = service.GroupAccess(ctx, "g2")
	if err != nil {
		t.Fatalf("GroupAccess: %v", err)
	}
	if len(access.Capabilities) != 1 || access.Capabilities[0].Name != "read-reports" {
		t.Fatalf("group capabilities = %+v", access.Capabilities)
	}
}
