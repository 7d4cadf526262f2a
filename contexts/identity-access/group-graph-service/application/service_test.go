package application

import (
	"context"
	"errors"
	"testing"

	"bastion/contexts/identity-access/group-graph-service/adapters/memory"
	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
)

func newService() Service {
	store := memory.NewStore()
	return Service{Repo: store, Clock: store, IDGen: store}
}

func TestRegisterPersonCreatesPrimaryGroup(t *testing.T) {
	ctx := context.Background()
	service := newService()

	person, err := service.RegisterPerson(ctx, "admin", RegisterPersonInput{FullName: "Kor User"})
	if err != nil {
		t.Fatalf("RegisterPerson: %v", err)
	}
	if person.PersonGroup != person.PersonID+"-group" {
		t.Fatalf("person group name = %q", person.PersonGroup)
	}
	group, err := service.GetGroup(ctx, person.PersonGroup)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if group.Class != entities.GroupClassPrimary || group.PrimaryMember != person.PersonID {
		t.Fatalf("primary group malformed: %+v", group)
	}
}

func TestCreateGroupRejectsReservedTypes(t *testing.T) {
	ctx := context.Background()
	service := newService()

	if _, err := service.CreateGroup(ctx, "admin", CreateGroupInput{
		Name: "p1-group",
		Type: entities.GroupTypePerson,
	}); !errors.Is(err, domainerrors.ErrPrimaryGroupLifecycle) {
		t.Fatalf("person-typed group: got %v", err)
	}
	if _, err := service.CreateGroup(ctx, "", CreateGroupInput{Name: "g1"}); !errors.Is(err, domainerrors.ErrInvalidRequest) {
		t.Fatalf("missing actor: got %v", err)
	}
}

func TestMembershipChainResolvesPrincipals(t *testing.T) {
	ctx := context.Background()
	service := newService()

	person, err := service.RegisterPerson(ctx, "admin", RegisterPersonInput{FullName: "Kor User"})
	if err != nil {
		t.Fatalf("RegisterPerson: %v", err)
	}
	user, err := service.RegisterUser(ctx, "admin", RegisterUserInput{UserName: "kor1", PersonID: person.PersonID})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	for _, name := range []string{"g1", "g2"} {
		if _, err := service.CreateGroup(ctx, "admin", CreateGroupInput{Name: name}); err != nil {
			t.Fatalf("CreateGroup %s: %v", name, err)
		}
	}

	if err := service.AddMember(ctx, "admin", "g1", "g2"); err != nil {
		t.Fatalf("AddMember g1<-g2: %v", err)
	}
	// The user name resolves to its primary group.
	if err := service.AddMember(ctx, "admin", "g2", user.UserName); err != nil {
		t.Fatalf("AddMember g2<-kor1: %v", err)
	}

	report, err := service.GroupMembers(ctx, "g1")
	if err != nil {
		t.Fatalf("GroupMembers: %v", err)
	}
	if len(report.UltimateMembers) != 1 || report.UltimateMembers[0] != "kor1" {
		t.Fatalf("ultimate members = %v", report.UltimateMembers)
	}

	groups, err := service.UserGroups(ctx, "kor1")
	if err != nil {
		t.Fatalf("UserGroups: %v", err)
	}
	seen := map[string]bool{}
	for _, affiliation := range groups {
		seen[affiliation.GroupName] = true
	}
	if !seen["g1"] || !seen["g2"] {
		t.Fatalf("user affiliations missing ancestors: %v", groups)
	}

	if err := service.AddMember(ctx, "admin", "g1", "nosuch"); !errors.Is(err, domainerrors.ErrGroupNotFound) {
		t.Fatalf("unknown member reference: got %v", err)
	}
}

func TestUserModeratorsFollowMembershipChain(t *testing.T) {
	ctx := context.Background()
	service := newService()

	person, err := service.RegisterPerson(ctx, "admin", RegisterPersonInput{FullName: "Kor User"})
	if err != nil {
		t.Fatalf("RegisterPerson: %v", err)
	}
	user, err := service.RegisterUser(ctx, "admin", RegisterUserInput{UserName: "kor1", PersonID: person.PersonID})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	for _, name := range []string{"g1", "g3"} {
		if _, err := service.CreateGroup(ctx, "admin", CreateGroupInput{Name: name}); err != nil {
			t.Fatalf("CreateGroup %s: %v", name, err)
		}
	}
	if err := service.AddMember(ctx, "admin", "g3", user.UserName); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := service.AddModerator(ctx, "admin", "g1", "g3"); err != nil {
		t.Fatalf("AddModerator: %v", err)
	}

	moderated, err := service.UserModerators(ctx, "kor1")
	if err != nil {
		t.Fatalf("UserModerators: %v", err)
	}
	if len(moderated) != 1 || moderated[0] != "g1" {
		t.Fatalf("moderated groups = %v", moderated)
	}
}

func TestDirectoryReads(t *testing.T) {
	ctx := context.Background()
	service := newService()

	person, err := service.RegisterPerson(ctx, "admin", RegisterPersonInput{FullName: "Kor User"})
	if err != nil {
		t.Fatalf("RegisterPerson: %v", err)
	}
	if _, err := service.RegisterUser(ctx, "admin", RegisterUserInput{UserName: "kor1", PersonID: person.PersonID}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	exists, err := service.GroupExists(ctx, person.PersonGroup)
	if err != nil || !exists {
		t.Fatalf("GroupExists(%s) = %v, %v", person.PersonGroup, exists, err)
	}
	found, err := service.GroupNameContains(ctx, "kor1")
	if err != nil || !found {
		t.Fatalf("GroupNameContains(kor1) = %v, %v", found, err)
	}
	groupName, err := service.UserGroup(ctx, "kor1")
	if err != nil || groupName != "kor1-group" {
		t.Fatalf("UserGroup = %q, %v", groupName, err)
	}
	names, err := service.UserNamesForPerson(ctx, person.PersonID)
	if err != nil || len(names) != 1 || names[0] != "kor1" {
		t.Fatalf("UserNamesForPerson = %v, %v", names, err)
	}
}
